package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/hostvault/hostvault/internal/flagx"
	"github.com/hostvault/hostvault/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. It uses timex.Duration
// for interval fields, which allows parsing both string values such as
// "30s" and integer nanoseconds. After unmarshalling, its fields are
// copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	HostIdentity            string         `json:"host_identity"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	OutboxBatchSize         int            `json:"outbox_batch_size"`
	OutboxMaxAttempts       int            `json:"outbox_max_attempts"`
	OutboxBackoffBase       timex.Duration `json:"outbox_backoff_base"`
	OutboxBackoffCap        timex.Duration `json:"outbox_backoff_cap"`
	SweepInterval           timex.Duration `json:"sweep_interval"`
	QuarantineTimeout       timex.Duration `json:"quarantine_timeout"`
	MaxPartSize             int64          `json:"max_part_size"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any. A missing flag means no overlay; an unreadable
// or invalid file panics, configuration errors are not survivable.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.HostIdentity = c.HostIdentity
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionValidityDuration = time.Duration(c.SessionValidityDuration.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.OutboxBatchSize = c.OutboxBatchSize
	config.OutboxMaxAttempts = c.OutboxMaxAttempts
	config.OutboxBackoffBase = time.Duration(c.OutboxBackoffBase.Duration)
	config.OutboxBackoffCap = time.Duration(c.OutboxBackoffCap.Duration)
	config.SweepInterval = time.Duration(c.SweepInterval.Duration)
	config.QuarantineTimeout = time.Duration(c.QuarantineTimeout.Duration)
	config.MaxPartSize = c.MaxPartSize
}
