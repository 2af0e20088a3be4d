package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":        "www.example:9000",
		"host_identity":             "alpha.example",
		"database_dsn":              "hostvault.db",
		"secret_key":                "my_secret_key",
		"session_validity_duration": "45m",
		"s3_root_user":              "user",
		"s3_root_password":          "password",
		"s3_bucket":                 "bucket",
		"s3_region":                 "region",
		"s3_base_endpoint":          "base_endpoint",
		"outbox_batch_size":         50,
		"outbox_max_attempts":       4,
		"outbox_backoff_base":       "10s",
		"outbox_backoff_cap":        "1h",
		"sweep_interval":            "15s",
		"quarantine_timeout":        "2h",
		"max_part_size":             1048576,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "alpha.example", cfg.HostIdentity)
		assert.Equal(t, "hostvault.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 45*time.Minute, cfg.SessionValidityDuration)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, 50, cfg.OutboxBatchSize)
		assert.Equal(t, 4, cfg.OutboxMaxAttempts)
		assert.Equal(t, 10*time.Second, cfg.OutboxBackoffBase)
		assert.Equal(t, time.Hour, cfg.OutboxBackoffCap)
		assert.Equal(t, 15*time.Second, cfg.SweepInterval)
		assert.Equal(t, 2*time.Hour, cfg.QuarantineTimeout)
		assert.Equal(t, int64(1048576), cfg.MaxPartSize)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:        "defaults:1234",
			HostIdentity:            "beta.example",
			DatabaseDSN:             "hostvault.db",
			SecretKey:               "key",
			SessionValidityDuration: 2 * time.Minute,
			OutboxBatchSize:         7,
			QuarantineTimeout:       3 * time.Hour,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "beta.example", cfg.HostIdentity)
		assert.Equal(t, "hostvault.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.SessionValidityDuration)
		assert.Equal(t, 7, cfg.OutboxBatchSize)
		assert.Equal(t, 3*time.Hour, cfg.QuarantineTimeout)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
