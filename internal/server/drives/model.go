// Package drives is the registry of encrypted drives a tenant owns. Each
// drive has one storage key, generated at creation and persisted only
// wrapped under the tenant master key.
package drives

import (
	"time"

	"github.com/google/uuid"
)

type Drive struct {
	ID      uuid.UUID
	Name    string
	Created time.Time

	// MasterKeyEncryptedStorageKey is a marshalled cryptox.Envelope. The
	// cleartext storage key exists only inside CreateDrive and inside a
	// resolved permission context.
	MasterKeyEncryptedStorageKey []byte
}
