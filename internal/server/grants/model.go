// Package grants implements the exchange grant store: the root capability
// records that scope what drives and permissions a granted relationship
// has. A grant key is wrapped under the tenant master key; each granted
// drive's storage key is wrapped under the grant key, never under the
// master key directly, so revoking or rotating a grant never touches the
// master key.
package grants

import (
	"time"

	"github.com/google/uuid"
)

// Permission is the per-drive access bitmask.
type Permission uint8

const (
	PermissionNone    Permission = 0
	PermissionRead    Permission = 1 << 0
	PermissionWrite   Permission = 1 << 1
	PermissionReact   Permission = 1 << 2
	PermissionComment Permission = 1 << 3
	PermissionAll                = PermissionRead | PermissionWrite | PermissionReact | PermissionComment
)

// Has reports whether all bits of p are present.
func (perm Permission) Has(p Permission) bool {
	return perm&p == p
}

// GranteeType says what kind of relationship a grant is scoped to.
type GranteeType string

const (
	GranteeIdentity   GranteeType = "identity"
	GranteeApp        GranteeType = "app"
	GranteeThirdParty GranteeType = "thirdparty"
)

type ExchangeGrant struct {
	ID       uuid.UUID
	Created  time.Time
	Modified time.Time

	GranteeType GranteeType
	Grantee     string

	// MasterKeyEncryptedGrantKey is a marshalled cryptox.Envelope.
	MasterKeyEncryptedGrantKey []byte

	IsRevoked     bool
	PermissionSet Permission
	DriveGrants   []DriveGrant
}

// DriveGrant links a grant to one drive's storage key, wrapped under the
// grant key, plus the permission bitmask for that drive.
type DriveGrant struct {
	DriveID                     uuid.UUID
	GrantKeyEncryptedStorageKey []byte
	Permission                  Permission
}
