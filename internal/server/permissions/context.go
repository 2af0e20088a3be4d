// Package permissions resolves inbound client authentication tokens into
// ephemeral permission contexts. A context lives for exactly one request:
// it is never persisted, never cached and never handed to a background
// task. Callers must Close it at end of request, which wipes every key it
// holds.
package permissions

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/server/grants"
)

// Context carries the unwrapped material a single request is allowed to
// use: the permission set, the shared secret for request/response
// encryption, and an on-demand drive storage key resolver. Drive keys are
// unwrapped lazily, only when a drive is actually touched.
type Context struct {
	permissionSet grants.Permission
	sharedSecret  cryptox.SensitiveBytes
	isOwner       bool

	grantKey    cryptox.SensitiveBytes
	driveGrants []grants.DriveGrant

	mu        sync.Mutex
	driveKeys map[uuid.UUID]cryptox.SensitiveBytes
	closed    bool
}

// HasPermission reports whether the context's permission set contains p.
func (c *Context) HasPermission(p grants.Permission) bool {
	return c.isOwner || c.permissionSet.Has(p)
}

// IsOwner reports whether the caller authenticated as the tenant owner.
func (c *Context) IsOwner() bool {
	return c.isOwner
}

// SharedSecret returns the negotiated shared secret. The returned value
// aliases context-owned memory and becomes invalid after Close.
func (c *Context) SharedSecret() *cryptox.SensitiveBytes {
	return &c.sharedSecret
}

// DriveStorageKey returns a caller-owned copy of the storage key for the
// given drive, unwrapping it with the grant key on first use. A drive the
// grant does not cover fails with ErrDriveNotGranted.
func (c *Context) DriveStorageKey(driveID uuid.UUID) (cryptox.SensitiveBytes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return cryptox.SensitiveBytes{}, common.ErrInvalidToken
	}

	if key, ok := c.driveKeys[driveID]; ok {
		return key.Clone(), nil
	}

	for i := range c.driveGrants {
		dg := &c.driveGrants[i]
		if dg.DriveID != driveID {
			continue
		}
		env, err := cryptox.UnmarshalEnvelope(dg.GrantKeyEncryptedStorageKey)
		if err != nil {
			return cryptox.SensitiveBytes{}, common.ErrInvalidToken
		}
		key, err := cryptox.UnwrapKey(env, &c.grantKey)
		if err != nil {
			// never reveal which layer failed
			return cryptox.SensitiveBytes{}, common.ErrInvalidToken
		}
		c.driveKeys[driveID] = key
		return key.Clone(), nil
	}

	return cryptox.SensitiveBytes{}, common.ErrDriveNotGranted
}

// Close wipes all key material the context holds. It is safe to call more
// than once.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.sharedSecret.Wipe()
	c.grantKey.Wipe()
	for id, key := range c.driveKeys {
		key.Wipe()
		delete(c.driveKeys, id)
	}
}
