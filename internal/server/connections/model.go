// Package connections is the registry of remote identities this host is
// connected to. A registration stores the access token the remote host
// issued to us (used to authenticate outbound transit calls) and the
// connection shared secret negotiated when the two identities connected.
package connections

import (
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/server/auth"
)

type IdentityConnectionRegistration struct {
	ID             uuid.UUID
	RemoteIdentity string
	Created        time.Time
	Connected      bool

	// Credential for calling the remote host: the token id plus our half
	// of the remote host's split access key.
	RemoteTokenID      uuid.UUID
	RemoteTokenHalfKey []byte

	// SharedSecret is the connection (ICR) shared secret used for
	// request/response payload encryption and query re-encryption.
	SharedSecret []byte
}

// IsConnected reports whether the registration is usable for outbound calls.
func (r *IdentityConnectionRegistration) IsConnected() bool {
	return r.Connected && len(r.RemoteTokenHalfKey) > 0
}

// CreateClientAuthToken builds the authentication token to present to the
// remote host. The caller owns the token and must wipe it.
func (r *IdentityConnectionRegistration) CreateClientAuthToken() (auth.ClientAuthenticationToken, error) {
	if !r.IsConnected() {
		return auth.ClientAuthenticationToken{}, common.ErrorNotFound
	}
	return auth.ClientAuthenticationToken{
		ID:                 r.RemoteTokenID,
		AccessTokenHalfKey: cryptox.NewSensitiveBytes(append([]byte(nil), r.RemoteTokenHalfKey...)),
	}, nil
}

// ICRSharedSecret returns a caller-owned copy of the connection secret.
func (r *IdentityConnectionRegistration) ICRSharedSecret() cryptox.SensitiveBytes {
	return cryptox.NewSensitiveBytes(append([]byte(nil), r.SharedSecret...))
}
