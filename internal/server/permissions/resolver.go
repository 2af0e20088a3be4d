package permissions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/registrations"
)

type Resolver struct {
	regs   registrations.Repository
	grants grants.Repository
	logger logging.Logger
}

func NewResolver(regs registrations.Repository, grantRepo grants.Repository, logger logging.Logger) *Resolver {
	return &Resolver{
		regs:   regs,
		grants: grantRepo,
		logger: logger.With("module", "permissions"),
	}
}

// Resolve unwinds the wrapping chain behind an inbound token into a fresh
// permission context.
//
// Revocation is checked before any key material is unwrapped: a revoked
// grant or registration never causes unwrap work to run, and revocation is
// read fresh on every call rather than assumed stable from an earlier
// resolution. Unwrap failures of any layer are reported uniformly as
// ErrInvalidToken so callers get no wrapping oracle.
func (r *Resolver) Resolve(ctx context.Context, authToken *auth.ClientAuthenticationToken) (*Context, error) {
	reg, err := r.regs.GetByID(ctx, authToken.ID)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if reg.IsRevoked {
		return nil, common.ErrAccessRevoked
	}

	grant, err := r.grants.GetByID(ctx, reg.GrantID)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if grant.IsRevoked {
		return nil, common.ErrGrantRevoked
	}

	serverHalf := cryptox.NewSensitiveBytes(append([]byte(nil), reg.ClientHalfKeyEncryptedAccessKey...))
	defer serverHalf.Wipe()

	accessKey, err := serverHalf.Xor(&authToken.AccessTokenHalfKey)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	defer accessKey.Wipe()

	sharedSecret, err := unwrap(reg.AccessKeyEncryptedSharedSecret, &accessKey)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	grantKey, err := unwrap(reg.AccessKeyEncryptedGrantKey, &accessKey)
	if err != nil {
		sharedSecret.Wipe()
		return nil, common.ErrInvalidToken
	}

	r.touchLastUsed(ctx, reg.ID)

	return &Context{
		permissionSet: grant.PermissionSet,
		sharedSecret:  sharedSecret,
		grantKey:      grantKey,
		driveGrants:   grant.DriveGrants,
		driveKeys:     make(map[uuid.UUID]cryptox.SensitiveBytes),
	}, nil
}

func unwrap(marshalled []byte, key *cryptox.SensitiveBytes) (cryptox.SensitiveBytes, error) {
	env, err := cryptox.UnmarshalEnvelope(marshalled)
	if err != nil {
		return cryptox.SensitiveBytes{}, err
	}
	return cryptox.UnwrapKey(env, key)
}

// touchLastUsed updates the registration's LastUsed stamp without blocking
// the request.
func (r *Resolver) touchLastUsed(ctx context.Context, id uuid.UUID) {
	bg := context.WithoutCancel(ctx)
	go func() {
		tctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := r.regs.TouchLastUsed(tctx, id, time.Now().UTC()); err != nil {
			r.logger.Warn(tctx, "failed to update last_used", "registration_id", id, "error", err.Error())
		}
	}()
}

// NewOwnerContext builds a context for the tenant owner, who is not bound
// to any grant. resolveDrive unwraps storage keys with the owner's master
// key; the closure must not retain the master key beyond the request.
func NewOwnerContext(sharedSecret cryptox.SensitiveBytes, driveGrants []grants.DriveGrant, grantKey cryptox.SensitiveBytes) *Context {
	return &Context{
		permissionSet: grants.PermissionAll,
		sharedSecret:  sharedSecret,
		isOwner:       true,
		grantKey:      grantKey,
		driveGrants:   driveGrants,
		driveKeys:     make(map[uuid.UUID]cryptox.SensitiveBytes),
	}
}
