package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/drives"
)

type Service struct {
	repo   Repository
	drives *drives.Service
	logger logging.Logger
}

func NewService(repo Repository, driveService *drives.Service, logger logging.Logger) *Service {
	return &Service{
		repo:   repo,
		drives: driveService,
		logger: logger.With("module", "grants"),
	}
}

// CreateGrant mints a fresh grant key, re-wraps each requested drive's
// storage key under it, wraps the grant key under the master key and
// persists the grant. Every intermediate cleartext key is wiped before
// return.
//
// The caller must hold the master key; an empty or wrong key fails the
// whole request.
func (s *Service) CreateGrant(
	ctx context.Context,
	masterKey *cryptox.SensitiveBytes,
	granteeType GranteeType,
	grantee string,
	driveIDs []uuid.UUID,
	permissionSet Permission,
) (*ExchangeGrant, error) {

	if masterKey.IsEmpty() {
		return nil, common.ErrMasterKeyRequired
	}

	grantKey := cryptox.NewRandomSecret(cryptox.KeySize)
	defer grantKey.Wipe()

	driveGrants := make([]DriveGrant, 0, len(driveIDs))
	for _, driveID := range driveIDs {
		drive, err := s.drives.GetDrive(ctx, driveID)
		if err != nil {
			return nil, fmt.Errorf("drive %s: %w", driveID, err)
		}

		storageKey, err := s.drives.UnwrapStorageKey(drive, masterKey)
		if err != nil {
			return nil, err
		}

		rewrapped, err := cryptox.WrapKey(&storageKey, &grantKey)
		storageKey.Wipe()
		if err != nil {
			return nil, fmt.Errorf("re-wrapping storage key: %w", err)
		}

		driveGrants = append(driveGrants, DriveGrant{
			DriveID:                     driveID,
			GrantKeyEncryptedStorageKey: rewrapped.Marshal(),
			Permission:                  permissionSet,
		})
	}

	wrappedGrantKey, err := cryptox.WrapKey(&grantKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("wrapping grant key: %w", err)
	}

	now := time.Now().UTC()
	grant := &ExchangeGrant{
		ID:                         uuid.New(),
		Created:                    now,
		Modified:                   now,
		GranteeType:                granteeType,
		Grantee:                    grantee,
		MasterKeyEncryptedGrantKey: wrappedGrantKey.Marshal(),
		PermissionSet:              permissionSet,
		DriveGrants:                driveGrants,
	}

	if err := s.repo.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("error creating grant: %w", err)
	}

	s.logger.Info(ctx, "grant created", "grant_id", grant.ID, "grantee", grantee, "drives", len(driveGrants))
	return grant, nil
}

func (s *Service) GetGrant(ctx context.Context, id uuid.UUID) (*ExchangeGrant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListGrants(ctx context.Context) ([]*ExchangeGrant, error) {
	return s.repo.List(ctx)
}

// Revoke marks the grant revoked. The record is retained for audit; every
// downstream resolution checks the flag fresh.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "grant revoked", "grant_id", id)
	return nil
}

// UnwrapGrantKey recovers the grant key with the master key. The caller
// owns the result and must wipe it.
func (s *Service) UnwrapGrantKey(grant *ExchangeGrant, masterKey *cryptox.SensitiveBytes) (cryptox.SensitiveBytes, error) {
	env, err := cryptox.UnmarshalEnvelope(grant.MasterKeyEncryptedGrantKey)
	if err != nil {
		return cryptox.SensitiveBytes{}, err
	}
	key, err := cryptox.UnwrapKey(env, masterKey)
	if err != nil {
		return cryptox.SensitiveBytes{}, common.ErrMasterKeyMismatch
	}
	return key, nil
}
