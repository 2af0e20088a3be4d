package drives

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateDrive generates a fresh random storage key, wraps it under the
// caller's master key and persists the drive. The cleartext storage key is
// wiped before returning.
func (s *Service) CreateDrive(ctx context.Context, masterKey *cryptox.SensitiveBytes, name string) (*Drive, error) {
	if masterKey.IsEmpty() {
		return nil, common.ErrMasterKeyRequired
	}

	storageKey := cryptox.NewRandomSecret(cryptox.KeySize)
	defer storageKey.Wipe()

	env, err := cryptox.WrapKey(&storageKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("wrapping storage key: %w", err)
	}

	drive := &Drive{
		ID:                           uuid.New(),
		Name:                         name,
		Created:                      time.Now().UTC(),
		MasterKeyEncryptedStorageKey: env.Marshal(),
	}

	if err := s.repo.Create(ctx, drive); err != nil {
		return nil, fmt.Errorf("error creating drive: %w", err)
	}

	return drive, nil
}

func (s *Service) GetDrive(ctx context.Context, id uuid.UUID) (*Drive, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListDrives(ctx context.Context) ([]*Drive, error) {
	return s.repo.List(ctx)
}

// UnwrapStorageKey recovers the drive's cleartext storage key with the
// master key. The caller owns the result and must wipe it.
func (s *Service) UnwrapStorageKey(drive *Drive, masterKey *cryptox.SensitiveBytes) (cryptox.SensitiveBytes, error) {
	env, err := cryptox.UnmarshalEnvelope(drive.MasterKeyEncryptedStorageKey)
	if err != nil {
		return cryptox.SensitiveBytes{}, err
	}
	key, err := cryptox.UnwrapKey(env, masterKey)
	if err != nil {
		return cryptox.SensitiveBytes{}, common.ErrMasterKeyMismatch
	}
	return key, nil
}
