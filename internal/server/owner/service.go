package owner

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
)

const saltSize = 16

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Provision derives the master key from the owner passphrase, stores the
// salt and verifier, and returns the derived key once. Provisioning an
// already-provisioned host is refused.
func (s *Service) Provision(ctx context.Context, passphrase []byte) (cryptox.SensitiveBytes, error) {
	_, err := s.repo.Get(ctx)
	if err == nil {
		return cryptox.SensitiveBytes{}, common.ErrDuplicateID
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return cryptox.SensitiveBytes{}, err
	}

	salt := common.GenerateRandByteArray(saltSize)
	masterKey := cryptox.DeriveMasterKey(passphrase, salt)

	profile := &Profile{
		Created:           time.Now().UTC(),
		MasterKeySalt:     salt,
		MasterKeyVerifier: cryptox.MakeVerifier(&masterKey),
	}
	if err := s.repo.Save(ctx, profile); err != nil {
		masterKey.Wipe()
		return cryptox.SensitiveBytes{}, fmt.Errorf("saving owner profile: %w", err)
	}

	return masterKey, nil
}

// Unlock re-derives the master key from the passphrase and checks it
// against the stored verifier. The caller owns the returned key.
func (s *Service) Unlock(ctx context.Context, passphrase []byte) (cryptox.SensitiveBytes, error) {
	profile, err := s.repo.Get(ctx)
	if err != nil {
		return cryptox.SensitiveBytes{}, err
	}

	masterKey := cryptox.DeriveMasterKey(passphrase, profile.MasterKeySalt)
	if subtle.ConstantTimeCompare(cryptox.MakeVerifier(&masterKey), profile.MasterKeyVerifier) != 1 {
		masterKey.Wipe()
		return cryptox.SensitiveBytes{}, common.ErrMasterKeyMismatch
	}

	return masterKey, nil
}

// AssertMasterKey verifies that the caller-supplied key is the tenant
// master key. Failure is fatal to the request, not recoverable.
func (s *Service) AssertMasterKey(ctx context.Context, masterKey *cryptox.SensitiveBytes) error {
	if masterKey.IsEmpty() {
		return common.ErrMasterKeyRequired
	}
	profile, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(cryptox.MakeVerifier(masterKey), profile.MasterKeyVerifier) != 1 {
		return common.ErrMasterKeyMismatch
	}
	return nil
}
