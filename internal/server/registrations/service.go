package registrations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/grants"
)

type Service struct {
	repo   Repository
	logger logging.Logger
}

func NewService(repo Repository, logger logging.Logger) *Service {
	return &Service{repo: repo, logger: logger.With("module", "registrations")}
}

// IssueAccessToken creates an access registration for the grant and returns
// the one-shot client bearer token. The token is handed to the caller
// exactly once; the server keeps only the XOR counterpart of its half key,
// so the token is never again retrievable in this form.
//
// The caller supplies the cleartext grant key (unwrapped with the master
// key at issuance time); it is not modified and remains owned by the
// caller.
func (s *Service) IssueAccessToken(
	ctx context.Context,
	grant *grants.ExchangeGrant,
	grantKey *cryptox.SensitiveBytes,
) (*AccessRegistration, *auth.ClientAccessToken, error) {

	if grant.IsRevoked {
		return nil, nil, common.ErrGrantRevoked
	}

	accessKey := cryptox.NewRandomSecret(cryptox.KeySize)
	defer accessKey.Wipe()

	serverHalf, clientHalf, err := cryptox.SplitSecret(&accessKey)
	if err != nil {
		return nil, nil, err
	}

	sharedSecret := cryptox.NewRandomSecret(cryptox.KeySize)

	wrappedSecret, err := cryptox.WrapKey(&sharedSecret, &accessKey)
	if err != nil {
		sharedSecret.Wipe()
		clientHalf.Wipe()
		serverHalf.Wipe()
		return nil, nil, fmt.Errorf("wrapping shared secret: %w", err)
	}

	wrappedGrantKey, err := cryptox.WrapKey(grantKey, &accessKey)
	if err != nil {
		sharedSecret.Wipe()
		clientHalf.Wipe()
		serverHalf.Wipe()
		return nil, nil, fmt.Errorf("wrapping grant key: %w", err)
	}

	now := time.Now().UTC()
	reg := &AccessRegistration{
		ID:                              uuid.New(),
		GrantID:                         grant.ID,
		Created:                         now,
		LastUsed:                        now,
		ClientHalfKeyEncryptedAccessKey: serverHalf.Bytes(),
		AccessKeyEncryptedSharedSecret:  wrappedSecret.Marshal(),
		AccessKeyEncryptedGrantKey:      wrappedGrantKey.Marshal(),
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		sharedSecret.Wipe()
		clientHalf.Wipe()
		serverHalf.Wipe()
		return nil, nil, fmt.Errorf("error creating registration: %w", err)
	}

	token := &auth.ClientAccessToken{
		ID:                 reg.ID,
		AccessTokenHalfKey: clientHalf,
		SharedSecret:       sharedSecret,
	}

	s.logger.Info(ctx, "access token issued", "registration_id", reg.ID, "grant_id", grant.ID)
	return reg, token, nil
}

func (s *Service) GetRegistration(ctx context.Context, id uuid.UUID) (*AccessRegistration, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByGrant(ctx context.Context, grantID uuid.UUID) ([]*AccessRegistration, error) {
	return s.repo.ListByGrant(ctx, grantID)
}

func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "access registration revoked", "registration_id", id)
	return nil
}
