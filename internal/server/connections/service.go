package connections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
)

type Service struct {
	repo   Repository
	logger logging.Logger
}

func NewService(repo Repository, logger logging.Logger) *Service {
	return &Service{repo: repo, logger: logger.With("module", "connections")}
}

// Connect records a connection with a remote identity: the access token
// that host issued to us plus the negotiated connection shared secret.
// The token is consumed; its secrets are copied and the original should be
// wiped by the caller.
func (s *Service) Connect(ctx context.Context, remoteIdentity string, token *auth.ClientAccessToken) (*IdentityConnectionRegistration, error) {
	reg := &IdentityConnectionRegistration{
		ID:                 uuid.New(),
		RemoteIdentity:     remoteIdentity,
		Created:            time.Now().UTC(),
		Connected:          true,
		RemoteTokenID:      token.ID,
		RemoteTokenHalfKey: append([]byte(nil), token.AccessTokenHalfKey.Bytes()...),
		SharedSecret:       append([]byte(nil), token.SharedSecret.Bytes()...),
	}

	if err := s.repo.Upsert(ctx, reg); err != nil {
		return nil, fmt.Errorf("error saving connection: %w", err)
	}

	s.logger.Info(ctx, "identity connected", "remote", remoteIdentity)
	return reg, nil
}

// GetConnectionRegistration returns the registration for a remote identity.
func (s *Service) GetConnectionRegistration(ctx context.Context, remoteIdentity string) (*IdentityConnectionRegistration, error) {
	return s.repo.GetByIdentity(ctx, remoteIdentity)
}

func (s *Service) List(ctx context.Context) ([]*IdentityConnectionRegistration, error) {
	return s.repo.List(ctx)
}

func (s *Service) Disconnect(ctx context.Context, remoteIdentity string) error {
	if err := s.repo.Disconnect(ctx, remoteIdentity); err != nil {
		return err
	}
	s.logger.Info(ctx, "identity disconnected", "remote", remoteIdentity)
	return nil
}
