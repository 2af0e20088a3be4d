package inbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/connections"
	"github.com/hostvault/hostvault/internal/server/grants"
	"github.com/hostvault/hostvault/internal/server/payloads"
	"github.com/hostvault/hostvault/internal/server/permissions"
	"github.com/hostvault/hostvault/internal/server/transit"
)

type Service struct {
	repo        Repository
	connections *connections.Service
	blobs       payloads.Store
	logger      logging.Logger
}

func NewService(repo Repository, conns *connections.Service, blobs payloads.Store, logger logging.Logger) *Service {
	return &Service{
		repo:        repo,
		connections: conns,
		blobs:       blobs,
		logger:      logger.With("module", "inbox"),
	}
}

// Commit records a finished inbound transfer. It satisfies the receiver's
// committer contract.
func (s *Service) Commit(ctx context.Context, ct *transit.CompletedTransfer) error {
	entry := &InboxEntry{
		ID:              uuid.New(),
		FileID:          ct.Instructions.FileID,
		TargetDriveID:   ct.Instructions.TargetDriveID,
		Sender:          ct.Sender,
		Received:        ct.ReceivedAt,
		KeyHeaderCipher: ct.Instructions.KeyHeaderCipher,
		PayloadKey:      ct.PayloadKey,
		MetadataKey:     ct.MetadataKey,
		ThumbnailKeys:   ct.ThumbnailKeys,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("error saving inbox entry: %w", err)
	}

	s.logger.Info(ctx, "inbox entry created",
		"entry_id", entry.ID, "file_id", entry.FileID, "sender", entry.Sender)
	return nil
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*InboxEntry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*InboxEntry, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByDrive(ctx context.Context, driveID uuid.UUID) ([]*InboxEntry, error) {
	return s.repo.ListByDrive(ctx, driveID)
}

// QueryKeyHeader re-encrypts an entry's key header for the caller. The
// stored header is wrapped under the sending connection's shared secret;
// the caller gets it back wrapped under their own. The plaintext header
// never leaves this call.
func (s *Service) QueryKeyHeader(ctx context.Context, id uuid.UUID, permCtx *permissions.Context) ([]byte, error) {
	if !permCtx.IsOwner() && !permCtx.HasPermission(grants.PermissionRead) {
		return nil, common.ErrPermissionDenied
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	icr, err := s.connections.GetConnectionRegistration(ctx, entry.Sender)
	if err != nil {
		return nil, fmt.Errorf("no connection for sender %s: %w", entry.Sender, err)
	}

	icrSecret := icr.ICRSharedSecret()
	defer icrSecret.Wipe()

	return transit.TransformKeyHeader(entry.KeyHeaderCipher, &icrSecret, permCtx.SharedSecret())
}

// GetPayload streams back a staged part. Authorization mirrors
// QueryKeyHeader: owners and readers only.
func (s *Service) GetPayload(ctx context.Context, id uuid.UUID, permCtx *permissions.Context) ([]byte, error) {
	if !permCtx.IsOwner() && !permCtx.HasPermission(grants.PermissionRead) {
		return nil, common.ErrPermissionDenied
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.blobs.Get(ctx, entry.PayloadKey)
}

// Delete removes the entry and its staged blobs.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	keys := append([]string{entry.PayloadKey, entry.MetadataKey}, entry.ThumbnailKeys...)
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error(ctx, "deleting inbox blob", "key", key, "error", err)
		}
	}

	return s.repo.Delete(ctx, id)
}
