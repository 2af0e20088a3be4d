package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/connections"
	"github.com/hostvault/hostvault/internal/server/payloads"
	"github.com/hostvault/hostvault/internal/server/transit"
)

// Options tune the delivery loop. Zero values fall back to defaults.
type Options struct {
	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	ClaimLease  time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 30 * time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 6 * time.Hour
	}
	if o.ClaimLease <= 0 {
		o.ClaimLease = 5 * time.Minute
	}
	return o
}

type Service struct {
	repo        Repository
	connections *connections.Service
	blobs       payloads.Store
	sender      *transit.Sender
	opts        Options
	logger      logging.Logger
}

func NewService(repo Repository, conns *connections.Service, blobs payloads.Store, sender *transit.Sender, opts Options, logger logging.Logger) *Service {
	return &Service{
		repo:        repo,
		connections: conns,
		blobs:       blobs,
		sender:      sender,
		opts:        opts.withDefaults(),
		logger:      logger.With("module", "outbox"),
	}
}

// Enqueue stages the package and creates one pending item per recipient.
// The key header is wrapped for each recipient here, while the plaintext
// is still in scope; nothing secret is persisted in clear. Recipients
// without an active connection are skipped with an error in the map.
func (s *Service) Enqueue(ctx context.Context, pkg *transit.FilePackage, recipients []string, priority int) ([]*Item, map[string]error, error) {
	payloadKey := outboundKey(pkg.FileID, transit.FilePartPayload)
	metadataKey := outboundKey(pkg.FileID, transit.FilePartMetadata)
	if err := s.blobs.Put(ctx, payloadKey, pkg.Payload); err != nil {
		return nil, nil, fmt.Errorf("staging payload: %w", err)
	}
	if err := s.blobs.Put(ctx, metadataKey, pkg.Metadata); err != nil {
		return nil, nil, fmt.Errorf("staging metadata: %w", err)
	}
	var thumbnailKeys []string
	for i, thumbnail := range pkg.Thumbnails {
		key := outboundThumbnailKey(pkg.FileID, i)
		if err := s.blobs.Put(ctx, key, thumbnail); err != nil {
			return nil, nil, fmt.Errorf("staging thumbnail %d: %w", i, err)
		}
		thumbnailKeys = append(thumbnailKeys, key)
	}

	now := time.Now().UTC()
	var items []*Item
	failed := make(map[string]error)

	for _, recipient := range recipients {
		cipher, err := s.wrapForRecipient(ctx, pkg.KeyHeader, recipient)
		if err != nil {
			failed[recipient] = err
			continue
		}

		item := &Item{
			ID:              uuid.New(),
			FileID:          pkg.FileID,
			TargetDriveID:   pkg.TargetDriveID,
			Recipient:       recipient,
			KeyHeaderCipher: cipher,
			PayloadKey:      payloadKey,
			MetadataKey:     metadataKey,
			ThumbnailKeys:   thumbnailKeys,
			Priority:        priority,
			State:           StatePending,
			FirstAdded:      now,
			NextAttempt:     now,
		}
		if err := s.repo.Enqueue(ctx, item); err != nil {
			failed[recipient] = err
			continue
		}
		items = append(items, item)
	}

	// Nothing queued means nothing will ever release the staged blobs.
	if len(items) == 0 {
		s.releaseBlobsIfUnreferenced(ctx, pkg.FileID)
	}

	s.logger.Info(ctx, "file enqueued",
		"file_id", pkg.FileID, "recipients", len(items), "skipped", len(failed))
	return items, failed, nil
}

func (s *Service) wrapForRecipient(ctx context.Context, header *cryptox.SensitiveBytes, recipient string) ([]byte, error) {
	icr, err := s.connections.GetConnectionRegistration(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("no connection for %s: %w", recipient, err)
	}
	secret := icr.ICRSharedSecret()
	defer secret.Wipe()

	envelope, err := cryptox.WrapKey(header, &secret)
	if err != nil {
		return nil, err
	}
	return envelope.Marshal(), nil
}

// Drain claims due items and attempts delivery, one pass. It is the single
// code path for both scheduled sweeps and explicit stoking; both end up
// here so behavior cannot diverge.
func (s *Service) Drain(ctx context.Context) ([]transit.SendResult, error) {
	items, err := s.repo.DequeueBatch(ctx, time.Now().UTC(), s.opts.BatchSize, s.opts.ClaimLease)
	if err != nil {
		return nil, fmt.Errorf("claiming outbox items: %w", err)
	}

	var results []transit.SendResult
	for _, item := range items {
		result := s.attempt(ctx, item)
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) attempt(ctx context.Context, item *Item) transit.SendResult {
	pkg, err := s.loadPackage(ctx, item)
	if err != nil {
		s.logger.Error(ctx, "loading staged package", "item_id", item.ID, "error", err)
		// A missing blob will not come back; a store error might.
		if errors.Is(err, common.ErrorNotFound) {
			s.dead(ctx, item, fmt.Sprintf("staged parts missing: %v", err))
		} else {
			s.retryOrDead(ctx, item, fmt.Sprintf("staged parts unreadable: %v", err))
		}
		return transit.SendResult{
			Recipient:     item.Recipient,
			Status:        transit.StatusTransientFailure,
			FailureReason: err.Error(),
			Timestamp:     time.Now(),
		}
	}

	result := s.sender.Deliver(ctx, pkg, item.Recipient, item.KeyHeaderCipher)

	switch {
	case result.Success:
		if err := s.repo.MarkDelivered(ctx, item.ID); err != nil {
			s.logger.Error(ctx, "marking delivered", "item_id", item.ID, "error", err)
		}
		s.releaseBlobsIfUnreferenced(ctx, item.FileID)
	case result.ShouldRetry:
		s.retryOrDead(ctx, item, result.FailureReason)
	default:
		s.dead(ctx, item, result.FailureReason)
	}
	return result
}

// retryOrDead books one more attempt: reschedule with backoff, or give
// up once the budget is spent.
func (s *Service) retryOrDead(ctx context.Context, item *Item, reason string) {
	attempts := item.Attempts + 1
	if attempts >= s.opts.MaxAttempts {
		s.dead(ctx, item, reason)
		return
	}
	next := time.Now().UTC().Add(s.backoff(attempts))
	if err := s.repo.Reschedule(ctx, item.ID, attempts, next, reason); err != nil {
		s.logger.Error(ctx, "rescheduling", "item_id", item.ID, "error", err)
	}
}

// backoff doubles per attempt from the base, capped.
func (s *Service) backoff(attempts int) time.Duration {
	d := s.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= s.opts.BackoffCap {
			return s.opts.BackoffCap
		}
	}
	if d > s.opts.BackoffCap {
		d = s.opts.BackoffCap
	}
	return d
}

func (s *Service) dead(ctx context.Context, item *Item, reason string) {
	if err := s.repo.MarkDead(ctx, item.ID, reason); err != nil {
		s.logger.Error(ctx, "marking dead", "item_id", item.ID, "error", err)
	}
	s.logger.Warn(ctx, "delivery abandoned",
		"item_id", item.ID, "file_id", item.FileID, "recipient", item.Recipient, "reason", reason)
}

func (s *Service) loadPackage(ctx context.Context, item *Item) (*transit.FilePackage, error) {
	payload, err := s.blobs.Get(ctx, item.PayloadKey)
	if err != nil {
		return nil, err
	}
	metadata, err := s.blobs.Get(ctx, item.MetadataKey)
	if err != nil {
		return nil, err
	}
	pkg := &transit.FilePackage{
		FileID:        item.FileID,
		TargetDriveID: item.TargetDriveID,
		Payload:       payload,
		Metadata:      metadata,
	}
	for _, key := range item.ThumbnailKeys {
		thumbnail, err := s.blobs.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		pkg.Thumbnails = append(pkg.Thumbnails, thumbnail)
	}
	return pkg, nil
}

// releaseBlobsIfUnreferenced drops the staged parts once no item
// references the file anymore.
func (s *Service) releaseBlobsIfUnreferenced(ctx context.Context, fileID uuid.UUID) {
	n, err := s.repo.CountByFile(ctx, fileID)
	if err != nil {
		s.logger.Error(ctx, "counting file references", "file_id", fileID, "error", err)
		return
	}
	if n > 0 {
		return
	}
	if err := s.blobs.DeletePrefix(ctx, outboundPrefix(fileID)); err != nil {
		s.logger.Error(ctx, "releasing staged blobs", "file_id", fileID, "error", err)
	}
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, offset, limit int) ([]*Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *Service) SetPriority(ctx context.Context, id uuid.UUID, priority int) error {
	return s.repo.SetPriority(ctx, id, priority)
}

// Remove deletes an item and, when it was the last reference, the staged
// blobs with it.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.releaseBlobsIfUnreferenced(ctx, item.FileID)
	return nil
}

func outboundKey(fileID uuid.UUID, part transit.FilePart) string {
	return outboundPrefix(fileID) + part.String()
}

func outboundThumbnailKey(fileID uuid.UUID, n int) string {
	return fmt.Sprintf("%sthumbnail/%d", outboundPrefix(fileID), n)
}

func outboundPrefix(fileID uuid.UUID) string {
	return fmt.Sprintf("transit/outbound/%s/", fileID)
}
