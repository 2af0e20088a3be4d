package transit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/payloads"
)

type transferState int

const (
	stateAccumulating transferState = iota
	stateComplete
	stateRejected
	stateAborted
)

type transfer struct {
	// mu guards every field below. Parts of one stream may arrive on
	// concurrent goroutines, and the garbage collector runs on its own.
	mu           sync.Mutex
	id           uuid.UUID
	sender       string
	started      time.Time
	state        transferState
	reason       string
	received     map[FilePart]bool
	instructions *TransferInstructions
	blobKeys     []string
	thumbKeys    []string
}

func (t *transfer) isFinal() bool {
	return t.state != stateAccumulating
}

// CompletedTransfer is handed to the Committer once every required part of
// a stream has arrived and passed the filters.
type CompletedTransfer struct {
	TransferID    uuid.UUID
	Sender        string
	Instructions  *TransferInstructions
	PayloadKey    string
	MetadataKey   string
	ThumbnailKeys []string
	ReceivedAt    time.Time
}

// Committer persists a finished transfer, typically into the inbox.
type Committer interface {
	Commit(ctx context.Context, ct *CompletedTransfer) error
}

// Receiver accepts inbound multipart streams part by part. A transfer that
// trips a filter is aborted; one that finishes incomplete or malformed is
// quarantined. Either way nothing of it reaches the inbox, and staged blobs
// are deleted.
type Receiver struct {
	// mu guards the transfers map only; per-transfer state has its own lock
	mu        sync.Mutex
	transfers map[uuid.UUID]*transfer

	filters   []PartFilter
	blobs     payloads.Store
	committer Committer
	maxAge    time.Duration
	logger    logging.Logger
}

func NewReceiver(blobs payloads.Store, committer Committer, filters []PartFilter, maxAge time.Duration, logger logging.Logger) *Receiver {
	return &Receiver{
		transfers: make(map[uuid.UUID]*transfer),
		filters:   filters,
		blobs:     blobs,
		committer: committer,
		maxAge:    maxAge,
		logger:    logger.With("module", "transit.receiver"),
	}
}

// Begin opens a new inbound transfer and returns its id.
func (r *Receiver) Begin(ctx context.Context, sender string) uuid.UUID {
	t := &transfer{
		id:       uuid.New(),
		sender:   sender,
		started:  time.Now(),
		received: make(map[FilePart]bool),
	}

	r.mu.Lock()
	r.transfers[t.id] = t
	r.mu.Unlock()

	r.logger.Debug(ctx, "transfer started", "transfer_id", t.id, "sender", sender)
	return t.id
}

// AcceptPart stages one part of an open transfer. Once a transfer has
// reached a final state, further parts are drained without effect so the
// sender can finish writing its stream.
func (r *Receiver) AcceptPart(ctx context.Context, transferID uuid.UUID, partName string, data []byte) error {
	r.mu.Lock()
	t, ok := r.transfers[transferID]
	r.mu.Unlock()
	if !ok {
		return common.ErrTransferUnknown
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isFinal() {
		return nil
	}

	part, ok := ParseFilePart(partName)
	if !ok {
		r.reject(ctx, t, fmt.Sprintf("unknown part %q", partName))
		return common.ErrInvalidData
	}

	// thumbnails may repeat; everything else arrives exactly once
	if part != FilePartThumbnail && t.received[part] {
		r.reject(ctx, t, fmt.Sprintf("duplicate part %s", part))
		return common.ErrInvalidData
	}

	for _, f := range r.filters {
		if verdict, why := f.Inspect(part, data); verdict == VerdictAbort {
			r.abort(ctx, t, fmt.Sprintf("filter %s: %s", f.Name(), why))
			return common.ErrTransferAborted
		}
	}

	if part == FilePartInstructions {
		instructions, err := ParseInstructions(data)
		if err != nil {
			r.reject(ctx, t, "malformed instructions")
			return common.ErrInvalidData
		}
		t.instructions = instructions
		if t.sender == "" {
			t.sender = instructions.Sender
		}
		t.received[part] = true
		return nil
	}

	key := blobKey(t.id, part)
	if part == FilePartThumbnail {
		key = thumbnailBlobKey(t.id, len(t.thumbKeys))
	}
	if err := r.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("staging %s: %w", part, err)
	}
	t.blobKeys = append(t.blobKeys, key)
	if part == FilePartThumbnail {
		t.thumbKeys = append(t.thumbKeys, key)
	}
	t.received[part] = true
	return nil
}

// IsComplete reports whether every required part has arrived.
func (r *Receiver) IsComplete(transferID uuid.UUID) bool {
	r.mu.Lock()
	t, ok := r.transfers[transferID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range requiredParts {
		if !t.received[p] {
			return false
		}
	}
	return true
}

// Finalize closes the stream and reports the outcome category back to the
// sender. Completeness is only judged here; a stream may deliver its parts
// in any order.
func (r *Receiver) Finalize(ctx context.Context, transferID uuid.UUID) (AcceptDataStreamReason, error) {
	r.mu.Lock()
	t, ok := r.transfers[transferID]
	r.mu.Unlock()
	if !ok {
		return AcceptReasonQuarantined, common.ErrTransferUnknown
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateAborted:
		r.remove(transferID)
		return AcceptReasonAborted, nil
	case stateRejected:
		r.remove(transferID)
		return AcceptReasonQuarantined, nil
	}

	for _, p := range requiredParts {
		if !t.received[p] {
			r.reject(ctx, t, fmt.Sprintf("missing part %s", p))
			r.remove(transferID)
			return AcceptReasonQuarantined, nil
		}
	}

	ct := &CompletedTransfer{
		TransferID:    t.id,
		Sender:        t.sender,
		Instructions:  t.instructions,
		PayloadKey:    blobKey(t.id, FilePartPayload),
		MetadataKey:   blobKey(t.id, FilePartMetadata),
		ThumbnailKeys: t.thumbKeys,
		ReceivedAt:    time.Now(),
	}

	if err := r.committer.Commit(ctx, ct); err != nil {
		r.logger.Error(ctx, "committing transfer", "transfer_id", t.id, "error", err)
		return AcceptReasonQuarantined, fmt.Errorf("committing transfer: %w", err)
	}

	t.state = stateComplete
	r.remove(transferID)
	r.logger.Info(ctx, "transfer committed", "transfer_id", t.id, "sender", t.sender)
	return AcceptReasonSuccess, nil
}

// CollectGarbage drops transfers that have been open longer than the
// quarantine timeout and deletes whatever they staged.
func (r *Receiver) CollectGarbage(ctx context.Context) int {
	cutoff := time.Now().Add(-r.maxAge)

	r.mu.Lock()
	var stale []*transfer
	for id, t := range r.transfers {
		if t.started.Before(cutoff) {
			stale = append(stale, t)
			delete(r.transfers, id)
		}
	}
	r.mu.Unlock()

	for _, t := range stale {
		// mark rejected under the transfer lock so an in-flight
		// AcceptPart cannot stage another blob after the discard
		t.mu.Lock()
		if !t.isFinal() {
			t.state = stateRejected
			t.reason = "stale"
		}
		r.discardBlobs(ctx, t)
		t.mu.Unlock()
		r.logger.Warn(ctx, "stale transfer collected", "transfer_id", t.id, "sender", t.sender)
	}
	return len(stale)
}

func (r *Receiver) reject(ctx context.Context, t *transfer, reason string) {
	t.state = stateRejected
	t.reason = reason
	r.discardBlobs(ctx, t)
	r.logger.Warn(ctx, "transfer quarantined", "transfer_id", t.id, "sender", t.sender, "reason", reason)
}

func (r *Receiver) abort(ctx context.Context, t *transfer, reason string) {
	t.state = stateAborted
	t.reason = reason
	r.discardBlobs(ctx, t)
	r.logger.Warn(ctx, "transfer aborted", "transfer_id", t.id, "sender", t.sender, "reason", reason)
}

// discardBlobs is called with t.mu held.
func (r *Receiver) discardBlobs(ctx context.Context, t *transfer) {
	for _, key := range t.blobKeys {
		if err := r.blobs.Delete(ctx, key); err != nil {
			r.logger.Error(ctx, "deleting staged blob", "key", key, "error", err)
		}
	}
	t.blobKeys = nil
	t.thumbKeys = nil
}

func (r *Receiver) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.transfers, id)
	r.mu.Unlock()
}

func blobKey(id uuid.UUID, part FilePart) string {
	return fmt.Sprintf("transit/inbound/%s/%s", id, part)
}

func thumbnailBlobKey(id uuid.UUID, n int) string {
	return fmt.Sprintf("transit/inbound/%s/thumbnail/%d", id, n)
}
