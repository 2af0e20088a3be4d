// Package outbox is the durable delivery queue for outbound transfers.
// One item represents one file owed to one recipient; re-enqueueing the
// same pair coalesces into the existing item instead of duplicating it.
// Items survive restarts and are retried with exponential backoff until
// delivered, permanently refused, or out of attempts.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending State = "pending"
	StateDead    State = "dead"
)

type Item struct {
	ID            uuid.UUID
	FileID        uuid.UUID
	TargetDriveID uuid.UUID
	Recipient     string

	// KeyHeaderCipher was wrapped for this recipient at enqueue time,
	// while the caller's key material was still in scope. Retries never
	// need the plaintext header again.
	KeyHeaderCipher []byte

	// Blob store keys of the staged outbound parts. Items for the same
	// file share the same blobs.
	PayloadKey    string
	MetadataKey   string
	ThumbnailKeys []string

	Priority    int
	Attempts    int
	State       State
	LastFailure string

	FirstAdded  time.Time
	LastAttempt time.Time
	NextAttempt time.Time
}
