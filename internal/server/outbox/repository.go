package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Enqueue inserts the item or, when an item for the same
	// (file, recipient) pair already exists, folds into it: the pair
	// goes back to pending with the higher of the two priorities.
	Enqueue(ctx context.Context, item *Item) error

	// DequeueBatch claims up to limit due pending items. Claimed items
	// have their next attempt pushed out by lease so concurrent
	// processors cannot pick them up again.
	DequeueBatch(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Item, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context, offset, limit int) ([]*Item, error)
	CountByFile(ctx context.Context, fileID uuid.UUID) (int, error)

	// MarkDelivered removes a delivered item.
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastFailure string) error
	MarkDead(ctx context.Context, id uuid.UUID, lastFailure string) error

	SetPriority(ctx context.Context, id uuid.UUID, priority int) error
	Delete(ctx context.Context, id uuid.UUID) error
}
