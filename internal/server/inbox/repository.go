package inbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, entry *InboxEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*InboxEntry, error)
	ListByDrive(ctx context.Context, driveID uuid.UUID) ([]*InboxEntry, error)
	List(ctx context.Context) ([]*InboxEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
