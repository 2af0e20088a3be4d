package drives

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, drive *Drive) error
	GetByID(ctx context.Context, id uuid.UUID) (*Drive, error)
	List(ctx context.Context) ([]*Drive, error)
}
