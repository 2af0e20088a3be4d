package grants

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, grant *ExchangeGrant) error
	GetByID(ctx context.Context, id uuid.UUID) (*ExchangeGrant, error)
	List(ctx context.Context) ([]*ExchangeGrant, error)
	// Revoke sets IsRevoked and bumps Modified. The record is kept for audit.
	Revoke(ctx context.Context, id uuid.UUID) error
}
