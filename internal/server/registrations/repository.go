package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, reg *AccessRegistration) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessRegistration, error)
	ListByGrant(ctx context.Context, grantID uuid.UUID) ([]*AccessRegistration, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	// TouchLastUsed is best-effort bookkeeping; callers may ignore its error.
	TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error
}
