package connections

import "context"

type Repository interface {
	Upsert(ctx context.Context, reg *IdentityConnectionRegistration) error
	GetByIdentity(ctx context.Context, remoteIdentity string) (*IdentityConnectionRegistration, error)
	List(ctx context.Context) ([]*IdentityConnectionRegistration, error)
	Disconnect(ctx context.Context, remoteIdentity string) error
}
