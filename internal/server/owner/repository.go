package owner

import "context"

type Repository interface {
	// Get returns the owner profile, or common.ErrorNotFound before provisioning.
	Get(ctx context.Context) (*Profile, error)
	// Save stores the profile. There is exactly one per host.
	Save(ctx context.Context, profile *Profile) error
}
