package owner

import (
	"context"
	"sync"

	"github.com/hostvault/hostvault/internal/common"
)

type InMemoryRepository struct {
	mu      sync.RWMutex
	profile *Profile
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Get(ctx context.Context) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.profile == nil {
		return nil, common.ErrorNotFound
	}
	c := *r.profile
	return &c, nil
}

func (r *InMemoryRepository) Save(ctx context.Context, profile *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *profile
	r.profile = &c
	return nil
}
