package grants

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
)

type InMemoryRepository struct {
	mu     sync.RWMutex
	grants map[uuid.UUID]*ExchangeGrant
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{grants: make(map[uuid.UUID]*ExchangeGrant)}
}

func clone(g *ExchangeGrant) *ExchangeGrant {
	c := *g
	c.DriveGrants = append([]DriveGrant(nil), g.DriveGrants...)
	return &c
}

func (r *InMemoryRepository) Create(ctx context.Context, grant *ExchangeGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[grant.ID]; ok {
		return common.ErrDuplicateID
	}
	r.grants[grant.ID] = clone(grant)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*ExchangeGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grant, ok := r.grants[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(grant), nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*ExchangeGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*ExchangeGrant, 0, len(r.grants))
	for _, g := range r.grants {
		result = append(result, clone(g))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created.Before(result[j].Created) })
	return result, nil
}

func (r *InMemoryRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[id]
	if !ok {
		return common.ErrorNotFound
	}
	grant.IsRevoked = true
	grant.Modified = time.Now().UTC()
	return nil
}
