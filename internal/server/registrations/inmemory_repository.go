package registrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
)

type InMemoryRepository struct {
	mu   sync.RWMutex
	regs map[uuid.UUID]*AccessRegistration
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{regs: make(map[uuid.UUID]*AccessRegistration)}
}

func (r *InMemoryRepository) Create(ctx context.Context, reg *AccessRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regs[reg.ID]; ok {
		return common.ErrDuplicateID
	}
	c := *reg
	r.regs[reg.ID] = &c
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*AccessRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *reg
	return &c, nil
}

func (r *InMemoryRepository) ListByGrant(ctx context.Context, grantID uuid.UUID) ([]*AccessRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*AccessRegistration
	for _, reg := range r.regs {
		if reg.GrantID == grantID {
			c := *reg
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created.Before(result[j].Created) })
	return result, nil
}

func (r *InMemoryRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return common.ErrorNotFound
	}
	reg.IsRevoked = true
	return nil
}

func (r *InMemoryRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return common.ErrorNotFound
	}
	reg.LastUsed = when
	return nil
}
