package connections

import (
	"context"
	"sort"
	"sync"

	"github.com/hostvault/hostvault/internal/common"
)

// InMemoryRepository is the explicit, thread-safe keyed store for
// connection registrations. It is owned by whoever constructs it and
// passed by handle; there is no ambient global registry.
type InMemoryRepository struct {
	mu   sync.RWMutex
	regs map[string]*IdentityConnectionRegistration
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{regs: make(map[string]*IdentityConnectionRegistration)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, reg *IdentityConnectionRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *reg
	r.regs[reg.RemoteIdentity] = &c
	return nil
}

func (r *InMemoryRepository) GetByIdentity(ctx context.Context, remoteIdentity string) (*IdentityConnectionRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[remoteIdentity]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *reg
	return &c, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*IdentityConnectionRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*IdentityConnectionRegistration, 0, len(r.regs))
	for _, reg := range r.regs {
		c := *reg
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RemoteIdentity < result[j].RemoteIdentity })
	return result, nil
}

func (r *InMemoryRepository) Disconnect(ctx context.Context, remoteIdentity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[remoteIdentity]
	if !ok {
		return common.ErrorNotFound
	}
	reg.Connected = false
	return nil
}
