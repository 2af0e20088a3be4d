package drives

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
)

// InMemoryRepository is a map-backed Repository used in tests and in the
// in-memory repository manager.
type InMemoryRepository struct {
	mu     sync.RWMutex
	drives map[uuid.UUID]*Drive
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{drives: make(map[uuid.UUID]*Drive)}
}

func (r *InMemoryRepository) Create(ctx context.Context, drive *Drive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drives[drive.ID]; ok {
		return common.ErrDuplicateID
	}
	c := *drive
	r.drives[drive.ID] = &c
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Drive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	drive, ok := r.drives[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *drive
	return &c, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Drive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Drive, 0, len(r.drives))
	for _, d := range r.drives {
		c := *d
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created.Before(result[j].Created) })
	return result, nil
}
