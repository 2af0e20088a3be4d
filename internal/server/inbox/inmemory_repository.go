package inbox

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
)

type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*InboxEntry
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[uuid.UUID]*InboxEntry)}
}

func (r *InMemoryRepository) Create(ctx context.Context, entry *InboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; ok {
		return common.ErrDuplicateID
	}
	c := *entry
	r.entries[entry.ID] = &c
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*InboxEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *entry
	return &c, nil
}

func (r *InMemoryRepository) ListByDrive(ctx context.Context, driveID uuid.UUID) ([]*InboxEntry, error) {
	return r.list(func(e *InboxEntry) bool { return e.TargetDriveID == driveID })
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*InboxEntry, error) {
	return r.list(func(*InboxEntry) bool { return true })
}

func (r *InMemoryRepository) list(match func(*InboxEntry) bool) ([]*InboxEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*InboxEntry
	for _, entry := range r.entries {
		if match(entry) {
			c := *entry
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Received.Before(result[j].Received) })
	return result, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.entries, id)
	return nil
}
