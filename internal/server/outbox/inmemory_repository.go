package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
)

type InMemoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Item
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[uuid.UUID]*Item)}
}

func (r *InMemoryRepository) Enqueue(ctx context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.FileID == item.FileID && existing.Recipient == item.Recipient {
			existing.KeyHeaderCipher = item.KeyHeaderCipher
			if item.Priority > existing.Priority {
				existing.Priority = item.Priority
			}
			existing.State = StatePending
			if item.NextAttempt.Before(existing.NextAttempt) {
				existing.NextAttempt = item.NextAttempt
			}
			return nil
		}
	}

	c := *item
	r.items[item.ID] = &c
	return nil
}

func (r *InMemoryRepository) DequeueBatch(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*Item
	for _, item := range r.items {
		if item.State == StatePending && !item.NextAttempt.After(now) {
			due = append(due, item)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].NextAttempt.Before(due[j].NextAttempt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	result := make([]*Item, 0, len(due))
	for _, item := range due {
		item.NextAttempt = now.Add(lease)
		c := *item
		result = append(result, &c)
	}
	return result, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *item
	return &c, nil
}

func (r *InMemoryRepository) List(ctx context.Context, offset, limit int) ([]*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Item, 0, len(r.items))
	for _, item := range r.items {
		c := *item
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FirstAdded.Before(all[j].FirstAdded) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *InMemoryRepository) CountByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.FileID == fileID {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return r.Delete(ctx, id)
}

func (r *InMemoryRepository) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastFailure string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	item.Attempts = attempts
	item.NextAttempt = nextAttempt
	item.LastAttempt = time.Now()
	item.LastFailure = lastFailure
	return nil
}

func (r *InMemoryRepository) MarkDead(ctx context.Context, id uuid.UUID, lastFailure string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	item.State = StateDead
	item.LastAttempt = time.Now()
	item.LastFailure = lastFailure
	return nil
}

func (r *InMemoryRepository) SetPriority(ctx context.Context, id uuid.UUID, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return common.ErrorNotFound
	}
	item.Priority = priority
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}
