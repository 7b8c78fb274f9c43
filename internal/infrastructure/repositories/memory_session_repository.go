package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type sessionEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// MemorySessionRepository keeps per-browser state in memory, keyed by session id.
type MemorySessionRepository[T any] struct {
	sessions map[string]*sessionEntry[T]
	now      func() time.Time
	mu       sync.RWMutex
}

func NewMemorySessionRepository[T any]() *MemorySessionRepository[T] {
	return &MemorySessionRepository[T]{
		sessions: make(map[string]*sessionEntry[T]),
		now:      time.Now,
	}
}

func (r *MemorySessionRepository[T]) Save(ctx context.Context, id string, value T) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[id] = &sessionEntry[T]{value: value, lastSeen: r.now()}
	return nil
}

// FindByID also marks the session as used.
func (r *MemorySessionRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.sessions[id]
	if !exists {
		var zero T
		return zero, fmt.Errorf("session not found: %s", id)
	}
	entry.lastSeen = r.now()

	return entry.value, nil
}

func (r *MemorySessionRepository[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Sweep removes sessions idle for longer than maxIdle and returns what it removed.
func (r *MemorySessionRepository[T]) Sweep(ctx context.Context, maxIdle time.Duration) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	var removed []T
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			removed = append(removed, entry.value)
			delete(r.sessions, id)
		}
	}
	return removed
}
