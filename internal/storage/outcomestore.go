package storage

import (
	"context"
	"sync"

	"github.com/example/fare-finder/internal/models"
)

// OutcomeStore keeps a log of resolved prediction attempts.
type OutcomeStore interface {
	SaveOutcome(ctx context.Context, o models.Outcome) error
	RecentOutcomes(ctx context.Context, limit int) ([]models.Outcome, error)
}

// MemoryStore is a bounded in-process log, newest last.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes []models.Outcome
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) SaveOutcome(_ context.Context, o models.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	if over := len(m.outcomes) - m.capacity; over > 0 {
		m.outcomes = append(m.outcomes[:0:0], m.outcomes[over:]...)
	}
	return nil
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (m *MemoryStore) RecentOutcomes(_ context.Context, limit int) ([]models.Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.outcomes) {
		limit = len(m.outcomes)
	}
	out := make([]models.Outcome, 0, limit)
	for i := len(m.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.outcomes[i])
	}
	return out, nil
}
