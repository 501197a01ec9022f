package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/fare-finder/internal/observability"
	"github.com/example/fare-finder/internal/submission"
)

// Registry owns the form components of live browser sessions. Nothing is persisted;
// a component is dropped when its session goes idle for longer than the TTL.
type Registry struct {
	predictor submission.Predictor
	timeout   time.Duration
	ttl       time.Duration
	logger    *slog.Logger
	onMount   func(*Component)

	mu         sync.RWMutex
	components map[string]*Component
}

type Config struct {
	Predictor submission.Predictor
	Timeout   time.Duration
	TTL       time.Duration
	Logger    *slog.Logger
	// OnMount runs once for every new component, before it is visible to callers.
	OnMount func(*Component)
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &Registry{
		predictor:  cfg.Predictor,
		timeout:    cfg.Timeout,
		ttl:        cfg.TTL,
		logger:     cfg.Logger,
		onMount:    cfg.OnMount,
		components: make(map[string]*Component),
	}
}

// Get returns the component for id, if it is still alive.
func (r *Registry) Get(id string) (*Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	return c, ok
}

// Mount returns the component for id or creates a fresh one under a new id.
func (r *Registry) Mount(id string) *Component {
	if c, ok := r.Get(id); ok {
		return c
	}
	id = uuid.NewString()
	logger := r.logger.With("session_id", id)
	c := newComponent(id, submission.NewController(r.predictor,
		submission.WithTimeout(r.timeout),
		submission.WithLogger(logger),
	))
	if r.onMount != nil {
		r.onMount(c)
	}

	r.mu.Lock()
	r.components[id] = c
	n := len(r.components)
	r.mu.Unlock()

	observability.SessionsActive.Set(float64(n))
	logger.Debug("form mounted")
	return c
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// Reap discards components idle for longer than the TTL and returns how many went.
func (r *Registry) Reap(now time.Time) int {
	var dead []*Component
	r.mu.Lock()
	for id, c := range r.components {
		if now.Sub(c.idleSince()) > r.ttl {
			dead = append(dead, c)
			delete(r.components, id)
		}
	}
	n := len(r.components)
	r.mu.Unlock()

	for _, c := range dead {
		c.close()
	}
	observability.SessionsActive.Set(float64(n))
	return len(dead)
}

// Run reaps on a ticker until ctx is done, then discards every component.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-t.C:
			if n := r.Reap(now); n > 0 {
				r.logger.Info("sessions reaped", "count", n)
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.components
	r.components = make(map[string]*Component)
	r.mu.Unlock()
	for _, c := range all {
		c.close()
	}
	observability.SessionsActive.Set(0)
}
