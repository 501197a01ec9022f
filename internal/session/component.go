package session

import (
	"context"
	"sync"
	"time"

	"github.com/example/fare-finder/internal/form"
	"github.com/example/fare-finder/internal/observability"
	"github.com/example/fare-finder/internal/submission"
)

// Component is one mounted prediction form: its fields and its submission machine.
type Component struct {
	ID   string
	ctrl *submission.Controller

	mu       sync.Mutex
	fields   form.Fields
	lastSeen time.Time
}

func newComponent(id string, ctrl *submission.Controller) *Component {
	return &Component{ID: id, ctrl: ctrl, fields: form.Defaults(), lastSeen: time.Now()}
}

// Change applies one input-change event. Unknown control names are rejected.
func (c *Component) Change(name, raw string) error {
	field, err := form.ParseField(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	coerced := c.fields.Set(field, raw)
	c.lastSeen = time.Now()
	c.mu.Unlock()
	if coerced {
		observability.FieldCoercions.WithLabelValues(field.String()).Inc()
	}
	return nil
}

// Fields returns a copy of the current values.
func (c *Component) Fields() form.Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

// Submit snapshots the fields and runs one prediction attempt.
func (c *Component) Submit(ctx context.Context) submission.Attempt {
	snapshot := c.touch()
	return c.ctrl.Submit(ctx, snapshot)
}

func (c *Component) State() submission.State { return c.ctrl.State() }

// Watch registers a state-change callback on the submission machine.
func (c *Component) Watch(fn func(submission.State)) { c.ctrl.Watch(fn) }

func (c *Component) touch() form.Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	return c.fields
}

func (c *Component) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Component) close() { c.ctrl.Close() }
