package submission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/fare-finder/internal/form"
	"github.com/example/fare-finder/internal/observability"
	"github.com/example/fare-finder/internal/predict"
)

// DefaultTimeout bounds one prediction attempt when no WithTimeout is given.
const DefaultTimeout = 10 * time.Second

// Predictor is the remote fare prediction call.
type Predictor interface {
	Predict(ctx context.Context, fields form.Fields) (float64, error)
}

// Attempt describes one resolved submission.
type Attempt struct {
	ID         string
	Fields     form.Fields
	State      State
	Fare       float64
	Err        error
	Started    time.Time
	Duration   time.Duration
	Superseded bool
}

// Controller drives the submission machine for a single form instance.
// A new Submit cancels the attempt in flight; the cancelled attempt's result
// is discarded and never reaches the state.
type Controller struct {
	predictor Predictor
	timeout   time.Duration
	logger    *slog.Logger

	// notifyMu orders watcher delivery and is always taken before mu.
	notifyMu sync.Mutex
	mu       sync.Mutex
	state    State
	seq      uint64
	cancel   context.CancelFunc
	watchers []func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout bounds each attempt. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger attempts are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithWatcher registers a callback invoked after every state change.
func WithWatcher(fn func(State)) Option {
	return func(c *Controller) { c.watchers = append(c.watchers, fn) }
}

// NewController returns an Idle controller that predicts through p.
func NewController(p Predictor, opts ...Option) *Controller {
	c := &Controller{predictor: p, timeout: DefaultTimeout, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch adds a state-change callback after construction. Callbacks run outside the
// controller lock, one transition at a time and in order.
func (c *Controller) Watch(fn func(State)) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

// Submit performs exactly one prediction request for the snapshot and blocks until
// it resolves. The machine is Pending for the whole call and leaves Pending on every
// exit path unless a newer Submit took over.
func (c *Controller) Submit(ctx context.Context, snapshot form.Fields) Attempt {
	attempt := Attempt{ID: uuid.NewString(), Fields: snapshot, Started: time.Now()}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.notifyMu.Lock()
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	c.cancel = cancel
	watchers := c.set(pending())
	c.mu.Unlock()
	notify(watchers, pending())
	c.notifyMu.Unlock()

	fare, err := c.resolve(reqCtx, snapshot)
	attempt.Duration = time.Since(attempt.Started)
	attempt.Fare, attempt.Err = fare, err
	if err != nil {
		attempt.State = failed(predict.FailureMessage(err))
	} else {
		attempt.State = succeeded(predict.SuccessMessage(fare))
	}

	c.notifyMu.Lock()
	c.mu.Lock()
	if seq != c.seq {
		attempt.Superseded = true
		c.mu.Unlock()
		c.notifyMu.Unlock()
		observability.PredictionsTotal.WithLabelValues("superseded").Inc()
		c.logger.Debug("prediction superseded", "attempt_id", attempt.ID)
		return attempt
	}
	c.cancel = nil
	watchers = c.set(attempt.State)
	c.mu.Unlock()
	notify(watchers, attempt.State)
	c.notifyMu.Unlock()

	observability.PredictionsTotal.WithLabelValues(attempt.State.Phase.String()).Inc()
	observability.PredictionLatency.Observe(attempt.Duration.Seconds())
	if err != nil {
		c.logger.Warn("prediction failed", "attempt_id", attempt.ID, "error", err, "duration_ms", attempt.Duration.Milliseconds())
	} else {
		c.logger.Info("prediction succeeded", "attempt_id", attempt.ID, "fare", fare, "duration_ms", attempt.Duration.Milliseconds())
	}
	return attempt
}

// Close cancels any attempt in flight and drops its result.
func (c *Controller) Close() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	var watchers []func(State)
	if c.state.Loading() {
		watchers = c.set(State{})
	}
	c.mu.Unlock()
	notify(watchers, State{})
}

// resolve turns a predictor panic into a failure so Pending is always left.
func (c *Controller) resolve(ctx context.Context, snapshot form.Fields) (fare float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("panic recovered", "error", rec)
			err = errPredictorPanic
		}
	}()
	return c.predictor.Predict(ctx, snapshot)
}

var errPredictorPanic = errors.New("predictor panicked")

// set stores s and returns the watchers to notify once mu is released.
// It must be called with mu held.
func (c *Controller) set(s State) []func(State) {
	c.state = s
	return append(([]func(State))(nil), c.watchers...)
}

func notify(watchers []func(State), s State) {
	for _, fn := range watchers {
		fn(s)
	}
}
