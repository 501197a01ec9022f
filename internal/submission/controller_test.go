package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/fare-finder/internal/form"
	"github.com/example/fare-finder/internal/predict"
)

type fakePredictor struct {
	fare    float64
	err     error
	release chan struct{}
	started chan struct{}
	calls   int
	mu      sync.Mutex
}

func (f *fakePredictor) Predict(ctx context.Context, _ form.Fields) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.fare, f.err
}

type panicPredictor struct{}

func (panicPredictor) Predict(context.Context, form.Fields) (float64, error) { panic("boom") }

func TestSubmitSuccess(t *testing.T) {
	c := NewController(&fakePredictor{fare: 12.5})
	a := c.Submit(context.Background(), form.Defaults())
	if a.State.Phase != Succeeded || a.State.Result != "Predicted Fare: $12.50" || a.State.Error != "" {
		t.Fatalf("unexpected state %+v", a.State)
	}
	if c.State() != a.State {
		t.Fatalf("controller state %+v differs from attempt %+v", c.State(), a.State)
	}
}

func TestSubmitServiceError(t *testing.T) {
	c := NewController(&fakePredictor{err: &predict.ServiceError{Status: 400, Message: "Invalid input"}})
	a := c.Submit(context.Background(), form.Defaults())
	if a.State.Phase != Failed || a.State.Error != "Invalid input" || a.State.Result != "" {
		t.Fatalf("unexpected state %+v", a.State)
	}
}

func TestSubmitTransportErrorClearsLoading(t *testing.T) {
	c := NewController(&fakePredictor{err: predict.ErrTransport})
	a := c.Submit(context.Background(), form.Defaults())
	if a.State.Loading() || c.State().Loading() {
		t.Fatal("loading flag left set after transport failure")
	}
	if a.State.Error == "" {
		t.Fatal("expected a fallback message")
	}
}

func TestSubmitPanicLeavesPending(t *testing.T) {
	c := NewController(panicPredictor{})
	a := c.Submit(context.Background(), form.Defaults())
	if a.State.Phase != Failed || a.State.Error == "" {
		t.Fatalf("unexpected state %+v", a.State)
	}
}

func TestLoadingOnlyWhilePending(t *testing.T) {
	p := &fakePredictor{fare: 9, release: make(chan struct{}), started: make(chan struct{}, 1)}
	var mu sync.Mutex
	var seen []State
	c := NewController(p, WithWatcher(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))
	if c.State().Loading() {
		t.Fatal("idle controller reports loading")
	}

	done := make(chan Attempt)
	go func() { done <- c.Submit(context.Background(), form.Defaults()) }()
	<-p.started
	if !c.State().Loading() {
		t.Fatal("expected loading while request is outstanding")
	}
	close(p.release)
	<-done
	if c.State().Loading() {
		t.Fatal("expected loading cleared after resolution")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0].Phase != Pending || seen[1].Phase != Succeeded {
		t.Fatalf("unexpected transitions %+v", seen)
	}
	for _, s := range seen {
		if s.Result != "" && s.Error != "" {
			t.Fatalf("result and error both set: %+v", s)
		}
	}
}

func TestResubmitClearsPreviousOutcome(t *testing.T) {
	p := &fakePredictor{err: errors.New("down")}
	var seen []State
	c := NewController(p, WithWatcher(func(s State) { seen = append(seen, s) }))
	c.Submit(context.Background(), form.Defaults())
	p.err, p.fare = nil, 4
	c.Submit(context.Background(), form.Defaults())

	if len(seen) != 4 {
		t.Fatalf("expected 4 transitions, got %+v", seen)
	}
	if seen[2] != (State{Phase: Pending}) {
		t.Fatalf("second submit did not reset to a clean pending state: %+v", seen[2])
	}
	if seen[3].Phase != Succeeded || seen[3].Error != "" {
		t.Fatalf("unexpected final state %+v", seen[3])
	}
}

// firstBlocks holds its first call until cancelled and answers later calls at once.
type firstBlocks struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (f *firstBlocks) Predict(ctx context.Context, _ form.Fields) (float64, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == 1 {
		f.started <- struct{}{}
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return 22, nil
}

func TestResubmitSupersedesInFlight(t *testing.T) {
	p := &firstBlocks{started: make(chan struct{}, 1)}
	c := NewController(p)

	first := make(chan Attempt)
	go func() { first <- c.Submit(context.Background(), form.Defaults()) }()
	<-p.started

	second := c.Submit(context.Background(), form.Defaults())

	old := <-first
	if !old.Superseded || !errors.Is(old.Err, context.Canceled) {
		t.Fatalf("expected first attempt cancelled and superseded, got %+v", old)
	}
	if second.Superseded || second.State.Result != "Predicted Fare: $22.00" {
		t.Fatalf("unexpected second attempt %+v", second)
	}
	if c.State() != second.State {
		t.Fatalf("stale result overwrote state: %+v", c.State())
	}
}

func TestSubmitTimeout(t *testing.T) {
	p := &fakePredictor{release: make(chan struct{})}
	c := NewController(p, WithTimeout(20*time.Millisecond))
	a := c.Submit(context.Background(), form.Defaults())
	if !errors.Is(a.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", a.Err)
	}
	if a.State.Phase != Failed || c.State().Loading() {
		t.Fatalf("unexpected state %+v", c.State())
	}
}

func TestCloseCancelsInFlight(t *testing.T) {
	p := &fakePredictor{release: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewController(p)
	done := make(chan Attempt)
	go func() { done <- c.Submit(context.Background(), form.Defaults()) }()
	<-p.started
	c.Close()

	a := <-done
	if !a.Superseded || !errors.Is(a.Err, context.Canceled) {
		t.Fatalf("expected cancelled attempt, got %+v", a)
	}
	if c.State().Loading() {
		t.Fatal("loading flag left set after close")
	}
}

func TestSlowWatcherDoesNotBlockState(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	c := NewController(&fakePredictor{fare: 3}, WithWatcher(func(State) {
		entered <- struct{}{}
		<-release
	}))

	done := make(chan Attempt)
	go func() { done <- c.Submit(context.Background(), form.Defaults()) }()
	<-entered

	got := make(chan State)
	go func() { got <- c.State() }()
	select {
	case s := <-got:
		if s.Phase != Pending {
			t.Fatalf("expected pending while the watcher runs, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("State blocked behind a slow watcher")
	}

	close(release)
	if a := <-done; a.State.Phase != Succeeded {
		t.Fatalf("unexpected attempt %+v", a)
	}
}
