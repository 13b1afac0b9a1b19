package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veriflow/internal/capture"
	"veriflow/internal/platform/metrics"
	dErrors "veriflow/pkg/domain-errors"
)

const defaultQueueSize = 64

// Actor owns one session's state and processes its events strictly one at a
// time, in arrival order. That single-threaded discipline is the correctness
// mechanism: the session context is never read-modified-written concurrently,
// so no locking protocol exists beyond the state handoff itself.
type Actor struct {
	svc     *Service
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu    sync.RWMutex
	state State

	queue          chan Event
	closeSecondary func()

	startOnce sync.Once
	done      chan struct{}
}

type ActorOption func(*Actor)

func WithActorMetrics(m *metrics.Metrics) ActorOption {
	return func(a *Actor) { a.metrics = m }
}

// WithSecondaryCloser installs the hook that tears down a handoff's secondary
// browser context when the shared status goes terminal.
func WithSecondaryCloser(fn func()) ActorOption {
	return func(a *Actor) { a.closeSecondary = fn }
}

func NewActor(svc *Service, initial State, opts ...ActorOption) *Actor {
	a := &Actor{
		svc:            svc,
		tracer:         otel.Tracer("veriflow/orchestrator"),
		state:          initial,
		queue:          make(chan Event, defaultQueueSize),
		closeSecondary: func() {},
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start runs the event loop until the context is canceled.
func (a *Actor) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.loop(ctx)
	})
}

// Dispatch enqueues an event. It never blocks; a full queue is reported as
// unavailable rather than stalling the caller.
func (a *Actor) Dispatch(ev Event) error {
	select {
	case <-a.done:
		return dErrors.New(dErrors.CodeUnavailable, "session actor stopped")
	default:
	}

	select {
	case a.queue <- ev:
		return nil
	default:
		return dErrors.New(dErrors.CodeUnavailable, "session event queue full")
	}
}

// State returns the current snapshot. Safe to call from any goroutine.
func (a *Actor) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Actor) loop(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.queue:
			a.process(ctx, ev)
		}
	}
}

func (a *Actor) process(ctx context.Context, ev Event) {
	ctx, span := a.tracer.Start(ctx, "orchestrator.dispatch",
		trace.WithAttributes(attribute.String("event", fmt.Sprintf("%T", ev))))
	defer span.End()

	start := time.Now()
	prev := a.State()
	next := Reduce(prev, ev)

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()

	span.SetAttributes(attribute.String("phase", string(next.Phase)))
	a.record(ev, prev, next, start)

	a.svc.React(ctx, ev, prev, next, a.enqueue, a.closeSecondary)
}

// enqueue is the dispatch callback handed to the service's effects. A full
// queue is logged and dropped; the state the effect reacted to is still
// current, so the caller's next interaction retries the effect.
func (a *Actor) enqueue(ev Event) {
	if err := a.Dispatch(ev); err != nil {
		a.svc.logger.Warn("dropped follow-up event", "event", fmt.Sprintf("%T", ev), "error", err)
	}
}

func (a *Actor) record(ev Event, prev, next State, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	if prev.Phase != next.Phase {
		a.metrics.Transitions.WithLabelValues("orchestrator", string(next.Phase)).Inc()
	}
	if ce, ok := ev.(CaptureEvent); ok {
		if rej, ok := ce.E.(capture.CaptureRejected); ok {
			for _, code := range rej.Defects {
				a.metrics.CaptureDefects.WithLabelValues(string(code)).Inc()
			}
		}
	}
}
