package audit

import (
	"context"
	"log/slog"
	"time"
)

const defaultInboxSize = 256

// Recorder decouples event emission from sink latency. Record enqueues and
// returns immediately; Run drains the inbox and appends to every sink. A full
// inbox drops the event with a warning rather than stalling a session actor.
type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
	inbox  chan Event
	now    func() time.Time
}

type RecorderOption func(*Recorder)

func WithInboxSize(n int) RecorderOption {
	return func(r *Recorder) { r.inbox = make(chan Event, n) }
}

func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(logger *slog.Logger, sinks []Sink, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sinks:  sinks,
		logger: logger,
		inbox:  make(chan Event, defaultInboxSize),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues an event for delivery. Never blocks.
func (r *Recorder) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	select {
	case r.inbox <- ev:
	default:
		r.logger.Warn("audit inbox full, event dropped",
			"action", ev.Action,
			"session_id", ev.SessionID,
		)
	}
}

// Run delivers queued events until ctx is canceled, then drains what is
// already buffered before returning.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case ev := <-r.inbox:
			r.deliver(ctx, ev)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-r.inbox:
			r.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (r *Recorder) deliver(ctx context.Context, ev Event) {
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, ev); err != nil {
			r.logger.ErrorContext(ctx, "audit append failed",
				"action", ev.Action,
				"session_id", ev.SessionID,
				"error", err,
			)
		}
	}
}
