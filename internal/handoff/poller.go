package handoff

import (
	"context"
	"log/slog"
	"time"

	"veriflow/internal/api"
	"veriflow/internal/platform/metrics"
	"veriflow/pkg/domain"
)

// Poller reads the shared d2p status on a fixed interval and hands each
// observation to the dispatch callback. It stops on the first terminal
// status, on context cancellation, or when the deadline passes. The deadline
// runs on its own timer so a handoff can expire even while polls keep
// succeeding.
type Poller struct {
	backend  api.Backend
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
}

type PollerOption func(*Poller)

func WithPollerMetrics(m *metrics.Metrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

func NewPoller(backend api.Backend, logger *slog.Logger, interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{backend: backend, logger: logger, interval: interval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until a terminal status, cancellation, or the deadline. Poll
// errors are logged and the loop continues; transient network failures must
// not end a handoff the backend still considers live. Returns the terminal
// status observed, or an empty status if the loop ended without one.
func (p *Poller) Run(ctx context.Context, scopedToken string, deadline time.Time, dispatch func(domain.D2PStatus)) (domain.D2PStatus, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	expiry := time.NewTimer(time.Until(deadline))
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-expiry.C:
			p.logger.InfoContext(ctx, "handoff deadline passed, polling stopped")
			return "", nil

		case <-ticker.C:
			if p.metrics != nil {
				p.metrics.HandoffPolls.Inc()
			}
			status, err := p.backend.ScopedStatus(ctx, scopedToken)
			if err != nil {
				p.logger.WarnContext(ctx, "d2p status poll failed", "error", err)
				continue
			}

			dispatch(status)
			if status.Terminal() {
				return status, nil
			}
		}
	}
}
