package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the flow engine.
type Metrics struct {
	Transitions           *prometheus.CounterVec
	ChallengesIssued      *prometheus.CounterVec
	ResendRejections      prometheus.Counter
	CaptureDefects        *prometheus.CounterVec
	HandoffPolls          prometheus.Counter
	RequirementsSatisfied *prometheus.CounterVec
	SessionsTerminal      *prometheus.CounterVec
	DispatchLatency       prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_transitions_total",
			Help: "State transitions, labeled by engine and resulting phase.",
		}, []string{"engine", "phase"}),
		ChallengesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_challenges_issued_total",
			Help: "Login challenges issued, labeled by kind.",
		}, []string{"kind"}),
		ResendRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriflow_challenge_resend_rejected_total",
			Help: "Challenge resends rejected locally while inside the cooldown window.",
		}),
		CaptureDefects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_capture_defects_total",
			Help: "Image defects reported during document capture, labeled by code.",
		}, []string{"code"}),
		HandoffPolls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriflow_handoff_polls_total",
			Help: "d2p status polls issued by primary devices.",
		}),
		RequirementsSatisfied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_requirements_satisfied_total",
			Help: "Requirements observed transitioning to satisfied, labeled by kind.",
		}, []string{"kind"}),
		SessionsTerminal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_sessions_terminal_total",
			Help: "Sessions reaching a terminal phase, labeled by phase.",
		}, []string{"phase"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veriflow_dispatch_seconds",
			Help:    "Time spent processing one event on a session actor.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
