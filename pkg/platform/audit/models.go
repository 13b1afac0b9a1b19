// Package audit records the audit-worthy moments of a verification session:
// bootstrap, challenge outcomes, requirement completion, handoff lifecycle and
// terminal exits. Events fan out to whatever sinks are configured (memory,
// postgres, Kafka) through a Recorder so domain code never blocks on a sink.
package audit

import (
	"context"
	"time"

	"veriflow/pkg/domain"
)

// Action names one audit-worthy moment in a session's life.
type Action string

const (
	ActionSessionBootstrapped  Action = "session_bootstrapped"
	ActionSessionResumed       Action = "session_resumed"
	ActionChallengeIssued      Action = "challenge_issued"
	ActionChallengeVerified    Action = "challenge_verified"
	ActionChallengeFailed      Action = "challenge_failed"
	ActionRequirementSatisfied Action = "requirement_satisfied"
	ActionHandoffStarted       Action = "handoff_started"
	ActionHandoffClaimed       Action = "handoff_claimed"
	ActionHandoffFinished      Action = "handoff_finished"
	ActionSessionAuthorized    Action = "session_authorized"
	ActionSessionTerminal      Action = "session_terminal"
	ActionSandboxForced        Action = "sandbox_outcome_forced"
)

// Event is one audit record. Detail carries the action-specific qualifier:
// the requirement kind for requirement_satisfied, the terminal phase for
// session_terminal, the d2p status for handoff_finished.
type Event struct {
	Timestamp time.Time        `json:"timestamp"`
	SessionID domain.SessionID `json:"session_id"`
	Action    Action           `json:"action"`
	Detail    string           `json:"detail,omitempty"`
	Live      bool             `json:"live"`
}

// Sink receives events from the Recorder. Stores and the Kafka publisher
// both satisfy it.
type Sink interface {
	Append(ctx context.Context, ev Event) error
}

// Store is a queryable sink. Used by operational tooling to inspect a
// session's trail after the fact.
type Store interface {
	Sink
	ListBySession(ctx context.Context, id domain.SessionID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
