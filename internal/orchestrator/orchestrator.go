// Package orchestrator composes the sub-engines into one resumable flow:
// bootstrap, identify, the requirement loop, authorize, success. The state is
// a tagged union embedding the active sub-engine's state; Reduce is pure, and
// all side effects (network, persistence, polling) live in the Service and
// run between reductions on the session's actor.
package orchestrator

import (
	"veriflow/internal/capture"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/requirement"
	"veriflow/internal/session"
	"veriflow/pkg/domain"
)

// Phase is the top-level state tag.
type Phase string

const (
	PhaseInit              Phase = "init"
	PhaseInitBootstrap     Phase = "init_bootstrap"
	PhaseIdentify          Phase = "identify"
	PhaseCheckRequirements Phase = "check_requirements"
	PhaseProcess           Phase = "process"
	PhaseAuthorize         Phase = "authorize"
	PhaseSuccess           Phase = "success"
	PhaseConfigInvalid     Phase = "config_invalid"
	PhaseSessionExpired    Phase = "session_expired"
	PhaseExpired           Phase = "expired"
	PhaseSandboxOutcome    Phase = "sandbox_outcome"
)

// Terminal reports whether the session is finished. Terminal states absorb
// all further events and invalidate the resumable snapshot.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseSuccess, PhaseConfigInvalid, PhaseSessionExpired, PhaseExpired, PhaseSandboxOutcome:
		return true
	}
	return false
}

// State is the full orchestrator state. Exactly one sub-engine pointer is
// non-nil while Phase is identify or process.
type State struct {
	Phase   Phase
	Session session.Context
	Resume  bool

	Identify *identify.State
	Collect  *collect.State
	Capture  *capture.State
	Handoff  *handoff.State

	// Secondary is the handed-off device's machine, attached to the same
	// actor once the scoped token is claimed.
	Secondary *handoff.SecondaryState

	// Active is the requirement kind currently being processed.
	Active domain.RequirementKind
	// QRPayload is the encoded handoff payload for display, set while a
	// handoff is in flight.
	QRPayload string
}

// NewState creates the pre-bootstrap state. Resume asks bootstrap to try the
// persisted snapshot before falling back to fresh identification.
func NewState(sess session.Context, resume bool) State {
	return State{Phase: PhaseInit, Session: sess, Resume: resume}
}

// Event is one top-level transition payload.
type Event interface{ isOrchestratorEvent() }

// BootstrapBegun moves into bootstrap; the service reacts by validating
// config and loading any snapshot.
type BootstrapBegun struct{}

// Bootstrapped finishes bootstrap. A resumed session carries the snapshot's
// auth token and goes straight to the requirement loop.
type Bootstrapped struct {
	Resumed   bool
	AuthToken string
}

// ConfigRejected is the terminal exit for invalid policy configuration.
type ConfigRejected struct{ Reason string }

// SessionInvalidated is the terminal exit for an expired or revoked token.
type SessionInvalidated struct{}

// SessionTimedOut is the terminal exit for a session past its own deadline.
type SessionTimedOut struct{}

// SandboxForced injects a deterministic outcome. The reducer ignores it for
// live sessions; the service additionally verifies the sandbox secret before
// ever dispatching it.
type SandboxForced struct{ Outcome domain.SandboxOutcome }

// IdentifyEvent forwards an event to the identification sub-engine.
type IdentifyEvent struct{ E identify.Event }

// RequirementsFetched installs a fresh requirement list and picks the next
// obligation to process.
type RequirementsFetched struct{ Requirements []domain.Requirement }

// CollectEvent forwards an event to the active collection sub-engine.
type CollectEvent struct{ E collect.Event }

// CollectSubmitted reports a successful vault write of the confirmed payload.
type CollectSubmitted struct{ Fields session.FieldsCollected }

// CollectPrefilled installs vault-decrypted values. If the collection engine
// has not been touched yet, its page plan is recomputed against them.
type CollectPrefilled struct{ Fields session.FieldsDecrypted }

// CaptureEvent forwards an event to the capture sub-engine.
type CaptureEvent struct{ E capture.Event }

// HandoffBegun installs the minted scoped token and the QR payload.
type HandoffBegun struct {
	Minted handoff.TokenMinted
	QR     string
}

// HandoffEvent forwards an event to the handoff sub-engine.
type HandoffEvent struct{ E handoff.Event }

// HandoffClaimed reports that a secondary device redeemed the QR payload or
// SMS link. It engages the primary machine and attaches the secondary one.
type HandoffClaimed struct{}

// SecondaryEvent forwards an event to the secondary-device machine.
type SecondaryEvent struct{ E handoff.SecondaryEvent }

// Authorized carries the terminal validation token.
type Authorized struct{ ValidationToken string }

func (BootstrapBegun) isOrchestratorEvent()      {}
func (Bootstrapped) isOrchestratorEvent()        {}
func (ConfigRejected) isOrchestratorEvent()      {}
func (SessionInvalidated) isOrchestratorEvent()  {}
func (SessionTimedOut) isOrchestratorEvent()     {}
func (SandboxForced) isOrchestratorEvent()       {}
func (IdentifyEvent) isOrchestratorEvent()       {}
func (RequirementsFetched) isOrchestratorEvent() {}
func (CollectEvent) isOrchestratorEvent()        {}
func (CollectSubmitted) isOrchestratorEvent()    {}
func (CollectPrefilled) isOrchestratorEvent()    {}
func (CaptureEvent) isOrchestratorEvent()        {}
func (HandoffBegun) isOrchestratorEvent()        {}
func (HandoffEvent) isOrchestratorEvent()        {}
func (HandoffClaimed) isOrchestratorEvent()      {}
func (SecondaryEvent) isOrchestratorEvent()      {}
func (Authorized) isOrchestratorEvent()          {}

// Reduce is the top-level pure transition function.
func Reduce(s State, ev Event) State {
	if s.Phase.Terminal() {
		return s
	}

	switch e := ev.(type) {
	case BootstrapBegun:
		if s.Phase != PhaseInit {
			return s
		}
		s.Phase = PhaseInitBootstrap
		return s

	case Bootstrapped:
		if s.Phase != PhaseInitBootstrap {
			return s
		}
		if e.Resumed {
			s.Session = session.Apply(s.Session, session.AuthTokenReplaced{Token: e.AuthToken})
			s.Phase = PhaseCheckRequirements
			return s
		}
		ident := identify.NewState(s.Session.Device.Kind == domain.DeviceMobile)
		s.Identify = &ident
		s.Phase = PhaseIdentify
		return s

	case ConfigRejected:
		s.Phase = PhaseConfigInvalid
		return s

	case SessionInvalidated:
		s.Phase = PhaseSessionExpired
		return s

	case SessionTimedOut:
		s.Phase = PhaseExpired
		return s

	case SandboxForced:
		// never reachable for live sessions, regardless of what the caller
		// managed to dispatch
		if s.Session.Config.IsLive || !e.Outcome.Valid() {
			return s
		}
		s.Session = session.Apply(s.Session, session.SandboxOutcomeSet{Outcome: e.Outcome})
		s.Phase = PhaseSandboxOutcome
		return s

	case IdentifyEvent:
		if s.Phase != PhaseIdentify || s.Identify == nil {
			return s
		}
		next := identify.Reduce(*s.Identify, e.E)
		switch next.Phase {
		case identify.PhaseSuccess:
			s.Session = session.Apply(s.Session, session.AuthTokenReplaced{Token: next.AuthToken})
			s.Identify = nil
			s.Phase = PhaseCheckRequirements
		case identify.PhaseAuthTokenInvalid:
			s.Identify = nil
			s.Phase = PhaseSessionExpired
		default:
			s.Identify = &next
		}
		return s

	case RequirementsFetched:
		if s.Phase != PhaseCheckRequirements {
			return s
		}
		s.Session = session.Apply(s.Session, session.RequirementsRefreshed{Requirements: e.Requirements})
		next, ok := requirement.Next(e.Requirements)
		if !ok {
			// nothing outstanding: empty at entry means already verified,
			// either way the flow concludes through authorize
			s.Phase = PhaseAuthorize
			return s
		}
		return s.enterProcess(next.Kind)

	case CollectEvent:
		if s.Phase != PhaseProcess || s.Collect == nil {
			return s
		}
		next := collect.Reduce(*s.Collect, e.E)
		s.Collect = &next
		return s

	case CollectSubmitted:
		if s.Phase != PhaseProcess || s.Collect == nil {
			return s
		}
		s.Session = session.Apply(s.Session, e.Fields)
		s.Collect = nil
		s.Phase = PhaseCheckRequirements
		return s

	case CollectPrefilled:
		s.Session = session.Apply(s.Session, e.Fields)
		if s.Collect != nil && s.Collect.Index == 0 && len(s.Collect.Collected) == 0 {
			replanned := collect.NewState(s.Collect.Kind, s.Session.KnownFields())
			s.Collect = &replanned
		}
		return s

	case CaptureEvent:
		if s.Phase != PhaseProcess || s.Capture == nil {
			return s
		}
		next := capture.Reduce(*s.Capture, e.E)
		switch next.Phase {
		case capture.PhaseComplete:
			s.Capture = nil
			s.Phase = PhaseCheckRequirements
		case capture.PhaseIncompatibleDevice:
			// desktop fallback: hand the requirement to a second device
			s.Capture = nil
			return s.enterProcess(domain.RequirementTransfer)
		case capture.PhaseFailure:
			// backend exhausted its retry budget; refetch to re-enter
			s.Capture = nil
			s.Phase = PhaseCheckRequirements
		default:
			s.Capture = &next
		}
		return s

	case HandoffBegun:
		if s.Phase != PhaseProcess || s.Handoff == nil {
			return s
		}
		next := handoff.Reduce(*s.Handoff, e.Minted)
		s.Handoff = &next
		s.QRPayload = e.QR
		return s

	case HandoffEvent:
		if s.Phase != PhaseProcess || s.Handoff == nil {
			return s
		}
		next := handoff.Reduce(*s.Handoff, e.E)
		if next.Phase.Terminal() {
			s.Handoff = nil
			s.Secondary = nil
			s.QRPayload = ""
			s.Phase = PhaseCheckRequirements
			return s
		}
		s.Handoff = &next
		return s

	case HandoffClaimed:
		if s.Phase != PhaseProcess || s.Handoff == nil || s.Handoff.ScopedToken == "" {
			return s
		}
		next := *s.Handoff
		switch next.Phase {
		case handoff.PhaseQRRegister:
			next = handoff.Reduce(next, handoff.QRScanned{})
		case handoff.PhaseQRCodeSent:
			// SMS path: the link was redeemed, the secondary is live
			next = handoff.Reduce(next, handoff.ProcessingStarted{})
		}
		s.Handoff = &next
		secondary := handoff.NewSecondaryState(next.ScopedToken)
		s.Secondary = &secondary
		return s

	case SecondaryEvent:
		if s.Secondary == nil {
			return s
		}
		next := handoff.ReduceSecondary(*s.Secondary, e.E)
		s.Secondary = &next
		return s

	case Authorized:
		if s.Phase != PhaseAuthorize {
			return s
		}
		s.Session = session.Apply(s.Session, session.ValidationIssued{Token: e.ValidationToken})
		s.Phase = PhaseSuccess
		return s

	default:
		return s
	}
}

// enterProcess installs the sub-engine for a requirement kind.
func (s State) enterProcess(kind domain.RequirementKind) State {
	s.Active = kind
	s.Phase = PhaseProcess

	switch kind {
	case domain.RequirementKYCData, domain.RequirementKYBData, domain.RequirementInvestorProfile:
		st := collect.NewState(kind, s.Session.KnownFields())
		s.Collect = &st

	case domain.RequirementIdentityDocument:
		st := capture.NewState(s.Session.Device, requiresLiveness(s.Session.Requirements))
		s.Capture = &st
		if st.Phase == capture.PhaseIncompatibleDevice {
			s.Capture = nil
			return s.enterProcess(domain.RequirementTransfer)
		}

	case domain.RequirementLiveness:
		st := capture.NewLivenessState(s.Session.Device)
		s.Capture = &st
		if st.Phase == capture.PhaseIncompatibleDevice {
			s.Capture = nil
			return s.enterProcess(domain.RequirementTransfer)
		}

	case domain.RequirementTransfer:
		st := handoff.NewState()
		s.Handoff = &st

	case domain.RequirementAuthorize:
		s.Phase = PhaseAuthorize
	}
	return s
}

func requiresLiveness(reqs []domain.Requirement) bool {
	for _, r := range reqs {
		if r.Kind == domain.RequirementLiveness && r.Outstanding() {
			return true
		}
	}
	return false
}
