// Package handoff continues verification on a second device. Two machines run
// concurrently, one per device, never directly connected: the backend's
// persisted d2p status is the only synchronization point. The primary machine
// mints the scoped token, displays it as a QR payload or sends it by SMS, and
// polls status until terminal. The secondary machine only reports its own
// liveness outcome; if the primary cancels, the secondary learns through the
// shared status like any other terminal result.
package handoff

import (
	"time"

	"veriflow/pkg/domain"
)

// Phase is the primary machine's state tag.
type Phase string

const (
	PhaseInit           Phase = "init"
	PhaseQRRegister     Phase = "qr_register"
	PhaseQRCodeSent     Phase = "qr_code_sent"
	PhaseQRCodeScanned  Phase = "qr_code_scanned"
	PhaseSMSProcessing  Phase = "sms_processing"
	PhaseQRProcessing   Phase = "qr_processing"
	PhaseConfirmDesktop Phase = "confirm_continue_on_desktop"
	PhaseSuccess        Phase = "success"
	PhaseFailure        Phase = "failure"
)

func (p Phase) Terminal() bool { return p == PhaseSuccess || p == PhaseFailure }

// State is the primary machine's full state. LastStatus distinguishes a
// canceled handoff from a failed one for messaging; both land in failure.
type State struct {
	Phase       Phase
	ScopedToken string
	ExpiresAt   time.Time
	LastStatus  domain.D2PStatus
	// returnTo remembers where confirmContinueOnDesktop was entered from so
	// a dismissal can resume the handoff.
	returnTo Phase
}

func NewState() State {
	return State{Phase: PhaseInit}
}

// Event is one primary-machine transition payload.
type Event interface{ isHandoffEvent() }

// TokenMinted carries the scoped credential for the secondary device. Single
// use per handoff; a later handoff mints a new one.
type TokenMinted struct {
	Token     string
	ExpiresAt time.Time
}

// SMSLinkSent reports that the backend delivered the handoff link by SMS.
type SMSLinkSent struct{}

// QRScanned reports that the secondary device read the QR payload.
type QRScanned struct{}

// ProcessingStarted reports that the secondary device began its flow.
type ProcessingStarted struct{}

// StatusObserved delivers one d2p status poll result. Token names the scoped
// token the observation was polled for; observations from a superseded
// handoff's poller carry the old token and are ignored.
type StatusObserved struct {
	Status domain.D2PStatus
	Token  string
}

// Canceled is the user closing the handoff on the primary device. The
// secondary device observes the same terminal status on its next poll.
type Canceled struct{}

// ContinueOnDesktopRequested opens the escape hatch when the secondary device
// never engages.
type ContinueOnDesktopRequested struct{}

// ContinueOnDesktopConfirmed abandons the handoff for a desktop continuation.
type ContinueOnDesktopConfirmed struct{}

// ContinueOnDesktopDismissed resumes the handoff where it left off.
type ContinueOnDesktopDismissed struct{}

func (TokenMinted) isHandoffEvent()                {}
func (SMSLinkSent) isHandoffEvent()                {}
func (QRScanned) isHandoffEvent()                  {}
func (ProcessingStarted) isHandoffEvent()          {}
func (StatusObserved) isHandoffEvent()             {}
func (Canceled) isHandoffEvent()                   {}
func (ContinueOnDesktopRequested) isHandoffEvent() {}
func (ContinueOnDesktopConfirmed) isHandoffEvent() {}
func (ContinueOnDesktopDismissed) isHandoffEvent() {}

// Reduce is the primary machine's pure transition function. Terminal phases
// absorb everything, which makes repeated status observations idempotent.
func Reduce(s State, ev Event) State {
	if s.Phase.Terminal() {
		return s
	}

	switch e := ev.(type) {
	case TokenMinted:
		if s.Phase != PhaseInit {
			return s
		}
		s.ScopedToken = e.Token
		s.ExpiresAt = e.ExpiresAt
		s.Phase = PhaseQRRegister
		return s

	case SMSLinkSent:
		if s.Phase != PhaseQRRegister {
			return s
		}
		s.Phase = PhaseQRCodeSent
		return s

	case QRScanned:
		if s.Phase != PhaseQRRegister {
			return s
		}
		s.Phase = PhaseQRCodeScanned
		return s

	case ProcessingStarted:
		switch s.Phase {
		case PhaseQRCodeSent:
			s.Phase = PhaseSMSProcessing
		case PhaseQRCodeScanned:
			s.Phase = PhaseQRProcessing
		}
		return s

	case StatusObserved:
		if e.Token != "" && e.Token != s.ScopedToken {
			return s
		}
		s.LastStatus = e.Status
		switch e.Status {
		case domain.D2PCompleted:
			s.Phase = PhaseSuccess
		case domain.D2PFailed, domain.D2PCanceled, domain.D2PExpired:
			s.Phase = PhaseFailure
		}
		return s

	case Canceled:
		s.LastStatus = domain.D2PCanceled
		s.Phase = PhaseFailure
		return s

	case ContinueOnDesktopRequested:
		switch s.Phase {
		case PhaseQRRegister, PhaseQRCodeSent, PhaseQRCodeScanned:
			s.returnTo = s.Phase
			s.Phase = PhaseConfirmDesktop
		}
		return s

	case ContinueOnDesktopConfirmed:
		if s.Phase != PhaseConfirmDesktop {
			return s
		}
		s.LastStatus = domain.D2PCanceled
		s.Phase = PhaseFailure
		return s

	case ContinueOnDesktopDismissed:
		if s.Phase != PhaseConfirmDesktop {
			return s
		}
		s.Phase = s.returnTo
		s.returnTo = ""
		return s

	default:
		return s
	}
}

// SecondaryPhase is the secondary machine's state tag.
type SecondaryPhase string

const (
	SecondaryNewTabRequest    SecondaryPhase = "new_tab_request"
	SecondaryNewTabProcessing SecondaryPhase = "new_tab_processing"
	SecondarySkipLiveness     SecondaryPhase = "skip_liveness"
	SecondarySuccess          SecondaryPhase = "success"
	SecondaryFailure          SecondaryPhase = "failure"
)

func (p SecondaryPhase) Terminal() bool {
	return p == SecondarySuccess || p == SecondaryFailure
}

// SecondaryState is the machine running on the handed-off device. There is no
/// cancel path here: a primary-side cancel arrives as a terminal status.
type SecondaryState struct {
	Phase       SecondaryPhase
	ScopedToken string
}

func NewSecondaryState(scopedToken string) SecondaryState {
	return SecondaryState{Phase: SecondaryNewTabRequest, ScopedToken: scopedToken}
}

// SecondaryEvent is one secondary-machine transition payload.
type SecondaryEvent interface{ isSecondaryEvent() }

// TabOpened starts the secondary flow.
type TabOpened struct{}

// LivenessSkipped reports the secondary device cannot run liveness.
type LivenessSkipped struct{}

// SecondaryFinished reports the secondary flow's own outcome.
type SecondaryFinished struct{ OK bool }

// SecondaryStatusObserved delivers a shared-status read on the secondary
// side. A canceled or failed status stops the flow silently.
type SecondaryStatusObserved struct{ Status domain.D2PStatus }

func (TabOpened) isSecondaryEvent()               {}
func (LivenessSkipped) isSecondaryEvent()         {}
func (SecondaryFinished) isSecondaryEvent()       {}
func (SecondaryStatusObserved) isSecondaryEvent() {}

// ReduceSecondary is the secondary machine's pure transition function.
func ReduceSecondary(s SecondaryState, ev SecondaryEvent) SecondaryState {
	if s.Phase.Terminal() {
		return s
	}

	switch e := ev.(type) {
	case TabOpened:
		if s.Phase != SecondaryNewTabRequest {
			return s
		}
		s.Phase = SecondaryNewTabProcessing
		return s

	case LivenessSkipped:
		if s.Phase != SecondaryNewTabProcessing {
			return s
		}
		s.Phase = SecondarySkipLiveness
		return s

	case SecondaryFinished:
		switch s.Phase {
		case SecondaryNewTabProcessing, SecondarySkipLiveness:
			if e.OK {
				s.Phase = SecondarySuccess
			} else {
				s.Phase = SecondaryFailure
			}
		}
		return s

	case SecondaryStatusObserved:
		if e.Status == domain.D2PCanceled || e.Status == domain.D2PFailed {
			s.Phase = SecondaryFailure
		}
		return s

	default:
		return s
	}
}
