// Package capture drives document and liveness collection: consent, document
// selection, one capture loop per required side, selfie, then backend
// processing. Defective captures loop through a retry state carrying the
// defect list; the engine never bounds retries, the backend does. A device
// without a camera short-circuits to incompatibleDevice so the orchestrator
// can offer a desktop continuation instead.
package capture

import (
	"veriflow/internal/session"
	"veriflow/pkg/domain"
)

// DocType names a supported identity document.
type DocType string

const (
	DocDriversLicense DocType = "drivers_license"
	DocPassport       DocType = "passport"
	DocIDCard         DocType = "id_card"
)

// TwoSided reports whether the document type has a back to capture. Passports
// are the single-sided case.
func (d DocType) TwoSided() bool { return d != DocPassport }

// Phase is the capture machine's state tag.
type Phase string

const (
	PhaseConsent            Phase = "consent"
	PhaseCountryAndType     Phase = "country_and_type"
	PhaseFrontCapture       Phase = "front_image_capture"
	PhaseFrontRetry         Phase = "front_image_retry"
	PhaseBackCapture        Phase = "back_image_capture"
	PhaseBackRetry          Phase = "back_image_retry"
	PhaseSelfiePrompt       Phase = "selfie_prompt"
	PhaseSelfieCapture      Phase = "selfie_image_capture"
	PhaseProcessing         Phase = "processing"
	PhaseComplete           Phase = "complete"
	PhaseFailure            Phase = "failure"
	PhaseIncompatibleDevice Phase = "incompatible_device"
)

// Terminal reports whether the machine is done, for better or worse.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailure || p == PhaseIncompatibleDevice
}

// State is the capture machine's full state. Defects is populated only in the
// retry states and cleared the moment a retry begins.
type State struct {
	Phase          Phase
	Country        string
	DocType        DocType
	RequireSelfie  bool
	Defects        []domain.DefectCode
	FailureReason  string
	frontCaptured  bool
	backCaptured   bool
	selfieCaptured bool
}

// NewState enters the machine. A device that cannot capture images is
// rejected up front rather than failing mid-sequence.
func NewState(device session.DeviceInfo, livenessRequired bool) State {
	if !device.HasCamera {
		return State{Phase: PhaseIncompatibleDevice, RequireSelfie: livenessRequired}
	}
	return State{Phase: PhaseConsent, RequireSelfie: livenessRequired}
}

// NewLivenessState enters the machine for a standalone liveness requirement,
// skipping the document steps entirely.
func NewLivenessState(device session.DeviceInfo) State {
	if !device.HasCamera {
		return State{Phase: PhaseIncompatibleDevice, RequireSelfie: true}
	}
	return State{Phase: PhaseSelfiePrompt, RequireSelfie: true}
}

// Event is one capture transition payload.
type Event interface{ isCaptureEvent() }

// ConsentGiven acknowledges the capture consent screen.
type ConsentGiven struct{}

// DocumentSelected fixes the country and document type for the session.
type DocumentSelected struct {
	Country string
	DocType DocType
}

// CaptureAccepted reports that the current image passed defect evaluation.
type CaptureAccepted struct{}

// CaptureRejected carries the defect codes the evaluation found.
type CaptureRejected struct{ Defects []domain.DefectCode }

// RetryRequested re-enters capture from a retry state.
type RetryRequested struct{}

// SelfieStarted moves from the selfie prompt into live capture.
type SelfieStarted struct{}

// ProcessingFinished reports the backend's verdict on the full upload.
type ProcessingFinished struct {
	OK     bool
	Reason string
}

func (ConsentGiven) isCaptureEvent()       {}
func (DocumentSelected) isCaptureEvent()   {}
func (CaptureAccepted) isCaptureEvent()    {}
func (CaptureRejected) isCaptureEvent()    {}
func (RetryRequested) isCaptureEvent()     {}
func (SelfieStarted) isCaptureEvent()      {}
func (ProcessingFinished) isCaptureEvent() {}

// Reduce is the pure transition function. Events that don't apply to the
// current phase leave the state untouched.
func Reduce(s State, ev Event) State {
	if s.Phase.Terminal() {
		return s
	}

	switch e := ev.(type) {
	case ConsentGiven:
		if s.Phase != PhaseConsent {
			return s
		}
		s.Phase = PhaseCountryAndType
		return s

	case DocumentSelected:
		if s.Phase != PhaseCountryAndType {
			return s
		}
		s.Country = e.Country
		s.DocType = e.DocType
		s.Phase = PhaseFrontCapture
		return s

	case CaptureAccepted:
		switch s.Phase {
		case PhaseFrontCapture:
			s.frontCaptured = true
			s.Defects = nil
			s.Phase = s.afterFront()
		case PhaseBackCapture:
			s.backCaptured = true
			s.Defects = nil
			s.Phase = s.afterBack()
		case PhaseSelfieCapture:
			s.selfieCaptured = true
			s.Defects = nil
			s.Phase = PhaseProcessing
		}
		return s

	case CaptureRejected:
		switch s.Phase {
		case PhaseFrontCapture:
			s.Phase = PhaseFrontRetry
			s.Defects = cloneDefects(e.Defects)
		case PhaseBackCapture:
			s.Phase = PhaseBackRetry
			s.Defects = cloneDefects(e.Defects)
		case PhaseSelfieCapture:
			// selfie retries in place, there is no separate screen
			s.Defects = cloneDefects(e.Defects)
		}
		return s

	case RetryRequested:
		switch s.Phase {
		case PhaseFrontRetry:
			s.Phase = PhaseFrontCapture
			s.Defects = nil
		case PhaseBackRetry:
			s.Phase = PhaseBackCapture
			s.Defects = nil
		}
		return s

	case SelfieStarted:
		if s.Phase != PhaseSelfiePrompt {
			return s
		}
		s.Phase = PhaseSelfieCapture
		return s

	case ProcessingFinished:
		if s.Phase != PhaseProcessing {
			return s
		}
		if e.OK {
			s.Phase = PhaseComplete
		} else {
			s.Phase = PhaseFailure
			s.FailureReason = e.Reason
		}
		return s

	default:
		return s
	}
}

func (s State) afterFront() Phase {
	if s.DocType.TwoSided() {
		return PhaseBackCapture
	}
	return s.afterBack()
}

func (s State) afterBack() Phase {
	if s.RequireSelfie {
		return PhaseSelfiePrompt
	}
	return PhaseProcessing
}

// Captured reports whether a side has an accepted image.
func (s State) Captured(side domain.DocSide) bool {
	if side == domain.DocSideBack {
		return s.backCaptured
	}
	return s.frontCaptured
}

// SelfieCaptured reports whether the liveness image was accepted.
func (s State) SelfieCaptured() bool { return s.selfieCaptured }

// CurrentSide names the side on display in a capture or retry phase.
func (s State) CurrentSide() (domain.DocSide, bool) {
	switch s.Phase {
	case PhaseFrontCapture, PhaseFrontRetry:
		return domain.DocSideFront, true
	case PhaseBackCapture, PhaseBackRetry:
		return domain.DocSideBack, true
	default:
		return "", false
	}
}

func cloneDefects(in []domain.DefectCode) []domain.DefectCode {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.DefectCode, len(in))
	copy(out, in)
	return out
}
