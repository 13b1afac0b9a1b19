// Package identify resolves who the user is before any requirement is
// collected. It walks identifier entry, challenge selection and challenge
// verification, and is the only engine allowed to mint a fresh primary auth
// token into the session context.
package identify

import (
	"time"

	"veriflow/pkg/domain"
)

// Phase is the identification machine's state tag.
type Phase string

const (
	PhaseInit                 Phase = "init"
	PhaseAddEmail             Phase = "add_email"
	PhaseAddPhone             Phase = "add_phone"
	PhaseChallengeSelect      Phase = "challenge_select"
	PhaseSMSChallenge         Phase = "sms_challenge"
	PhaseEmailChallenge       Phase = "email_challenge"
	PhaseBiometricChallenge   Phase = "biometric_challenge"
	PhaseSuccess              Phase = "success"
	PhaseAuthTokenInvalid     Phase = "auth_token_invalid"
	PhaseChallengeNotPossible Phase = "login_challenge_not_possible"
)

// Terminal reports whether the phase ends the identification flow.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseAuthTokenInvalid || p == PhaseChallengeNotPossible
}

// Challenge is one short-lived proof-of-possession attempt. It becomes
// unusable after ExpiresAt or after one successful verification.
type Challenge struct {
	Kind               domain.ChallengeKind
	Token              string
	ExpiresAt          time.Time
	RetryDisabledUntil time.Time
}

// CanResend reports whether a resend may be requested at now. Biometric
// challenges have no resend concept; the single platform prompt either
// succeeds or the challenge is re-issued from scratch.
func (c *Challenge) CanResend(now time.Time) bool {
	if c.Kind == domain.ChallengeBiometric {
		return false
	}
	return !now.Before(c.RetryDisabledUntil)
}

// Expired reports whether the challenge has passed its deadline.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// State is the identification machine's full state.
type State struct {
	Phase          Phase
	Identifier     string
	AvailableKinds []domain.ChallengeKind
	Challenge      *Challenge
	AuthToken      string
}

// NewState starts the flow. Sessions with no pre-known identifier begin at
// email entry; phone-first integrations pass preferPhone.
func NewState(preferPhone bool) State {
	if preferPhone {
		return State{Phase: PhaseAddPhone}
	}
	return State{Phase: PhaseAddEmail}
}

// Event is one identification transition payload.
type Event interface{ isIdentifyEvent() }

// IdentifierSubmitted records the identify lookup result for an identifier.
type IdentifierSubmitted struct {
	Identifier     string
	UserFound      bool
	AvailableKinds []domain.ChallengeKind
}

// KindSelected picks which challenge kind to run.
type KindSelected struct{ Kind domain.ChallengeKind }

// ChallengeIssued installs a freshly issued challenge.
type ChallengeIssued struct{ Challenge Challenge }

// ChallengeSucceeded carries the fresh primary auth token.
type ChallengeSucceeded struct{ AuthToken string }

// ChallengeFailed is a wrong or expired code; recoverable, the machine stays
// on the challenge phase for a re-prompt.
type ChallengeFailed struct{ Expired bool }

// TokenRejected is a terminal exit: the backend refused our auth token.
type TokenRejected struct{}

// NoChallengeAvailable is a terminal exit: no challenge kind can serve the
// identifier under the current policy.
type NoChallengeAvailable struct{}

func (IdentifierSubmitted) isIdentifyEvent()  {}
func (KindSelected) isIdentifyEvent()         {}
func (ChallengeIssued) isIdentifyEvent()      {}
func (ChallengeSucceeded) isIdentifyEvent()   {}
func (ChallengeFailed) isIdentifyEvent()      {}
func (TokenRejected) isIdentifyEvent()        {}
func (NoChallengeAvailable) isIdentifyEvent() {}

// Reduce is the pure transition function. Events that make no sense in the
// current phase leave the state unchanged.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case IdentifierSubmitted:
		if s.Phase != PhaseAddEmail && s.Phase != PhaseAddPhone && s.Phase != PhaseInit {
			return s
		}
		s.Identifier = e.Identifier
		s.AvailableKinds = e.AvailableKinds
		if len(e.AvailableKinds) == 0 {
			s.Phase = PhaseChallengeNotPossible
			return s
		}
		s.Phase = PhaseChallengeSelect
		return s

	case KindSelected:
		if s.Phase != PhaseChallengeSelect {
			return s
		}
		s.Phase = challengePhase(e.Kind)
		return s

	case ChallengeIssued:
		if !isChallengePhase(s.Phase) {
			return s
		}
		c := e.Challenge
		s.Challenge = &c
		s.Phase = challengePhase(c.Kind)
		return s

	case ChallengeSucceeded:
		if !isChallengePhase(s.Phase) {
			return s
		}
		s.AuthToken = e.AuthToken
		s.Challenge = nil
		s.Phase = PhaseSuccess
		return s

	case ChallengeFailed:
		if !isChallengePhase(s.Phase) {
			return s
		}
		if e.Expired {
			// expired challenge goes back to selection for a re-issue
			s.Challenge = nil
			s.Phase = PhaseChallengeSelect
		}
		return s

	case TokenRejected:
		s.Phase = PhaseAuthTokenInvalid
		return s

	case NoChallengeAvailable:
		s.Phase = PhaseChallengeNotPossible
		return s

	default:
		return s
	}
}

func challengePhase(kind domain.ChallengeKind) Phase {
	switch kind {
	case domain.ChallengeSMS:
		return PhaseSMSChallenge
	case domain.ChallengeEmail:
		return PhaseEmailChallenge
	case domain.ChallengeBiometric:
		return PhaseBiometricChallenge
	default:
		return PhaseChallengeSelect
	}
}

func isChallengePhase(p Phase) bool {
	return p == PhaseSMSChallenge || p == PhaseEmailChallenge || p == PhaseBiometricChallenge
}
