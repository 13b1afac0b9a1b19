package identify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"veriflow/pkg/domain"
)

func TestHappyPathEmailChallenge(t *testing.T) {
	st := NewState(false)
	assert.Equal(t, PhaseAddEmail, st.Phase)

	st = Reduce(st, IdentifierSubmitted{
		Identifier:     "user@example.com",
		UserFound:      true,
		AvailableKinds: []domain.ChallengeKind{domain.ChallengeEmail, domain.ChallengeSMS},
	})
	assert.Equal(t, PhaseChallengeSelect, st.Phase)

	st = Reduce(st, KindSelected{Kind: domain.ChallengeEmail})
	assert.Equal(t, PhaseEmailChallenge, st.Phase)

	st = Reduce(st, ChallengeIssued{Challenge: Challenge{
		Kind:  domain.ChallengeEmail,
		Token: "ct_1",
	}})
	assert.Equal(t, PhaseEmailChallenge, st.Phase)
	assert.NotNil(t, st.Challenge)

	st = Reduce(st, ChallengeSucceeded{AuthToken: "tok_fresh"})
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, "tok_fresh", st.AuthToken)
	assert.Nil(t, st.Challenge, "consumed challenge is discarded")
	assert.True(t, st.Phase.Terminal())
}

func TestNoAvailableKindsIsTerminal(t *testing.T) {
	st := NewState(false)
	st = Reduce(st, IdentifierSubmitted{Identifier: "user@example.com"})
	assert.Equal(t, PhaseChallengeNotPossible, st.Phase)
	assert.True(t, st.Phase.Terminal())
}

func TestWrongCodeStaysOnChallenge(t *testing.T) {
	st := State{Phase: PhaseSMSChallenge, Challenge: &Challenge{Kind: domain.ChallengeSMS, Token: "ct"}}
	st = Reduce(st, ChallengeFailed{})
	assert.Equal(t, PhaseSMSChallenge, st.Phase)
	assert.NotNil(t, st.Challenge)
}

func TestExpiredChallengeReturnsToSelection(t *testing.T) {
	st := State{Phase: PhaseSMSChallenge, Challenge: &Challenge{Kind: domain.ChallengeSMS, Token: "ct"}}
	st = Reduce(st, ChallengeFailed{Expired: true})
	assert.Equal(t, PhaseChallengeSelect, st.Phase)
	assert.Nil(t, st.Challenge)
}

func TestTokenRejectedIsTerminal(t *testing.T) {
	st := State{Phase: PhaseChallengeSelect}
	st = Reduce(st, TokenRejected{})
	assert.Equal(t, PhaseAuthTokenInvalid, st.Phase)
	assert.True(t, st.Phase.Terminal())
}

func TestOutOfPhaseEventsAreIgnored(t *testing.T) {
	st := State{Phase: PhaseSuccess, AuthToken: "tok"}
	got := Reduce(st, ChallengeSucceeded{AuthToken: "other"})
	assert.Equal(t, st, got)
}

func TestChallengeCooldown(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c := &Challenge{
		Kind:               domain.ChallengeSMS,
		RetryDisabledUntil: base.Add(30 * time.Second),
	}

	assert.False(t, c.CanResend(base.Add(10*time.Second)))
	assert.True(t, c.CanResend(base.Add(30*time.Second)))
	assert.True(t, c.CanResend(base.Add(31*time.Second)))
}

func TestBiometricHasNoResend(t *testing.T) {
	c := &Challenge{Kind: domain.ChallengeBiometric}
	assert.False(t, c.CanResend(time.Now()))
}
