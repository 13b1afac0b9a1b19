package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veriflow/internal/capture"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/session"
	"veriflow/pkg/domain"
)

func testSession(live bool) session.Context {
	return session.New(domain.NewSessionID(), session.Config{
		PlaybookKey: "pb_test",
		OrgName:     "Acme",
		IsLive:      live,
	}, session.DeviceInfo{Kind: domain.DeviceMobile, HasCamera: true})
}

func atCheckRequirements(t *testing.T) State {
	t.Helper()
	st := NewState(testSession(false), false)
	st = Reduce(st, BootstrapBegun{})
	st = Reduce(st, Bootstrapped{})
	require.Equal(t, PhaseIdentify, st.Phase)

	st = Reduce(st, IdentifyEvent{E: identify.IdentifierSubmitted{
		Identifier:     "user@example.com",
		UserFound:      true,
		AvailableKinds: []domain.ChallengeKind{domain.ChallengeEmail},
	}})
	st = Reduce(st, IdentifyEvent{E: identify.KindSelected{Kind: domain.ChallengeEmail}})
	st = Reduce(st, IdentifyEvent{E: identify.ChallengeSucceeded{AuthToken: "tok_1"}})
	require.Equal(t, PhaseCheckRequirements, st.Phase)
	require.Equal(t, "tok_1", st.Session.AuthToken)
	return st
}

func TestBootstrapToIdentify(t *testing.T) {
	st := NewState(testSession(false), false)
	assert.Equal(t, PhaseInit, st.Phase)

	st = Reduce(st, BootstrapBegun{})
	assert.Equal(t, PhaseInitBootstrap, st.Phase)

	st = Reduce(st, Bootstrapped{})
	assert.Equal(t, PhaseIdentify, st.Phase)
	require.NotNil(t, st.Identify)
	assert.Equal(t, identify.PhaseAddPhone, st.Identify.Phase, "mobile devices start at phone entry")
}

func TestResumedBootstrapSkipsIdentification(t *testing.T) {
	st := NewState(testSession(false), true)
	st = Reduce(st, BootstrapBegun{})
	st = Reduce(st, Bootstrapped{Resumed: true, AuthToken: "tok_saved"})

	assert.Equal(t, PhaseCheckRequirements, st.Phase)
	assert.Equal(t, "tok_saved", st.Session.AuthToken)
	assert.Nil(t, st.Identify)
}

func TestIdentifySuccessMintsTokenIntoSession(t *testing.T) {
	st := atCheckRequirements(t)
	assert.Nil(t, st.Identify)
}

func TestAuthTokenInvalidEndsTheSession(t *testing.T) {
	st := NewState(testSession(false), false)
	st = Reduce(st, BootstrapBegun{})
	st = Reduce(st, Bootstrapped{})
	st = Reduce(st, IdentifyEvent{E: identify.TokenRejected{}})
	assert.Equal(t, PhaseSessionExpired, st.Phase)
}

func TestRequirementsPickFirstOutstanding(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementKYCData, Status: domain.RequirementSatisfied},
		{Kind: domain.RequirementIdentityDocument, Status: domain.RequirementOutstanding},
		{Kind: domain.RequirementLiveness, Status: domain.RequirementOutstanding},
	}})

	assert.Equal(t, PhaseProcess, st.Phase)
	assert.Equal(t, domain.RequirementIdentityDocument, st.Active)
	require.NotNil(t, st.Capture)
	assert.True(t, st.Capture.RequireSelfie, "outstanding liveness requirement folds into the capture run")
}

func TestEmptyRequirementListConcludesThroughAuthorize(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: nil})
	assert.Equal(t, PhaseAuthorize, st.Phase)

	st = Reduce(st, Authorized{ValidationToken: "vt_1"})
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, "vt_1", st.Session.ValidationToken)
}

func TestCollectRequirementRunsToSubmission(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementKYCData, Status: domain.RequirementOutstanding},
	}})
	require.NotNil(t, st.Collect)

	for st.Collect.Phase == collect.PhaseCollecting {
		page, _ := st.Collect.Current()
		fields := map[domain.FieldKey]string{}
		for _, f := range page.Fields {
			fields[f] = "v"
		}
		st = Reduce(st, CollectEvent{E: collect.PageSubmitted{Fields: fields}})
	}
	st = Reduce(st, CollectEvent{E: collect.Confirmed{}})
	require.Equal(t, collect.PhaseSubmitted, st.Collect.Phase)

	st = Reduce(st, CollectSubmitted{Fields: session.FieldsCollected{
		Fields: map[domain.FieldKey]string{domain.FieldFirstName: "Ada"},
	}})
	assert.Equal(t, PhaseCheckRequirements, st.Phase, "satisfied requirement forces a refetch")
	assert.Nil(t, st.Collect)
	assert.Equal(t, "Ada", st.Session.Fields[domain.FieldFirstName].Value)
}

func TestPrefilledFieldsReplanUntouchedCollect(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementKYCData, Status: domain.RequirementOutstanding},
	}})
	require.NotNil(t, st.Collect)
	pagesBefore := len(st.Collect.Pages)

	st = Reduce(st, CollectPrefilled{Fields: session.FieldsDecrypted{
		Fields: map[domain.FieldKey]string{
			domain.FieldFirstName: "Ada",
			domain.FieldLastName:  "Lovelace",
		},
	}})
	assert.Less(t, len(st.Collect.Pages), pagesBefore, "known fields drop their pages")
	assert.True(t, st.Session.Fields[domain.FieldFirstName].Decrypted)
}

func TestCaptureCompleteForcesRefetch(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementIdentityDocument, Status: domain.RequirementOutstanding},
	}})
	require.NotNil(t, st.Capture)

	st = Reduce(st, CaptureEvent{E: capture.ConsentGiven{}})
	st = Reduce(st, CaptureEvent{E: capture.DocumentSelected{Country: "US", DocType: capture.DocPassport}})
	st = Reduce(st, CaptureEvent{E: capture.CaptureAccepted{}})
	st = Reduce(st, CaptureEvent{E: capture.ProcessingFinished{OK: true}})

	assert.Equal(t, PhaseCheckRequirements, st.Phase)
	assert.Nil(t, st.Capture)
}

func TestIncompatibleDeviceFallsBackToHandoff(t *testing.T) {
	sess := session.New(domain.NewSessionID(), session.Config{PlaybookKey: "pb_test"},
		session.DeviceInfo{Kind: domain.DeviceDesktop, HasCamera: false})
	st := NewState(sess, false)
	st = Reduce(st, BootstrapBegun{})
	st = Reduce(st, Bootstrapped{})
	st = Reduce(st, IdentifyEvent{E: identify.IdentifierSubmitted{
		Identifier: "user@example.com", AvailableKinds: []domain.ChallengeKind{domain.ChallengeEmail},
	}})
	st = Reduce(st, IdentifyEvent{E: identify.KindSelected{Kind: domain.ChallengeEmail}})
	st = Reduce(st, IdentifyEvent{E: identify.ChallengeSucceeded{AuthToken: "tok_1"}})

	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementIdentityDocument, Status: domain.RequirementOutstanding},
	}})

	assert.Equal(t, PhaseProcess, st.Phase)
	assert.Equal(t, domain.RequirementTransfer, st.Active, "camera-less device hands the capture to a phone")
	assert.Nil(t, st.Capture)
	require.NotNil(t, st.Handoff)
	assert.Equal(t, handoff.PhaseInit, st.Handoff.Phase)
}

func TestHandoffTerminalReturnsToRequirementLoop(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementTransfer, Status: domain.RequirementOutstanding},
	}})
	require.NotNil(t, st.Handoff)

	st = Reduce(st, HandoffBegun{Minted: handoff.TokenMinted{Token: "sc_1"}, QR: "payload"})
	assert.Equal(t, "payload", st.QRPayload)

	st = Reduce(st, HandoffEvent{E: handoff.StatusObserved{Status: domain.D2PCompleted}})
	assert.Equal(t, PhaseCheckRequirements, st.Phase)
	assert.Nil(t, st.Handoff)
	assert.Empty(t, st.QRPayload)
}

func TestSandboxForcedGuards(t *testing.T) {
	t.Run("live sessions never reach sandboxOutcome", func(t *testing.T) {
		st := NewState(testSession(true), false)
		st = Reduce(st, BootstrapBegun{})
		st = Reduce(st, SandboxForced{Outcome: domain.SandboxFail})
		assert.NotEqual(t, PhaseSandboxOutcome, st.Phase)
		assert.Empty(t, st.Session.SandboxOutcome)
	})

	t.Run("sandbox sessions record the override", func(t *testing.T) {
		st := NewState(testSession(false), false)
		st = Reduce(st, BootstrapBegun{})
		st = Reduce(st, SandboxForced{Outcome: domain.SandboxFail})
		assert.Equal(t, PhaseSandboxOutcome, st.Phase)
		assert.Equal(t, domain.SandboxFail, st.Session.SandboxOutcome)
	})

	t.Run("unknown outcome ignored", func(t *testing.T) {
		st := NewState(testSession(false), false)
		st = Reduce(st, BootstrapBegun{})
		st = Reduce(st, SandboxForced{Outcome: "explode"})
		assert.Equal(t, PhaseInitBootstrap, st.Phase)
	})
}

func TestTerminalPhasesAbsorbEverything(t *testing.T) {
	st := NewState(testSession(false), false)
	st = Reduce(st, BootstrapBegun{})
	st = Reduce(st, SessionTimedOut{})
	require.Equal(t, PhaseExpired, st.Phase)

	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementKYCData, Status: domain.RequirementOutstanding},
	}})
	assert.Equal(t, PhaseExpired, st.Phase)
	assert.Nil(t, st.Collect)
}

func TestServerOrderedAuthorizeRequirement(t *testing.T) {
	st := atCheckRequirements(t)
	st = Reduce(st, RequirementsFetched{Requirements: []domain.Requirement{
		{Kind: domain.RequirementAuthorize, Status: domain.RequirementOutstanding},
	}})
	assert.Equal(t, PhaseAuthorize, st.Phase)
}
