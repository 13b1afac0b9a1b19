package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"veriflow/internal/api"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/session"
	"veriflow/internal/session/store/snapshot"
	backendmock "veriflow/mocks/backend"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
	"veriflow/pkg/platform/audit"
	"veriflow/pkg/platform/secrets"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	backend   *backendmock.MockBackend
	snapshots *snapshot.MemoryStore
	trail     *audit.MemoryStore
	service   *Service
	cancel    context.CancelFunc
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = backendmock.NewMockBackend(s.ctrl)
	s.snapshots = snapshot.NewMemory()

	logger := slog.New(slog.DiscardHandler)
	collectSvc := collect.New(s.backend, logger)
	poller := handoff.NewPoller(s.backend, logger, 5*time.Millisecond)
	handoffSvc := handoff.NewService(s.backend, logger, poller, time.Minute)

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.trail = audit.NewMemoryStore()
	recorder := audit.NewRecorder(logger, []audit.Sink{s.trail})
	go func() { _ = recorder.Run(s.ctx) }()

	s.service = NewService(s.backend, s.snapshots, collectSvc, handoffSvc, logger, time.Hour,
		WithAudit(recorder))
}

func (s *ServiceSuite) TearDownTest() {
	s.cancel()
}

func (s *ServiceSuite) startActor(sess session.Context, resume bool, opts ...ActorOption) *Actor {
	actor := NewActor(s.service, NewState(sess, resume), opts...)
	actor.Start(s.ctx)
	return actor
}

func (s *ServiceSuite) waitForPhase(actor *Actor, phase Phase) {
	s.Require().Eventually(func() bool {
		return actor.State().Phase == phase
	}, waitFor, tick, "never reached phase %s, stuck at %s", phase, actor.State().Phase)
}

// TestKYCRequirementSatisfiedToSuccess walks the documented loop: a single
// outstanding kyc-data requirement is satisfied by a confirmed submission,
// the refetched list comes back empty, and the session concludes through
// authorize into success.
func (s *ServiceSuite) TestKYCRequirementSatisfiedToSuccess() {
	gomock.InOrder(
		s.backend.EXPECT().Requirements(gomock.Any(), "tok_1").
			Return([]domain.Requirement{
				{Kind: domain.RequirementKYCData, Status: domain.RequirementOutstanding},
			}, nil),
		s.backend.EXPECT().Requirements(gomock.Any(), "tok_1").
			Return([]domain.Requirement{}, nil),
	)
	s.backend.EXPECT().DecryptVault(gomock.Any(), "tok_1", gomock.Any(), gomock.Any()).
		Return(map[domain.FieldKey]string{}, nil)
	s.backend.EXPECT().SubmitVault(gomock.Any(), "tok_1", gomock.Any(), gomock.Any()).Return(nil)
	s.backend.EXPECT().Validate(gomock.Any(), "tok_1").Return("vt_1", nil)

	actor := s.startActor(testSession(false), false)
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseIdentify)

	s.Require().NoError(actor.Dispatch(IdentifyEvent{E: identify.IdentifierSubmitted{
		Identifier:     "user@example.com",
		UserFound:      true,
		AvailableKinds: []domain.ChallengeKind{domain.ChallengeEmail},
	}}))
	s.Require().NoError(actor.Dispatch(IdentifyEvent{E: identify.KindSelected{Kind: domain.ChallengeEmail}}))
	s.Require().NoError(actor.Dispatch(IdentifyEvent{E: identify.ChallengeSucceeded{AuthToken: "tok_1"}}))
	s.waitForPhase(actor, PhaseProcess)

	for actor.State().Collect.Phase == collect.PhaseCollecting {
		page, ok := actor.State().Collect.Current()
		s.Require().True(ok)
		fields := map[domain.FieldKey]string{}
		for _, f := range page.Fields {
			fields[f] = "v"
		}
		before := actor.State().Collect.Index
		s.Require().NoError(actor.Dispatch(CollectEvent{E: collect.PageSubmitted{Fields: fields}}))
		s.Require().Eventually(func() bool {
			c := actor.State().Collect
			return c == nil || c.Index > before || c.Phase != collect.PhaseCollecting
		}, waitFor, tick)
	}
	s.Require().NoError(actor.Dispatch(CollectEvent{E: collect.Confirmed{}}))

	s.waitForPhase(actor, PhaseSuccess)
	s.Equal("vt_1", actor.State().Session.ValidationToken)

	var actions []audit.Action
	s.Require().Eventually(func() bool {
		events, err := s.trail.ListBySession(s.ctx, actor.State().Session.ID)
		s.Require().NoError(err)
		actions = actions[:0]
		for _, ev := range events {
			actions = append(actions, ev.Action)
		}
		return len(actions) >= 4
	}, waitFor, tick)
	s.Contains(actions, audit.ActionSessionBootstrapped)
	s.Contains(actions, audit.ActionChallengeVerified)
	s.Contains(actions, audit.ActionRequirementSatisfied)
	s.Contains(actions, audit.ActionSessionAuthorized)
}

// TestPrimaryCancelStopsPollingAndClosesSecondary covers the cancel path end
// to end: the first handoff's poll stops, the secondary teardown runs once,
// the cancel is written to the shared d2p record, and the replacement handoff
// minted on re-entry is untouched by the superseded poller.
func (s *ServiceSuite) TestPrimaryCancelStopsPollingAndClosesSecondary() {
	s.backend.EXPECT().Requirements(gomock.Any(), "tok_1").
		Return([]domain.Requirement{
			{Kind: domain.RequirementTransfer, Status: domain.RequirementOutstanding},
		}, nil).AnyTimes()

	exp := time.Now().Add(time.Minute)
	gomock.InOrder(
		s.backend.EXPECT().GenerateScopedToken(gomock.Any(), "tok_1").
			Return(&api.D2PGenerateResponse{ScopedAuthToken: "sc_1", ExpiresAt: exp}, nil),
		s.backend.EXPECT().GenerateScopedToken(gomock.Any(), "tok_1").
			Return(&api.D2PGenerateResponse{ScopedAuthToken: "sc_2", ExpiresAt: exp}, nil),
	)

	var oldPolls atomic.Int64
	s.backend.EXPECT().ScopedStatus(gomock.Any(), "sc_1").
		DoAndReturn(func(context.Context, string) (domain.D2PStatus, error) {
			oldPolls.Add(1)
			return domain.D2PWaiting, nil
		}).AnyTimes()
	s.backend.EXPECT().ScopedStatus(gomock.Any(), "sc_2").
		Return(domain.D2PWaiting, nil).AnyTimes()
	s.backend.EXPECT().UpdateScopedStatus(gomock.Any(), "sc_1", domain.D2PCanceled).Return(nil)

	var closed atomic.Int64
	actor := s.startActor(testSession(false), false,
		WithSecondaryCloser(func() { closed.Add(1) }))
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseIdentify)

	s.Require().NoError(actor.Dispatch(IdentifyEvent{E: identify.IdentifierSubmitted{
		Identifier:     "user@example.com",
		UserFound:      true,
		AvailableKinds: []domain.ChallengeKind{domain.ChallengeEmail},
	}}))
	s.Require().NoError(actor.Dispatch(IdentifyEvent{E: identify.KindSelected{Kind: domain.ChallengeEmail}}))
	s.Require().NoError(actor.Dispatch(IdentifyEvent{E: identify.ChallengeSucceeded{AuthToken: "tok_1"}}))

	s.Require().Eventually(func() bool {
		st := actor.State()
		return st.Handoff != nil && st.Handoff.ScopedToken == "sc_1" && oldPolls.Load() >= 2
	}, waitFor, tick, "first handoff never started polling")

	s.Require().NoError(actor.Dispatch(HandoffEvent{E: handoff.Canceled{}}))

	s.Require().Eventually(func() bool {
		st := actor.State()
		return st.Handoff != nil && st.Handoff.ScopedToken == "sc_2"
	}, waitFor, tick, "cancel should re-enter the loop and mint a fresh handoff")
	s.Equal(int64(1), closed.Load(), "secondary context closed exactly once")

	// the canceled token's poll must be stopped; one in-flight call may
	// still land after the snapshot
	before := oldPolls.Load()
	time.Sleep(50 * time.Millisecond)
	s.LessOrEqual(oldPolls.Load(), before+1, "superseded poller kept running")
	s.Equal("sc_2", actor.State().Handoff.ScopedToken)
}

// TestSecondaryStatusEventReadsSharedStatus covers how a claimed secondary
// device learns of a primary-side cancel: its state read doubles as a
// shared-status check.
func (s *ServiceSuite) TestSecondaryStatusEventReadsSharedStatus() {
	sec := handoff.NewSecondaryState("sc_1")
	st := NewState(testSession(false), false)
	st.Secondary = &sec

	s.Run("no secondary machine yields nothing", func() {
		_, ok := s.service.SecondaryStatusEvent(s.ctx, NewState(testSession(false), false))
		s.False(ok)
	})

	s.Run("read error yields nothing", func() {
		s.backend.EXPECT().ScopedStatus(gomock.Any(), "sc_1").
			Return(domain.D2PStatus(""), context.DeadlineExceeded)
		_, ok := s.service.SecondaryStatusEvent(s.ctx, st)
		s.False(ok)
	})

	s.Run("canceled status becomes a secondary observation", func() {
		s.backend.EXPECT().ScopedStatus(gomock.Any(), "sc_1").
			Return(domain.D2PCanceled, nil)
		ev, ok := s.service.SecondaryStatusEvent(s.ctx, st)
		s.Require().True(ok)
		obs, isObs := ev.E.(handoff.SecondaryStatusObserved)
		s.Require().True(isObs)
		s.Equal(domain.D2PCanceled, obs.Status)
	})

	s.Run("terminal secondary stops checking", func() {
		done := handoff.ReduceSecondary(sec, handoff.SecondaryStatusObserved{Status: domain.D2PCanceled})
		ts := st
		ts.Secondary = &done
		_, ok := s.service.SecondaryStatusEvent(s.ctx, ts)
		s.False(ok)
	})
}

func (s *ServiceSuite) TestMissingPlaybookKeyIsConfigInvalid() {
	sess := session.New(domain.NewSessionID(), session.Config{}, session.DeviceInfo{})
	actor := s.startActor(sess, false)
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseConfigInvalid)
}

// TestResumeReproducesLoopPosition covers the round-trip property: a session
// bootstrapped from a still-valid snapshot lands at the same requirement-loop
// position it was saved at.
func (s *ServiceSuite) TestResumeReproducesLoopPosition() {
	sess := testSession(false)
	reqs := []domain.Requirement{
		{Kind: domain.RequirementKYCData, Status: domain.RequirementSatisfied},
		{Kind: domain.RequirementIdentityDocument, Status: domain.RequirementOutstanding},
	}
	s.Require().NoError(s.snapshots.Save(s.ctx, &session.Snapshot{
		SessionID:    sess.ID,
		AuthToken:    "tok_saved",
		PlaybookKey:  sess.Config.PlaybookKey,
		Requirements: reqs,
		SavedAt:      time.Now(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}))
	s.backend.EXPECT().Requirements(gomock.Any(), "tok_saved").Return(reqs, nil)

	actor := s.startActor(sess, true)
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseProcess)

	st := actor.State()
	s.Equal(domain.RequirementIdentityDocument, st.Active)
	s.Equal("tok_saved", st.Session.AuthToken)
	s.NotNil(st.Capture)
}

func (s *ServiceSuite) TestResumeWithExpiredSnapshotIsSessionExpired() {
	sess := testSession(false)
	s.Require().NoError(s.snapshots.Save(s.ctx, &session.Snapshot{
		SessionID: sess.ID,
		AuthToken: "tok_stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	actor := s.startActor(sess, true)
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseSessionExpired)
}

func (s *ServiceSuite) TestRejectedTokenOnRefetchIsSessionExpired() {
	sess := testSession(false)
	s.Require().NoError(s.snapshots.Save(s.ctx, &session.Snapshot{
		SessionID: sess.ID,
		AuthToken: "tok_revoked",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	s.backend.EXPECT().Requirements(gomock.Any(), "tok_revoked").
		Return(nil, dErrors.New(dErrors.CodeSessionExpired, "token revoked"))

	actor := s.startActor(sess, true)
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseSessionExpired)
}

func (s *ServiceSuite) TestTerminalPhaseInvalidatesSnapshot() {
	sess := testSession(false)
	s.Require().NoError(s.snapshots.Save(s.ctx, &session.Snapshot{
		SessionID: sess.ID,
		AuthToken: "tok_1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	actor := s.startActor(sess, false)
	s.Require().NoError(actor.Dispatch(BootstrapBegun{}))
	s.waitForPhase(actor, PhaseIdentify)
	s.Require().NoError(actor.Dispatch(SessionTimedOut{}))
	s.waitForPhase(actor, PhaseExpired)

	s.Require().Eventually(func() bool {
		_, err := s.snapshots.Load(s.ctx, sess.ID)
		return err != nil
	}, waitFor, tick, "snapshot should be deleted on terminal phase")
}

func (s *ServiceSuite) TestSandboxEvent() {
	hash, err := secrets.Hash("letmein")
	s.Require().NoError(err)

	sess := testSession(false)
	sess.Config.SandboxSecretHash = hash
	st := NewState(sess, false)

	s.Run("live session refused", func() {
		live := testSession(true)
		live.Config.SandboxSecretHash = hash
		_, err := s.service.SandboxEvent(NewState(live, false), domain.SandboxFail, "letmein")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("wrong secret refused", func() {
		_, err := s.service.SandboxEvent(st, domain.SandboxFail, "guess")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown outcome refused", func() {
		_, err := s.service.SandboxEvent(st, "explode", "letmein")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("valid secret produces the event", func() {
		ev, err := s.service.SandboxEvent(st, domain.SandboxManualReview, "letmein")
		s.Require().NoError(err)
		s.Equal(domain.SandboxManualReview, ev.Outcome)
	})
}
