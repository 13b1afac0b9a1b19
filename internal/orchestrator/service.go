package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"veriflow/internal/api"
	"veriflow/internal/capture"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/platform/metrics"
	"veriflow/internal/session"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
	"veriflow/pkg/platform/audit"
	"veriflow/pkg/platform/secrets"
	"veriflow/pkg/platform/sentinel"
)

// SnapshotStore persists the resumable session subset. Satisfied by the
// memory, redis and bolt stores in internal/session/store/snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snap *session.Snapshot) error
	Load(ctx context.Context, id domain.SessionID) (*session.Snapshot, error)
	Delete(ctx context.Context, id domain.SessionID) error
}

// Service runs the orchestrator's side effects: backend calls, snapshot
// maintenance, and the handoff status watch. React is only ever called from a
// session's actor, one event at a time, so a second submit while one is in
// flight cannot happen by construction.
type Service struct {
	backend     api.Backend
	snapshots   SnapshotStore
	collect     *collect.Service
	handoff     *handoff.Service
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       *audit.Recorder
	now         func() time.Time
	snapshotTTL time.Duration

	watchMu sync.Mutex
	watches map[domain.SessionID]*handoffWatch
}

// handoffWatch is one running status poll. cancel stops the poll; once makes
// sure the secondary teardown runs a single time no matter whether the poll
// observed the terminal status or a local event ended the handoff first.
type handoffWatch struct {
	cancel context.CancelFunc
	close  func()
	once   sync.Once
}

func (w *handoffWatch) end() {
	w.cancel()
	w.once.Do(w.close)
}

type ServiceOption func(*Service)

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithAudit(rec *audit.Recorder) ServiceOption {
	return func(s *Service) { s.audit = rec }
}

func NewService(
	backend api.Backend,
	snapshots SnapshotStore,
	collectSvc *collect.Service,
	handoffSvc *handoff.Service,
	logger *slog.Logger,
	snapshotTTL time.Duration,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		backend:     backend,
		snapshots:   snapshots,
		collect:     collectSvc,
		handoff:     handoffSvc,
		logger:      logger,
		now:         time.Now,
		snapshotTTL: snapshotTTL,
		watches:     make(map[domain.SessionID]*handoffWatch),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SandboxEvent verifies a sandbox override request and returns the event to
// dispatch. Live sessions are refused outright; non-live sessions must still
// present the configured secret.
func (s *Service) SandboxEvent(st State, outcome domain.SandboxOutcome, secret string) (SandboxForced, error) {
	if st.Session.Config.IsLive {
		return SandboxForced{}, dErrors.New(dErrors.CodeForbidden, "sandbox outcomes are not available for live sessions")
	}
	if !outcome.Valid() {
		return SandboxForced{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown sandbox outcome %q", outcome)
	}
	if st.Session.Config.SandboxSecretHash == "" {
		return SandboxForced{}, dErrors.New(dErrors.CodeForbidden, "no sandbox secret configured")
	}
	if err := secrets.Verify(secret, st.Session.Config.SandboxSecretHash); err != nil {
		return SandboxForced{}, err
	}
	return SandboxForced{Outcome: outcome}, nil
}

// React runs the side effects a transition calls for. dispatch enqueues
// follow-up events on the owning actor; closeSecondary tears down any
// secondary browser context a handoff opened.
func (s *Service) React(ctx context.Context, ev Event, prev, next State, dispatch func(Event), closeSecondary func()) {
	switch {
	case next.Phase == PhaseInitBootstrap && prev.Phase == PhaseInit:
		s.bootstrap(ctx, next, dispatch)

	case next.Phase == PhaseCheckRequirements && prev.Phase != PhaseCheckRequirements:
		s.fetchRequirements(ctx, next, dispatch)

	case next.Phase == PhaseAuthorize && prev.Phase != PhaseAuthorize:
		s.authorize(ctx, next, dispatch)
	}

	if next.Collect != nil && (prev.Collect == nil || prev.Collect.Kind != next.Collect.Kind) {
		s.prefill(ctx, next, dispatch)
	}
	if collectJustSubmitted(prev, next) {
		s.submitCollected(ctx, next, dispatch)
	}

	if next.Handoff != nil && prev.Handoff == nil && next.Handoff.Phase == handoff.PhaseInit {
		s.beginHandoff(ctx, next, dispatch)
	}
	if handoffJustRegistered(prev, next) {
		s.startHandoffWatch(ctx, next, dispatch, closeSecondary)
	}
	if primaryCancel(ev) && handoffJustEnded(prev, next) && prev.Handoff.ScopedToken != "" {
		s.handoff.CancelRemote(ctx, prev.Handoff.ScopedToken)
	}
	if handoffJustEnded(prev, next) || next.Phase.Terminal() {
		s.endHandoffWatch(next.Session.ID)
	}

	s.recordSatisfied(ev, prev)
	s.auditTransition(ev, prev, next)
	s.maintainSnapshot(ctx, prev, next)
}

func (s *Service) bootstrap(ctx context.Context, st State, dispatch func(Event)) {
	if st.Session.Config.PlaybookKey == "" {
		dispatch(ConfigRejected{Reason: "missing playbook key"})
		return
	}
	if !st.Resume {
		dispatch(Bootstrapped{})
		return
	}

	snap, err := s.snapshots.Load(ctx, st.Session.ID)
	switch {
	case errors.Is(err, sentinel.ErrExpired):
		dispatch(SessionInvalidated{})
	case err != nil:
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "snapshot load failed, starting fresh", "error", err)
		}
		dispatch(Bootstrapped{})
	default:
		s.logger.InfoContext(ctx, "session resumed from snapshot",
			"session_id", snap.SessionID,
			"saved_at", snap.SavedAt,
		)
		dispatch(Bootstrapped{Resumed: true, AuthToken: snap.AuthToken})
	}
}

func (s *Service) fetchRequirements(ctx context.Context, st State, dispatch func(Event)) {
	reqs, err := s.backend.Requirements(ctx, st.Session.AuthToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			dispatch(SessionInvalidated{})
			return
		}
		// transient failure: stay in checkRequirements, the caller re-dispatches
		s.logger.ErrorContext(ctx, "requirement fetch failed", "error", err)
		return
	}
	dispatch(RequirementsFetched{Requirements: reqs})
}

func (s *Service) authorize(ctx context.Context, st State, dispatch func(Event)) {
	token, err := s.backend.Validate(ctx, st.Session.AuthToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			dispatch(SessionInvalidated{})
			return
		}
		s.logger.ErrorContext(ctx, "validation failed", "error", err)
		return
	}
	dispatch(Authorized{ValidationToken: token})
}

func (s *Service) prefill(ctx context.Context, st State, dispatch func(Event)) {
	ev, err := s.collect.Prefill(ctx, st.Session.AuthToken, st.Collect.Kind)
	if err != nil {
		// prefill is best effort; the user can re-enter what we couldn't read
		s.logger.WarnContext(ctx, "vault prefill failed", "kind", st.Collect.Kind, "error", err)
		return
	}
	if len(ev.Fields) > 0 {
		dispatch(CollectPrefilled{Fields: ev})
	}
}

func (s *Service) submitCollected(ctx context.Context, st State, dispatch func(Event)) {
	ev, err := s.collect.Submit(ctx, st.Session.AuthToken, *st.Collect)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			dispatch(SessionInvalidated{})
			return
		}
		s.logger.ErrorContext(ctx, "vault submit failed", "kind", st.Collect.Kind, "error", err)
		return
	}
	dispatch(CollectSubmitted{Fields: ev})
}

func (s *Service) beginHandoff(ctx context.Context, st State, dispatch func(Event)) {
	minted, qr, err := s.handoff.Begin(ctx, st.Session.ID, st.Session.AuthToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			dispatch(SessionInvalidated{})
			return
		}
		s.logger.ErrorContext(ctx, "handoff token mint failed", "error", err)
		return
	}
	dispatch(HandoffBegun{Minted: minted, QR: qr})
}

// startHandoffWatch registers a cancelable watch for the freshly minted
// scoped token and runs the status poll in the background. A previous watch
// for the session (a superseded handoff) is ended first.
func (s *Service) startHandoffWatch(ctx context.Context, st State, dispatch func(Event), closeSecondary func()) {
	watchCtx, cancel := context.WithCancel(ctx)
	w := &handoffWatch{cancel: cancel, close: closeSecondary}

	s.watchMu.Lock()
	if old, ok := s.watches[st.Session.ID]; ok {
		old.end()
	}
	s.watches[st.Session.ID] = w
	s.watchMu.Unlock()

	go s.watchHandoff(watchCtx, st.Session.ID, *st.Handoff, dispatch, w)
}

// endHandoffWatch stops the session's running poll, if any, and tears down
// the secondary context. Idempotent; safe when no watch is registered.
func (s *Service) endHandoffWatch(id domain.SessionID) {
	s.watchMu.Lock()
	w, ok := s.watches[id]
	delete(s.watches, id)
	s.watchMu.Unlock()
	if ok {
		w.end()
	}
}

func (s *Service) watchHandoff(ctx context.Context, id domain.SessionID, st handoff.State, dispatch func(Event), w *handoffWatch) {
	err := s.handoff.Watch(ctx, st, func(ev handoff.Event) {
		dispatch(HandoffEvent{E: ev})
	}, func() { w.once.Do(w.close) })
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "handoff watch ended", "error", err)
	}

	s.watchMu.Lock()
	if s.watches[id] == w {
		delete(s.watches, id)
	}
	s.watchMu.Unlock()
}

// SecondaryStatusEvent reads the shared d2p status on behalf of a claimed
// secondary device and returns the observation to dispatch. This is how a
// primary-side cancel written to the backend reaches the secondary machine.
func (s *Service) SecondaryStatusEvent(ctx context.Context, st State) (SecondaryEvent, bool) {
	if st.Secondary == nil || st.Secondary.Phase.Terminal() {
		return SecondaryEvent{}, false
	}
	status, err := s.backend.ScopedStatus(ctx, st.Secondary.ScopedToken)
	if err != nil {
		s.logger.WarnContext(ctx, "secondary status read failed", "error", err)
		return SecondaryEvent{}, false
	}
	return SecondaryEvent{E: handoff.SecondaryStatusObserved{Status: status}}, true
}

func (s *Service) recordSatisfied(ev Event, prev State) {
	if s.metrics == nil {
		return
	}
	if requirementSatisfied(ev) {
		s.metrics.RequirementsSatisfied.WithLabelValues(string(prev.Active)).Inc()
	}
}

// auditTransition translates a reduced transition into audit records.
func (s *Service) auditTransition(ev Event, prev, next State) {
	if s.audit == nil {
		return
	}
	record := func(action audit.Action, detail string) {
		s.audit.Record(audit.Event{
			SessionID: next.Session.ID,
			Action:    action,
			Detail:    detail,
			Live:      next.Session.Config.IsLive,
		})
	}

	switch e := ev.(type) {
	case Bootstrapped:
		if e.Resumed {
			record(audit.ActionSessionResumed, "")
		} else {
			record(audit.ActionSessionBootstrapped, "")
		}
	case IdentifyEvent:
		switch ie := e.E.(type) {
		case identify.ChallengeIssued:
			record(audit.ActionChallengeIssued, string(ie.Challenge.Kind))
		case identify.ChallengeSucceeded:
			record(audit.ActionChallengeVerified, "")
		case identify.ChallengeFailed:
			record(audit.ActionChallengeFailed, "")
		}
	case HandoffBegun:
		record(audit.ActionHandoffStarted, "")
	case HandoffClaimed:
		record(audit.ActionHandoffClaimed, "")
	case HandoffEvent:
		if prev.Handoff != nil && next.Handoff == nil {
			detail := string(prev.Handoff.LastStatus)
			if obs, ok := e.E.(handoff.StatusObserved); ok {
				detail = string(obs.Status)
			}
			record(audit.ActionHandoffFinished, detail)
		}
	case Authorized:
		record(audit.ActionSessionAuthorized, "")
	case SandboxForced:
		record(audit.ActionSandboxForced, string(e.Outcome))
	}

	if requirementSatisfied(ev) {
		record(audit.ActionRequirementSatisfied, string(prev.Active))
	}
	if next.Phase.Terminal() && !prev.Phase.Terminal() {
		record(audit.ActionSessionTerminal, string(next.Phase))
	}
}

func requirementSatisfied(ev Event) bool {
	switch e := ev.(type) {
	case CollectSubmitted:
		return true
	case CaptureEvent:
		fin, ok := e.E.(capture.ProcessingFinished)
		return ok && fin.OK
	case HandoffEvent:
		obs, ok := e.E.(handoff.StatusObserved)
		return ok && obs.Status == domain.D2PCompleted
	}
	return false
}

// maintainSnapshot keeps the resumable subset current and removes it the
// moment the session is terminal.
func (s *Service) maintainSnapshot(ctx context.Context, prev, next State) {
	if next.Phase.Terminal() {
		if err := s.snapshots.Delete(ctx, next.Session.ID); err != nil {
			s.logger.WarnContext(ctx, "snapshot delete failed", "error", err)
		}
		if s.metrics != nil {
			s.metrics.SessionsTerminal.WithLabelValues(string(next.Phase)).Inc()
		}
		return
	}

	if next.Session.AuthToken == "" {
		return
	}
	if prev.Session.AuthToken == next.Session.AuthToken &&
		!requirementsChanged(prev.Session.Requirements, next.Session.Requirements) {
		return
	}
	snap := session.SnapshotOf(next.Session, s.now(), s.snapshotTTL)
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "snapshot save failed", "error", err)
	}
}

func collectJustSubmitted(prev, next State) bool {
	if next.Collect == nil || next.Collect.Phase != collect.PhaseSubmitted {
		return false
	}
	return prev.Collect == nil || prev.Collect.Phase != collect.PhaseSubmitted
}

func handoffJustRegistered(prev, next State) bool {
	if next.Handoff == nil || next.Handoff.ScopedToken == "" {
		return false
	}
	return prev.Handoff == nil || prev.Handoff.ScopedToken == ""
}

func handoffJustEnded(prev, next State) bool {
	return prev.Handoff != nil && next.Handoff == nil
}

// primaryCancel reports whether the event is a user-initiated close of the
// handoff on the primary device.
func primaryCancel(ev Event) bool {
	he, ok := ev.(HandoffEvent)
	if !ok {
		return false
	}
	switch he.E.(type) {
	case handoff.Canceled, handoff.ContinueOnDesktopConfirmed:
		return true
	}
	return false
}

func requirementsChanged(a, b []domain.Requirement) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
