package audit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veriflow/pkg/domain"
)

type RecorderSuite struct {
	suite.Suite
	store  *MemoryStore
	rec    *Recorder
	cancel context.CancelFunc
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.rec = NewRecorder(slog.New(slog.DiscardHandler), []Sink{s.store})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = s.rec.Run(ctx) }()
}

func (s *RecorderSuite) TearDownTest() {
	s.cancel()
}

func (s *RecorderSuite) TestRecordDeliversToSink() {
	id := domain.NewSessionID()
	s.rec.Record(Event{SessionID: id, Action: ActionSessionBootstrapped})
	s.rec.Record(Event{SessionID: id, Action: ActionRequirementSatisfied, Detail: "kyc"})

	s.Require().Eventually(func() bool {
		events, err := s.store.ListBySession(context.Background(), id)
		s.Require().NoError(err)
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	events, err := s.store.ListBySession(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(ActionSessionBootstrapped, events[0].Action)
	s.Equal("kyc", events[1].Detail)
	s.False(events[0].Timestamp.IsZero(), "recorder stamps events on enqueue")
}

func (s *RecorderSuite) TestEventsForOtherSessionsAreFilteredOut() {
	a, b := domain.NewSessionID(), domain.NewSessionID()
	s.rec.Record(Event{SessionID: a, Action: ActionSessionBootstrapped})
	s.rec.Record(Event{SessionID: b, Action: ActionSessionBootstrapped})

	s.Require().Eventually(func() bool {
		recent, err := s.store.ListRecent(context.Background(), 10)
		s.Require().NoError(err)
		return len(recent) == 2
	}, time.Second, 5*time.Millisecond)

	events, err := s.store.ListBySession(context.Background(), a)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *RecorderSuite) TestFullInboxDropsInsteadOfBlocking() {
	rec := NewRecorder(slog.New(slog.DiscardHandler), []Sink{s.store}, WithInboxSize(1))

	// no Run loop draining; the second Record must return immediately
	done := make(chan struct{})
	go func() {
		rec.Record(Event{Action: ActionSessionTerminal})
		rec.Record(Event{Action: ActionSessionTerminal})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("Record blocked on a full inbox")
	}
}

func (s *RecorderSuite) TestListRecentHonorsLimit() {
	for range 5 {
		s.rec.Record(Event{SessionID: domain.NewSessionID(), Action: ActionChallengeIssued})
	}
	s.Require().Eventually(func() bool {
		recent, err := s.store.ListRecent(context.Background(), 10)
		s.Require().NoError(err)
		return len(recent) == 5
	}, time.Second, 5*time.Millisecond)

	recent, err := s.store.ListRecent(context.Background(), 2)
	s.Require().NoError(err)
	s.Len(recent, 2)
}
