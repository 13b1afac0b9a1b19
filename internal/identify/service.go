package identify

import (
	"context"
	"log/slog"
	"time"

	"veriflow/internal/api"
	"veriflow/internal/platform/metrics"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

// Service drives the network side of identification. It owns no session
// state; it translates backend responses into engine events for the caller
// to reduce.
type Service struct {
	backend api.Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(backend api.Backend, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{backend: backend, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SubmitIdentifier looks up an identifier and returns the event to reduce.
func (s *Service) SubmitIdentifier(ctx context.Context, identifier string) (IdentifierSubmitted, error) {
	if identifier == "" {
		return IdentifierSubmitted{}, dErrors.New(dErrors.CodeInvalidInput, "identifier is required")
	}

	resp, err := s.backend.Identify(ctx, api.IdentifyRequest{Identifier: identifier})
	if err != nil {
		return IdentifierSubmitted{}, err
	}

	return IdentifierSubmitted{
		Identifier:     identifier,
		UserFound:      resp.UserFound,
		AvailableKinds: resp.AvailableKinds,
	}, nil
}

// RequestChallenge issues a login challenge of the given kind. The resend
// cooldown is computed here from the server-provided retry delay.
func (s *Service) RequestChallenge(ctx context.Context, identifier string, kind domain.ChallengeKind) (ChallengeIssued, error) {
	resp, err := s.backend.LoginChallenge(ctx, api.LoginChallengeRequest{
		Identifier: identifier,
		Kind:       kind,
	})
	if err != nil {
		return ChallengeIssued{}, err
	}

	now := s.now()
	challenge := Challenge{
		Kind:      resp.Kind,
		Token:     resp.ChallengeToken,
		ExpiresAt: resp.ExpiresAt,
	}
	if resp.Kind != domain.ChallengeBiometric {
		challenge.RetryDisabledUntil = now.Add(time.Duration(resp.TimeBeforeRetryS) * time.Second)
	}

	if s.metrics != nil {
		s.metrics.ChallengesIssued.WithLabelValues(string(resp.Kind)).Inc()
	}
	s.logger.InfoContext(ctx, "challenge issued",
		"kind", resp.Kind,
		"time_before_retry_s", resp.TimeBeforeRetryS,
	)

	return ChallengeIssued{Challenge: challenge}, nil
}

// Resend re-requests a challenge. Attempts inside the cooldown window are
// rejected locally without a network call.
func (s *Service) Resend(ctx context.Context, st State) (ChallengeIssued, error) {
	if st.Challenge == nil {
		return ChallengeIssued{}, dErrors.New(dErrors.CodeInvalidInput, "no challenge to resend")
	}
	if !st.Challenge.CanResend(s.now()) {
		if s.metrics != nil {
			s.metrics.ResendRejections.Inc()
		}
		return ChallengeIssued{}, dErrors.New(dErrors.CodeChallengeCooldown, "resend not yet allowed")
	}
	return s.RequestChallenge(ctx, st.Identifier, st.Challenge.Kind)
}

// VerifyChallenge proves possession and returns the success event carrying
// the fresh primary auth token.
func (s *Service) VerifyChallenge(ctx context.Context, st State, response string) (Event, error) {
	if st.Challenge == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no active challenge")
	}
	if st.Challenge.Expired(s.now()) {
		return ChallengeFailed{Expired: true}, dErrors.New(dErrors.CodeChallengeExpired, "challenge has expired")
	}

	resp, err := s.backend.VerifyChallenge(ctx, api.VerifyRequest{
		ChallengeToken:    st.Challenge.Token,
		ChallengeResponse: response,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			// wrong code: recoverable, stay on the challenge for a re-prompt
			return ChallengeFailed{}, err
		}
		return nil, err
	}

	return ChallengeSucceeded{AuthToken: resp.AuthToken}, nil
}
