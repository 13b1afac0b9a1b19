package handoff

import (
	"context"
	"log/slog"
	"time"

	"veriflow/internal/api"
	"veriflow/pkg/domain"
)

// Service drives the network side of a primary-device handoff: minting the
// scoped token and supervising the status poll.
type Service struct {
	backend api.Backend
	logger  *slog.Logger
	poller  *Poller
	ttl     time.Duration
}

func NewService(backend api.Backend, logger *slog.Logger, poller *Poller, ttl time.Duration) *Service {
	return &Service{backend: backend, logger: logger, poller: poller, ttl: ttl}
}

// Begin mints a scoped token for the secondary device and returns the engine
// event plus the QR payload to render. Each call mints a fresh token; a
// concluded handoff's token is never reused.
func (s *Service) Begin(ctx context.Context, sessionID domain.SessionID, authToken string) (TokenMinted, string, error) {
	resp, err := s.backend.GenerateScopedToken(ctx, authToken)
	if err != nil {
		return TokenMinted{}, "", err
	}

	encoded, err := EncodeQR(QRPayload{
		SessionID:   sessionID.String(),
		ScopedToken: resp.ScopedAuthToken,
		ExpiresAt:   resp.ExpiresAt,
	})
	if err != nil {
		return TokenMinted{}, "", err
	}

	s.logger.InfoContext(ctx, "handoff token minted", "expires_at", resp.ExpiresAt)
	return TokenMinted{Token: resp.ScopedAuthToken, ExpiresAt: resp.ExpiresAt}, encoded, nil
}

// Watch polls the shared status, dispatching each observation as an engine
// event. Every observation carries the watched token so a superseded poller
// cannot feed a later handoff. The watch ends on a terminal status or on the
// deadline; a deadline without a terminal status is dispatched as an expired
// observation. Either way closeSecondary runs exactly once before returning;
// cancellation leaves the teardown to whoever canceled.
func (s *Service) Watch(ctx context.Context, st State, dispatch func(Event), closeSecondary func()) error {
	deadline := st.ExpiresAt
	if deadline.IsZero() {
		deadline = time.Now().Add(s.ttl)
	}

	terminal, err := s.poller.Run(ctx, st.ScopedToken, deadline, func(status domain.D2PStatus) {
		dispatch(StatusObserved{Status: status, Token: st.ScopedToken})
	})
	if err != nil {
		return err
	}
	if terminal == "" {
		dispatch(StatusObserved{Status: domain.D2PExpired, Token: st.ScopedToken})
	}
	closeSecondary()
	return nil
}

// CancelRemote writes the canceled status to the backend's shared d2p record
// so the secondary device's next status read observes the same terminal
// result. Best effort: a failed write is logged, the local cancel stands.
func (s *Service) CancelRemote(ctx context.Context, scopedToken string) {
	if err := s.backend.UpdateScopedStatus(ctx, scopedToken, domain.D2PCanceled); err != nil {
		s.logger.WarnContext(ctx, "d2p cancel write failed", "error", err)
	}
}
