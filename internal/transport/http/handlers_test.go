package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"veriflow/internal/api"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/orchestrator"
	"veriflow/internal/platform/metrics"
	"veriflow/internal/session"
	"veriflow/internal/session/store/snapshot"
	"veriflow/internal/token"
	backendmock "veriflow/mocks/backend"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

const uaMobile = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	backend *backendmock.MockBackend
	server  *httptest.Server
	cancel  context.CancelFunc
	metrics *metrics.Metrics
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

// SetupSuite registers the Prometheus instruments once; the default registry
// rejects duplicate registration across per-test setups.
func (s *HandlerSuite) SetupSuite() {
	s.metrics = metrics.New()
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = backendmock.NewMockBackend(s.ctrl)

	logger := slog.New(slog.DiscardHandler)
	collectSvc := collect.New(s.backend, logger)
	poller := handoff.NewPoller(s.backend, logger, 10*time.Millisecond)
	handoffSvc := handoff.NewService(s.backend, logger, poller, time.Minute)
	orchSvc := orchestrator.NewService(s.backend, snapshot.NewMemory(), collectSvc, handoffSvc, logger, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	registry := orchestrator.NewRegistry(ctx, orchSvc)

	tokens := token.NewService("test-signing-key", "veriflow-test")
	identifySvc := identify.New(s.backend, logger)

	policy := func(key string) (session.Config, error) {
		if key != "pb_test" {
			return session.Config{}, dErrors.New(dErrors.CodeConfigInvalid, "unknown playbook key")
		}
		return session.Config{PlaybookKey: key, OrgName: "Acme"}, nil
	}

	handler := NewHandler(registry, orchSvc, identifySvc, tokens, policy, logger)
	s.server = httptest.NewServer(NewRouter(handler, tokens, s.metrics, logger))
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
	s.cancel()
}

func (s *HandlerSuite) post(path, authToken string, body, out any) *http.Response {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(raw))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", uaMobile)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (s *HandlerSuite) getState(authToken string) stateResponse {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/session", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var out stateResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *HandlerSuite) bootstrap() bootstrapResponse {
	var out bootstrapResponse
	resp := s.post("/sessions", "", bootstrapRequest{
		PlaybookKey: "pb_test",
		Device:      deviceRequest{HasCamera: true},
	}, &out)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().NotEmpty(out.SessionToken)
	return out
}

func (s *HandlerSuite) waitForPhase(authToken string, phase orchestrator.Phase) stateResponse {
	var last stateResponse
	s.Require().Eventually(func() bool {
		last = s.getState(authToken)
		return last.Phase == string(phase)
	}, 2*time.Second, 10*time.Millisecond, "stuck at %s waiting for %s", last.Phase, phase)
	return last
}

func (s *HandlerSuite) TestBootstrapIssuesTokenAndStartsIdentify() {
	out := s.bootstrap()
	st := s.waitForPhase(out.SessionToken, orchestrator.PhaseIdentify)
	s.Require().NotNil(st.Identify)
	s.Equal(string(identify.PhaseAddPhone), st.Identify.Phase, "mobile UA starts at phone entry")
}

func (s *HandlerSuite) TestUnknownPlaybookKeyRejected() {
	resp := s.post("/sessions", "", bootstrapRequest{PlaybookKey: "pb_bogus"}, nil)
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func (s *HandlerSuite) TestStateRequiresSessionToken() {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/session", nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerSuite) TestIdentifyEndpointsDriveTheEngine() {
	s.backend.EXPECT().Identify(gomock.Any(), gomock.Any()).
		Return(&api.IdentifyResponse{
			UserFound:      true,
			AvailableKinds: []domain.ChallengeKind{domain.ChallengeEmail},
		}, nil)
	s.backend.EXPECT().LoginChallenge(gomock.Any(), gomock.Any()).
		Return(&api.LoginChallengeResponse{
			ChallengeToken:   "ct_1",
			Kind:             domain.ChallengeEmail,
			TimeBeforeRetryS: 30,
			ExpiresAt:        time.Now().Add(10 * time.Minute),
		}, nil)

	out := s.bootstrap()
	s.waitForPhase(out.SessionToken, orchestrator.PhaseIdentify)

	resp := s.post("/session/identify", out.SessionToken,
		identifierRequest{Identifier: "user@example.com"}, nil)
	s.Equal(http.StatusAccepted, resp.StatusCode)

	resp = s.post("/session/identify/challenge", out.SessionToken,
		challengeRequest{Kind: domain.ChallengeEmail}, nil)
	s.Equal(http.StatusAccepted, resp.StatusCode)

	s.Require().Eventually(func() bool {
		st := s.getState(out.SessionToken)
		return st.Identify != nil && st.Identify.Phase == string(identify.PhaseEmailChallenge)
	}, 2*time.Second, 10*time.Millisecond)

	// immediate resend sits inside the 30s cooldown, rejected with no
	// backend call (no LoginChallenge expectation remains)
	resp = s.post("/session/identify/resend", out.SessionToken, struct{}{}, nil)
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func (s *HandlerSuite) TestClaimRejectsGarbagePayload() {
	resp := s.post("/handoff/claim", "", claimRequest{Payload: "not-a-payload"}, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestClaimRejectsExpiredPayload() {
	payload, err := handoff.EncodeQR(handoff.QRPayload{
		SessionID:   domain.NewSessionID().String(),
		ScopedToken: "sc_1",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})
	s.Require().NoError(err)

	resp := s.post("/handoff/claim", "", claimRequest{Payload: payload}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerSuite) TestSandboxRefusedWithoutSecret() {
	out := s.bootstrap()
	s.waitForPhase(out.SessionToken, orchestrator.PhaseIdentify)

	resp := s.post("/session/sandbox", out.SessionToken,
		sandboxRequest{Outcome: domain.SandboxFail, Secret: "nope"}, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *HandlerSuite) TestSecondaryEndpointsRequireHandoffScope() {
	out := s.bootstrap()
	s.waitForPhase(out.SessionToken, orchestrator.PhaseIdentify)

	resp := s.post("/session/handoff/result", out.SessionToken,
		secondaryResultRequest{OK: true}, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode, "primary-scoped token cannot act as the secondary device")
}
