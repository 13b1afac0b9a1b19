// Package http is the transport UI applications drive sessions through. Each
// endpoint translates a request into typed events on the session's actor and
// returns the current state snapshot; dispatch is asynchronous, so the
// returned snapshot may predate the event's effects and clients re-read state
// after acting.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"veriflow/internal/capture"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/orchestrator"
	"veriflow/internal/platform/middleware"
	"veriflow/internal/session"
	"veriflow/internal/token"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

const (
	primaryTokenTTL = 24 * time.Hour
	handoffTokenTTL = 30 * time.Minute
)

// PolicyResolver turns a playbook key into session configuration. Invalid or
// unknown keys surface as config-invalid errors.
type PolicyResolver func(playbookKey string) (session.Config, error)

// Handler exposes the flow engine over HTTP.
type Handler struct {
	registry *orchestrator.Registry
	svc      *orchestrator.Service
	identify *identify.Service
	tokens   *token.Service
	policy   PolicyResolver
	logger   *slog.Logger
}

func NewHandler(
	registry *orchestrator.Registry,
	svc *orchestrator.Service,
	identifySvc *identify.Service,
	tokens *token.Service,
	policy PolicyResolver,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		registry: registry,
		svc:      svc,
		identify: identifySvc,
		tokens:   tokens,
		policy:   policy,
		logger:   logger,
	}
}

// Bootstrap creates (or resumes) a session actor and issues the session
// token UI applications authenticate with from then on.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}

	cfg, err := h.policy(req.PlaybookKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resume := false
	id := domain.NewSessionID()
	if req.SessionID != "" {
		parsed, err := domain.ParseSessionID(req.SessionID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		id = parsed
		resume = true
	}

	device := session.ProbeDevice(r.UserAgent(), req.Device.HasPlatformAuthenticator, req.Device.HasCamera)
	sess := session.New(id, cfg, device)

	actor := h.registry.Create(orchestrator.NewState(sess, resume))
	if err := actor.Dispatch(orchestrator.BootstrapBegun{}); err != nil {
		h.writeError(w, r, err)
		return
	}

	sessionToken, err := h.tokens.Issue(id, token.ScopePrimary, primaryTokenTTL)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "issue session token"))
		return
	}

	h.writeJSON(w, r, http.StatusCreated, bootstrapResponse{
		SessionID:    id.String(),
		SessionToken: sessionToken,
		State:        renderState(actor.State()),
	})
}

// GetState returns the current snapshot for polling UIs.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// a secondary device reading state doubles as its shared-status check,
	// which is how it observes a primary-side cancel
	if middleware.GetScope(r.Context()) == token.ScopeHandoff {
		if ev, ok := h.svc.SecondaryStatusEvent(r.Context(), actor.State()); ok {
			if err := actor.Dispatch(ev); err != nil {
				h.logger.WarnContext(r.Context(), "secondary status dispatch dropped", "error", err)
			}
		}
	}

	h.writeJSON(w, r, http.StatusOK, renderState(actor.State()))
}

func (h *Handler) SubmitIdentifier(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}

	ev, err := h.identify.SubmitIdentifier(r.Context(), req.Identifier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.dispatch(w, r, actor, orchestrator.IdentifyEvent{E: ev})
}

func (h *Handler) RequestChallenge(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}

	st := actor.State()
	if st.Identify == nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "not identifying"))
		return
	}
	if err := actor.Dispatch(orchestrator.IdentifyEvent{E: identify.KindSelected{Kind: req.Kind}}); err != nil {
		h.writeError(w, r, err)
		return
	}

	ev, err := h.identify.RequestChallenge(r.Context(), st.Identify.Identifier, req.Kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.dispatch(w, r, actor, orchestrator.IdentifyEvent{E: ev})
}

func (h *Handler) ResendChallenge(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st := actor.State()
	if st.Identify == nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "not identifying"))
		return
	}

	ev, err := h.identify.Resend(r.Context(), *st.Identify)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.dispatch(w, r, actor, orchestrator.IdentifyEvent{E: ev})
}

func (h *Handler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}

	st := actor.State()
	if st.Identify == nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "not identifying"))
		return
	}

	ev, verifyErr := h.identify.VerifyChallenge(r.Context(), *st.Identify, req.Response)
	if ev != nil {
		// a failed verification still moves the machine (expired challenges
		// return to selection)
		if err := actor.Dispatch(orchestrator.IdentifyEvent{E: ev}); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if verifyErr != nil {
		h.writeError(w, r, verifyErr)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, renderState(actor.State()))
}

func (h *Handler) SubmitPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}
	h.forward(w, r, orchestrator.CollectEvent{E: collect.PageSubmitted{Fields: req.Fields}})
}

func (h *Handler) EditPage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}
	h.forward(w, r, orchestrator.CollectEvent{E: collect.EditPage{ID: collect.PageID(req.Page)}})
}

func (h *Handler) ReturnToSummary(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.CollectEvent{E: collect.ReturnToSummary{}})
}

func (h *Handler) ConfirmCollect(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.CollectEvent{E: collect.Confirmed{}})
}

func (h *Handler) CaptureConsent(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.CaptureEvent{E: capture.ConsentGiven{}})
}

func (h *Handler) SelectDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}
	h.forward(w, r, orchestrator.CaptureEvent{E: capture.DocumentSelected{
		Country: req.Country,
		DocType: capture.DocType(req.DocType),
	}})
}

func (h *Handler) CaptureResult(w http.ResponseWriter, r *http.Request) {
	var req captureResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}
	if req.Accepted {
		h.forward(w, r, orchestrator.CaptureEvent{E: capture.CaptureAccepted{}})
		return
	}
	h.forward(w, r, orchestrator.CaptureEvent{E: capture.CaptureRejected{Defects: req.Defects}})
}

func (h *Handler) CaptureRetry(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.CaptureEvent{E: capture.RetryRequested{}})
}

func (h *Handler) StartSelfie(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.CaptureEvent{E: capture.SelfieStarted{}})
}

func (h *Handler) CaptureProcessed(w http.ResponseWriter, r *http.Request) {
	var req processingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}
	h.forward(w, r, orchestrator.CaptureEvent{E: capture.ProcessingFinished{OK: req.OK, Reason: req.Reason}})
}

func (h *Handler) HandoffSMS(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.HandoffEvent{E: handoff.SMSLinkSent{}})
}

func (h *Handler) HandoffCancel(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.HandoffEvent{E: handoff.Canceled{}})
}

func (h *Handler) ContinueOnDesktop(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.HandoffEvent{E: handoff.ContinueOnDesktopRequested{}})
}

func (h *Handler) ContinueOnDesktopConfirm(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.HandoffEvent{E: handoff.ContinueOnDesktopConfirmed{}})
}

func (h *Handler) ContinueOnDesktopDismiss(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, orchestrator.HandoffEvent{E: handoff.ContinueOnDesktopDismissed{}})
}

// ClaimHandoff redeems a QR payload on the secondary device and issues a
// handoff-scoped session token time-boxed to the scoped credential.
func (h *Handler) ClaimHandoff(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}

	payload, err := handoff.DecodeQR(req.Payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !payload.ExpiresAt.IsZero() && time.Now().After(payload.ExpiresAt) {
		h.writeError(w, r, dErrors.New(dErrors.CodeSessionExpired, "handoff link has expired"))
		return
	}

	id, err := domain.ParseSessionID(payload.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ttl := handoffTokenTTL
	if !payload.ExpiresAt.IsZero() {
		ttl = time.Until(payload.ExpiresAt)
	}
	sessionToken, err := h.tokens.Issue(id, token.ScopeHandoff, ttl)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "issue handoff token"))
		return
	}

	if err := actor.Dispatch(orchestrator.HandoffClaimed{}); err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = actor.Dispatch(orchestrator.SecondaryEvent{E: handoff.TabOpened{}})

	h.writeJSON(w, r, http.StatusOK, claimResponse{
		SessionToken: sessionToken,
		State:        renderState(actor.State()),
	})
}

func (h *Handler) SecondarySkipLiveness(w http.ResponseWriter, r *http.Request) {
	h.forwardScoped(w, r, token.ScopeHandoff, orchestrator.SecondaryEvent{E: handoff.LivenessSkipped{}})
}

func (h *Handler) SecondaryResult(w http.ResponseWriter, r *http.Request) {
	var req secondaryResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}
	h.forwardScoped(w, r, token.ScopeHandoff, orchestrator.SecondaryEvent{E: handoff.SecondaryFinished{OK: req.OK}})
}

// Sandbox injects a deterministic outcome into a non-live session.
func (h *Handler) Sandbox(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req sandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed body"))
		return
	}

	ev, err := h.svc.SandboxEvent(actor.State(), req.Outcome, req.Secret)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.dispatch(w, r, actor, ev)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": h.registry.Len(),
	})
}

func (h *Handler) actor(r *http.Request) (*orchestrator.Actor, error) {
	id, err := domain.ParseSessionID(middleware.GetSessionID(r.Context()))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session identity")
	}
	return h.registry.Get(id)
}

// forward is the common shape of event-only endpoints.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, ev orchestrator.Event) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.dispatch(w, r, actor, ev)
}

// forwardScoped additionally requires a particular token scope.
func (h *Handler) forwardScoped(w http.ResponseWriter, r *http.Request, scope string, ev orchestrator.Event) {
	if middleware.GetScope(r.Context()) != scope {
		h.writeError(w, r, dErrors.New(dErrors.CodeForbidden, "wrong token scope"))
		return
	}
	h.forward(w, r, ev)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, actor *orchestrator.Actor, ev orchestrator.Event) {
	if err := actor.Dispatch(ev); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, renderState(actor.State()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(r.Context(), "write response failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	code := string(dErrors.CodeInternal)
	msg := "internal error"

	var derr *dErrors.Error
	if errors.As(err, &derr) {
		code = string(derr.Code)
		msg = derr.Message
	}
	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	h.writeJSON(w, r, status, errorBody{Error: code, Message: msg})
}
