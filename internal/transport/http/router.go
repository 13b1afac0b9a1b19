package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veriflow/internal/platform/metrics"
	"veriflow/internal/platform/middleware"
)

// NewRouter wires the full HTTP surface: open endpoints for bootstrap and
// handoff claim, session-token-protected endpoints for everything else.
func NewRouter(h *Handler, validator middleware.TokenValidator, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/sessions", h.Bootstrap)
	r.Post("/handoff/claim", h.ClaimHandoff)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(validator, logger))

		r.Get("/session", h.GetState)

		r.Post("/session/identify", h.SubmitIdentifier)
		r.Post("/session/identify/challenge", h.RequestChallenge)
		r.Post("/session/identify/resend", h.ResendChallenge)
		r.Post("/session/identify/verify", h.VerifyChallenge)

		r.Post("/session/collect/page", h.SubmitPage)
		r.Post("/session/collect/edit", h.EditPage)
		r.Post("/session/collect/summary", h.ReturnToSummary)
		r.Post("/session/collect/confirm", h.ConfirmCollect)

		r.Post("/session/capture/consent", h.CaptureConsent)
		r.Post("/session/capture/document", h.SelectDocument)
		r.Post("/session/capture/result", h.CaptureResult)
		r.Post("/session/capture/retry", h.CaptureRetry)
		r.Post("/session/capture/selfie", h.StartSelfie)
		r.Post("/session/capture/processed", h.CaptureProcessed)

		r.Post("/session/handoff/sms", h.HandoffSMS)
		r.Post("/session/handoff/cancel", h.HandoffCancel)
		r.Post("/session/handoff/desktop", h.ContinueOnDesktop)
		r.Post("/session/handoff/desktop/confirm", h.ContinueOnDesktopConfirm)
		r.Post("/session/handoff/desktop/dismiss", h.ContinueOnDesktopDismiss)
		r.Post("/session/handoff/skip-liveness", h.SecondarySkipLiveness)
		r.Post("/session/handoff/result", h.SecondaryResult)

		r.Post("/session/sandbox", h.Sandbox)
	})

	return r
}
