// Package api is the typed client for the verification backend. The engines
// never talk HTTP directly; they depend on the Backend interface so tests can
// substitute mocks. Transport failures surface as CodeNetwork errors and are
// never retried here - retry is a caller-initiated re-dispatch.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

// Header names for the two credentials the backend understands. The auth
// token header carries either the primary token or the handoff-scoped one;
// the playbook key identifies the verification policy.
const (
	HeaderAuthToken   = "X-Auth-Token"
	HeaderPlaybookKey = "X-Playbook-Key"
)

// Backend is the surface the flow engines consume.
//
//go:generate mockgen -destination=../../mocks/backend/backend_mock.go -package=backendmock veriflow/internal/api Backend
type Backend interface {
	Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error)
	LoginChallenge(ctx context.Context, req LoginChallengeRequest) (*LoginChallengeResponse, error)
	VerifyChallenge(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	Requirements(ctx context.Context, authToken string) ([]domain.Requirement, error)
	SubmitVault(ctx context.Context, authToken string, scope VaultScope, fields map[domain.FieldKey]string) error
	DecryptVault(ctx context.Context, authToken string, scope VaultScope, keys []domain.FieldKey) (map[domain.FieldKey]string, error)
	GenerateScopedToken(ctx context.Context, authToken string) (*D2PGenerateResponse, error)
	ScopedStatus(ctx context.Context, scopedToken string) (domain.D2PStatus, error)
	UpdateScopedStatus(ctx context.Context, scopedToken string, status domain.D2PStatus) error
	Validate(ctx context.Context, authToken string) (string, error)
}

// Client implements Backend over HTTP.
type Client struct {
	baseURL     string
	playbookKey string
	http        *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL, playbookKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		playbookKey: playbookKey,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Identify(ctx context.Context, req IdentifyRequest) (*IdentifyResponse, error) {
	var out IdentifyResponse
	if err := c.do(ctx, http.MethodPost, "/hosted/identify", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoginChallenge(ctx context.Context, req LoginChallengeRequest) (*LoginChallengeResponse, error) {
	var out LoginChallengeResponse
	if err := c.do(ctx, http.MethodPost, "/hosted/identify/login_challenge", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyChallenge(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/hosted/identify/verify", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Requirements(ctx context.Context, authToken string) ([]domain.Requirement, error) {
	var out requirementsResponse
	if err := c.do(ctx, http.MethodGet, "/hosted/onboarding/status", authToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Requirements, nil
}

func (c *Client) SubmitVault(ctx context.Context, authToken string, scope VaultScope, fields map[domain.FieldKey]string) error {
	return c.do(ctx, http.MethodPatch, "/hosted/"+string(scope)+"/vault", authToken, vaultSubmitRequest{Fields: fields}, nil)
}

func (c *Client) DecryptVault(ctx context.Context, authToken string, scope VaultScope, keys []domain.FieldKey) (map[domain.FieldKey]string, error) {
	var out vaultDecryptResponse
	req := vaultDecryptRequest{Fields: keys}
	if err := c.do(ctx, http.MethodPost, "/hosted/"+string(scope)+"/vault/decrypt", authToken, req, &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func (c *Client) GenerateScopedToken(ctx context.Context, authToken string) (*D2PGenerateResponse, error) {
	var out D2PGenerateResponse
	if err := c.do(ctx, http.MethodPost, "/hosted/onboarding/d2p/generate", authToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ScopedStatus(ctx context.Context, scopedToken string) (domain.D2PStatus, error) {
	var out d2pStatusResponse
	if err := c.do(ctx, http.MethodGet, "/hosted/onboarding/d2p/status", scopedToken, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) UpdateScopedStatus(ctx context.Context, scopedToken string, status domain.D2PStatus) error {
	return c.do(ctx, http.MethodPatch, "/hosted/onboarding/d2p/status", scopedToken, d2pStatusRequest{Status: status}, nil)
}

func (c *Client) Validate(ctx context.Context, authToken string) (string, error) {
	var out validateResponse
	if err := c.do(ctx, http.MethodPost, "/hosted/onboarding/validate", authToken, nil, &out); err != nil {
		return "", err
	}
	return out.ValidationToken, nil
}

func (c *Client) do(ctx context.Context, method, path, authToken string, body, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderPlaybookKey, c.playbookKey)
	if authToken != "" {
		req.Header.Set(HeaderAuthToken, authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetwork, method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetwork, "decode response from "+path)
	}
	return nil
}

// statusError translates backend failure statuses into coded errors the
// orchestrator can branch on.
func (c *Client) statusError(resp *http.Response, path string) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Message
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return dErrors.Newf(dErrors.CodeSessionExpired, "%s: %s", path, msg)
	case http.StatusBadRequest:
		return dErrors.Newf(dErrors.CodeBadRequest, "%s: %s", path, msg)
	case http.StatusNotFound:
		return dErrors.Newf(dErrors.CodeNotFound, "%s: %s", path, msg)
	case http.StatusUnprocessableEntity:
		return dErrors.Newf(dErrors.CodeConfigInvalid, "%s: %s", path, msg)
	default:
		return dErrors.Newf(dErrors.CodeUnavailable, "%s: %s", path, msg)
	}
}
