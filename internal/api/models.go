package api

import (
	"time"

	"veriflow/pkg/domain"
)

// VaultScope selects which vault a data submission targets.
type VaultScope string

const (
	ScopeUser     VaultScope = "user"
	ScopeBusiness VaultScope = "business"
)

// IdentifyRequest asks the backend whether an identifier belongs to a known
// user and which challenge kinds can authenticate it.
type IdentifyRequest struct {
	Identifier string `json:"identifier"`
}

type IdentifyResponse struct {
	UserFound      bool                   `json:"user_found"`
	AvailableKinds []domain.ChallengeKind `json:"available_challenge_kinds"`
}

// LoginChallengeRequest issues a challenge against an identifier.
type LoginChallengeRequest struct {
	Identifier string               `json:"identifier"`
	Kind       domain.ChallengeKind `json:"preferred_challenge_kind"`
}

type LoginChallengeResponse struct {
	ChallengeToken   string               `json:"challenge_token"`
	Kind             domain.ChallengeKind `json:"challenge_kind"`
	TimeBeforeRetryS int                  `json:"time_before_retry_s"`
	ExpiresAt        time.Time            `json:"expires_at"`
}

// VerifyRequest proves possession of the challenged identifier.
type VerifyRequest struct {
	ChallengeToken    string `json:"challenge_token"`
	ChallengeResponse string `json:"challenge_response"`
}

type VerifyResponse struct {
	AuthToken string               `json:"auth_token"`
	Kind      domain.ChallengeKind `json:"challenge_kind"`
}

// requirementsResponse is the wire shape of the onboarding status endpoint.
type requirementsResponse struct {
	Requirements []domain.Requirement `json:"requirements"`
}

// D2PGenerateResponse carries the scoped token minted for a handoff session.
type D2PGenerateResponse struct {
	ScopedAuthToken string    `json:"scoped_auth_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type d2pStatusResponse struct {
	Status domain.D2PStatus `json:"status"`
}

type d2pStatusRequest struct {
	Status domain.D2PStatus `json:"status"`
}

type validateResponse struct {
	ValidationToken string `json:"validation_token"`
}

type vaultSubmitRequest struct {
	Fields map[domain.FieldKey]string `json:"fields"`
}

type vaultDecryptRequest struct {
	Fields []domain.FieldKey `json:"fields"`
}

type vaultDecryptResponse struct {
	Fields map[domain.FieldKey]string `json:"fields"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
