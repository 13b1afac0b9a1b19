// Package session holds the single source of truth for one verification
// session. The Context is an immutable snapshot; all mutation goes through
// Apply, a pure reducer over typed events. Prior snapshots stay valid, which
// keeps replay and debugging cheap.
package session

import (
	"time"

	"veriflow/pkg/domain"
)

// FieldValue is one collected-but-possibly-unsaved vault entry. Decrypted
// marks values that came back from a vault decrypt: those are verified truth
// and must not be clobbered by placeholders.
type FieldValue struct {
	Value     string `json:"value"`
	Decrypted bool   `json:"decrypted"`
}

// DeviceInfo is what the capability probes reported for this device.
type DeviceInfo struct {
	Kind                     domain.DeviceKind `json:"kind"`
	HasPlatformAuthenticator bool              `json:"has_platform_authenticator"`
	HasCamera                bool              `json:"has_camera"`
	UserAgent                string            `json:"user_agent"`
}

// Config is the immutable verification-policy descriptor fetched once at
// bootstrap.
type Config struct {
	PlaybookKey       string `json:"playbook_key"`
	OrgName           string `json:"org_name"`
	IsLive            bool   `json:"is_live"`
	SandboxSecretHash string `json:"-"`
}

// Context is the session snapshot. Treat it as a value: Apply returns a new
// Context and never mutates the receiver's maps or slices.
type Context struct {
	ID              domain.SessionID
	AuthToken       string
	Device          DeviceInfo
	Config          Config
	Requirements    []domain.Requirement
	Fields          map[domain.FieldKey]FieldValue
	ValidationToken string
	SandboxOutcome  domain.SandboxOutcome
}

// New creates the bootstrap-time context for a fresh session.
func New(id domain.SessionID, cfg Config, device DeviceInfo) Context {
	return Context{
		ID:     id,
		Config: cfg,
		Device: device,
		Fields: map[domain.FieldKey]FieldValue{},
	}
}

// KnownFields returns the keys currently present, regardless of decryption
// state. The data-collection engines use this to skip satisfied pages.
func (c Context) KnownFields() map[domain.FieldKey]FieldValue {
	out := make(map[domain.FieldKey]FieldValue, len(c.Fields))
	for k, v := range c.Fields {
		out[k] = v
	}
	return out
}

// Snapshot is the minimal resumable subset persisted to durable storage so a
// reload can resume without re-identification.
type Snapshot struct {
	SessionID    domain.SessionID     `json:"session_id"`
	AuthToken    string               `json:"auth_token"`
	PlaybookKey  string               `json:"playbook_key"`
	IsLive       bool                 `json:"is_live"`
	Requirements []domain.Requirement `json:"requirements"`
	SavedAt      time.Time            `json:"saved_at"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

// Expired reports whether the snapshot is past its retention deadline.
func (s *Snapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SnapshotOf extracts the resumable subset from a context.
func SnapshotOf(c Context, now time.Time, ttl time.Duration) *Snapshot {
	reqs := make([]domain.Requirement, len(c.Requirements))
	copy(reqs, c.Requirements)
	return &Snapshot{
		SessionID:    c.ID,
		AuthToken:    c.AuthToken,
		PlaybookKey:  c.Config.PlaybookKey,
		IsLive:       c.Config.IsLive,
		Requirements: reqs,
		SavedAt:      now,
		ExpiresAt:    now.Add(ttl),
	}
}
