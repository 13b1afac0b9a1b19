package collect

import (
	"context"
	"log/slog"

	"veriflow/internal/api"
	"veriflow/internal/session"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

// Service handles the vault side of data collection: submitting confirmed
// payloads and prefilling already-vaulted values via decrypt.
type Service struct {
	backend api.Backend
	logger  *slog.Logger
}

func New(backend api.Backend, logger *slog.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

// Submit sends a confirmed payload to the vault and returns the session
// event that merges it into context.
func (s *Service) Submit(ctx context.Context, authToken string, st State) (session.FieldsCollected, error) {
	payload, ok := st.Payload()
	if !ok {
		return session.FieldsCollected{}, dErrors.New(dErrors.CodeInvalidInput, "sequence not yet confirmed")
	}

	scope := api.ScopeUser
	if st.Kind == domain.RequirementKYBData {
		scope = api.ScopeBusiness
	}
	if err := s.backend.SubmitVault(ctx, authToken, scope, payload); err != nil {
		return session.FieldsCollected{}, err
	}

	s.logger.InfoContext(ctx, "vault data submitted",
		"kind", st.Kind,
		"field_count", len(payload),
	)
	return session.FieldsCollected{Fields: payload}, nil
}

// Prefill decrypts any already-vaulted values for the sequence's fields so a
// returning user sees them instead of re-entering. The result is decrypted
// truth: the session merge rule protects it from placeholder overwrites.
func (s *Service) Prefill(ctx context.Context, authToken string, kind domain.RequirementKind) (session.FieldsDecrypted, error) {
	var keys []domain.FieldKey
	for _, p := range PagesFor(kind) {
		keys = append(keys, p.Fields...)
	}

	scope := api.ScopeUser
	if kind == domain.RequirementKYBData {
		scope = api.ScopeBusiness
	}
	fields, err := s.backend.DecryptVault(ctx, authToken, scope, keys)
	if err != nil {
		return session.FieldsDecrypted{}, err
	}

	// drop blanks: an empty decrypt result is "not vaulted", not a value
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return session.FieldsDecrypted{Fields: fields}, nil
}
