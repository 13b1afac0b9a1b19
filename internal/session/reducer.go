package session

import "veriflow/pkg/domain"

// Event is a typed transition payload applied to the session context. Only
// the orchestrator dispatches events; sub-engines hand them upward.
type Event interface{ isSessionEvent() }

// AuthTokenReplaced swaps the primary auth token. Emitted by the
// identification engine on challenge success and by handoff reconciliation.
type AuthTokenReplaced struct{ Token string }

// RequirementsRefreshed installs a freshly fetched requirement list.
type RequirementsRefreshed struct{ Requirements []domain.Requirement }

// FieldsCollected merges user-entered values into the collected set.
type FieldsCollected struct{ Fields map[domain.FieldKey]string }

// FieldsDecrypted installs vault-decrypted plaintext; these entries become
// authoritative for the merge rule.
type FieldsDecrypted struct{ Fields map[domain.FieldKey]string }

// ValidationIssued records the terminal-success validation token.
type ValidationIssued struct{ Token string }

// SandboxOutcomeSet records a non-production outcome override.
type SandboxOutcomeSet struct{ Outcome domain.SandboxOutcome }

func (AuthTokenReplaced) isSessionEvent()     {}
func (RequirementsRefreshed) isSessionEvent() {}
func (FieldsCollected) isSessionEvent()       {}
func (FieldsDecrypted) isSessionEvent()       {}
func (ValidationIssued) isSessionEvent()      {}
func (SandboxOutcomeSet) isSessionEvent()     {}

// Apply is a pure reducer: it returns a new Context and leaves the input
// untouched. Unknown events return the input unchanged; malformed payloads
// are the caller's responsibility to reject.
func Apply(c Context, ev Event) Context {
	switch e := ev.(type) {
	case AuthTokenReplaced:
		c.AuthToken = e.Token
		return c

	case RequirementsRefreshed:
		reqs := make([]domain.Requirement, len(e.Requirements))
		copy(reqs, e.Requirements)
		c.Requirements = reqs
		return c

	case FieldsCollected:
		fields := cloneFields(c.Fields)
		for k, v := range e.Fields {
			existing, ok := fields[k]
			// Decrypted truth wins over a blank or identical re-submission.
			// A genuinely different value replaces it and drops the
			// decrypted mark until the vault confirms it again.
			if ok && existing.Decrypted && (v == "" || v == existing.Value) {
				continue
			}
			fields[k] = FieldValue{Value: v}
		}
		c.Fields = fields
		return c

	case FieldsDecrypted:
		fields := cloneFields(c.Fields)
		for k, v := range e.Fields {
			fields[k] = FieldValue{Value: v, Decrypted: true}
		}
		c.Fields = fields
		return c

	case ValidationIssued:
		c.ValidationToken = e.Token
		return c

	case SandboxOutcomeSet:
		c.SandboxOutcome = e.Outcome
		return c

	default:
		return c
	}
}

func cloneFields(in map[domain.FieldKey]FieldValue) map[domain.FieldKey]FieldValue {
	out := make(map[domain.FieldKey]FieldValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
