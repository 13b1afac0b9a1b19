// Package collect walks a linear page sequence to gather vaulted data for one
// domain (KYC, KYB or investor profile). The sequence is fixed at entry from
// which fields are already known versus missing: a satisfied field's page is
// skipped from the visible sequence but the value stays in context. Any
// submitted page can be re-entered for edit without resetting its siblings.
package collect

import (
	"veriflow/internal/session"
	"veriflow/pkg/domain"
)

// PageID names one screen of a collection sequence.
type PageID string

const (
	PageName            PageID = "name"
	PageDOB             PageID = "dob"
	PageAddress         PageID = "address"
	PageSSN             PageID = "ssn"
	PageBusinessName    PageID = "business_name"
	PageBusinessTIN     PageID = "business_tin"
	PageBusinessAddress PageID = "business_address"
	PageOwners          PageID = "beneficial_owners"
	PageOccupation      PageID = "occupation"
	PageIncome          PageID = "income"
	PageConfirm         PageID = "confirm"
)

// Page groups the fields one screen collects.
type Page struct {
	ID     PageID
	Fields []domain.FieldKey
}

var kycPages = []Page{
	{ID: PageName, Fields: []domain.FieldKey{domain.FieldFirstName, domain.FieldLastName}},
	{ID: PageDOB, Fields: []domain.FieldKey{domain.FieldDOB}},
	{ID: PageAddress, Fields: []domain.FieldKey{
		domain.FieldAddressLine1, domain.FieldAddressLine2, domain.FieldCity,
		domain.FieldState, domain.FieldZip, domain.FieldCountry,
	}},
	{ID: PageSSN, Fields: []domain.FieldKey{domain.FieldSSN9}},
}

var kybPages = []Page{
	{ID: PageBusinessName, Fields: []domain.FieldKey{domain.FieldBusinessName}},
	{ID: PageBusinessTIN, Fields: []domain.FieldKey{domain.FieldBusinessTIN}},
	{ID: PageBusinessAddress, Fields: []domain.FieldKey{
		domain.FieldBusinessAddress, domain.FieldBusinessCity, domain.FieldBusinessState,
		domain.FieldBusinessZip, domain.FieldBusinessCountry,
	}},
	{ID: PageOwners, Fields: []domain.FieldKey{domain.FieldBeneficialOwners}},
}

var investorPages = []Page{
	{ID: PageOccupation, Fields: []domain.FieldKey{domain.FieldOccupation}},
	{ID: PageIncome, Fields: []domain.FieldKey{
		domain.FieldAnnualIncome, domain.FieldNetWorth, domain.FieldFundingSources,
	}},
}

// PagesFor returns the canonical sequence for a requirement kind.
func PagesFor(kind domain.RequirementKind) []Page {
	switch kind {
	case domain.RequirementKYBData:
		return kybPages
	case domain.RequirementInvestorProfile:
		return investorPages
	default:
		return kycPages
	}
}

// Phase is the collection machine's state tag.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseConfirm    Phase = "confirm"
	PhaseSubmitted  Phase = "submitted"
)

// State is the collection machine's full state.
type State struct {
	Kind      domain.RequirementKind
	Pages     []Page
	Index     int
	Collected map[domain.FieldKey]string
	Phase     Phase
	// Editing marks a jump back from the summary; the next page submission
	// returns straight to confirm instead of re-walking the tail.
	Editing bool
}

// NewState plans the visible sequence at entry. Pages whose every required
// field is already known are skipped; optional fields (line 2) don't force a
// page in.
func NewState(kind domain.RequirementKind, known map[domain.FieldKey]session.FieldValue) State {
	var pages []Page
	for _, p := range PagesFor(kind) {
		if pageMissing(p, known) {
			pages = append(pages, p)
		}
	}

	st := State{
		Kind:      kind,
		Pages:     pages,
		Collected: map[domain.FieldKey]string{},
		Phase:     PhaseCollecting,
	}
	if len(pages) == 0 {
		st.Phase = PhaseConfirm
	}
	return st
}

var optionalFields = map[domain.FieldKey]bool{
	domain.FieldAddressLine2: true,
}

func pageMissing(p Page, known map[domain.FieldKey]session.FieldValue) bool {
	for _, f := range p.Fields {
		if optionalFields[f] {
			continue
		}
		if v, ok := known[f]; !ok || v.Value == "" {
			return true
		}
	}
	return false
}

// Current returns the page on display, or false past the end of the sequence.
func (s State) Current() (Page, bool) {
	if s.Phase != PhaseCollecting || s.Index >= len(s.Pages) {
		return Page{}, false
	}
	return s.Pages[s.Index], true
}

// Event is one collection transition payload.
type Event interface{ isCollectEvent() }

// PageSubmitted carries one page's entered values.
type PageSubmitted struct{ Fields map[domain.FieldKey]string }

// EditPage jumps back to a previously submitted page from the summary.
type EditPage struct{ ID PageID }

// ReturnToSummary aborts an edit and goes back to confirmation.
type ReturnToSummary struct{}

// Confirmed finishes the sequence; the machine emits its full payload once.
type Confirmed struct{}

func (PageSubmitted) isCollectEvent()   {}
func (EditPage) isCollectEvent()        {}
func (ReturnToSummary) isCollectEvent() {}
func (Confirmed) isCollectEvent()       {}

// Reduce is the pure transition function.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case PageSubmitted:
		if s.Phase != PhaseCollecting {
			return s
		}
		collected := cloneCollected(s.Collected)
		for k, v := range e.Fields {
			collected[k] = v
		}
		s.Collected = collected
		if s.Editing {
			s.Editing = false
			s.Index = len(s.Pages)
			s.Phase = PhaseConfirm
			return s
		}
		s.Index++
		if s.Index >= len(s.Pages) {
			s.Phase = PhaseConfirm
		}
		return s

	case EditPage:
		if s.Phase != PhaseConfirm {
			return s
		}
		for i, p := range s.Pages {
			if p.ID == e.ID {
				s.Index = i
				s.Phase = PhaseCollecting
				s.Editing = true
				return s
			}
		}
		return s

	case ReturnToSummary:
		if s.Phase != PhaseCollecting {
			return s
		}
		s.Index = len(s.Pages)
		s.Phase = PhaseConfirm
		s.Editing = false
		return s

	case Confirmed:
		if s.Phase != PhaseConfirm {
			return s
		}
		s.Phase = PhaseSubmitted
		return s

	default:
		return s
	}
}

// Payload returns the collected fields once the machine is submitted.
func (s State) Payload() (map[domain.FieldKey]string, bool) {
	if s.Phase != PhaseSubmitted {
		return nil, false
	}
	return cloneCollected(s.Collected), true
}

func cloneCollected(in map[domain.FieldKey]string) map[domain.FieldKey]string {
	out := make(map[domain.FieldKey]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
