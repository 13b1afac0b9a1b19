package http

import (
	"time"

	"veriflow/internal/orchestrator"
	"veriflow/internal/requirement"
	"veriflow/pkg/domain"
)

type deviceRequest struct {
	HasPlatformAuthenticator bool `json:"has_platform_authenticator"`
	HasCamera                bool `json:"has_camera"`
}

type bootstrapRequest struct {
	PlaybookKey string        `json:"playbook_key"`
	SessionID   string        `json:"session_id,omitempty"`
	Device      deviceRequest `json:"device"`
}

type bootstrapResponse struct {
	SessionID    string        `json:"session_id"`
	SessionToken string        `json:"session_token"`
	State        stateResponse `json:"state"`
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

type challengeRequest struct {
	Kind domain.ChallengeKind `json:"kind"`
}

type verifyRequest struct {
	Response string `json:"response"`
}

type pageRequest struct {
	Fields map[domain.FieldKey]string `json:"fields"`
}

type editRequest struct {
	Page string `json:"page"`
}

type documentRequest struct {
	Country string `json:"country"`
	DocType string `json:"doc_type"`
}

type captureResultRequest struct {
	Accepted bool                `json:"accepted"`
	Defects  []domain.DefectCode `json:"defects,omitempty"`
}

type processingRequest struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type claimRequest struct {
	Payload string `json:"payload"`
}

type claimResponse struct {
	SessionToken string        `json:"session_token"`
	State        stateResponse `json:"state"`
}

type secondaryResultRequest struct {
	OK bool `json:"ok"`
}

type sandboxRequest struct {
	Outcome domain.SandboxOutcome `json:"outcome"`
	Secret  string                `json:"secret"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type identifyView struct {
	Phase          string                 `json:"phase"`
	AvailableKinds []domain.ChallengeKind `json:"available_kinds,omitempty"`
	CanResend      bool                   `json:"can_resend"`
}

type collectView struct {
	Phase string                     `json:"phase"`
	Page  string                     `json:"page,omitempty"`
	Need  []domain.FieldKey          `json:"fields,omitempty"`
	Known map[domain.FieldKey]string `json:"collected,omitempty"`
}

type captureView struct {
	Phase   string              `json:"phase"`
	Side    string              `json:"side,omitempty"`
	Defects []domain.DefectCode `json:"defects,omitempty"`
}

type handoffView struct {
	Phase      string `json:"phase"`
	QRPayload  string `json:"qr_payload,omitempty"`
	LastStatus string `json:"last_status,omitempty"`
	Secondary  string `json:"secondary_phase,omitempty"`
}

// stateResponse is the UI-facing rendering of one orchestrator snapshot.
type stateResponse struct {
	Phase           string        `json:"phase"`
	Terminal        bool          `json:"terminal"`
	Active          string        `json:"active_requirement,omitempty"`
	Outstanding     int           `json:"outstanding_requirements"`
	OrgName         string        `json:"org_name,omitempty"`
	Identify        *identifyView `json:"identify,omitempty"`
	Collect         *collectView  `json:"collect,omitempty"`
	Capture         *captureView  `json:"capture,omitempty"`
	Handoff         *handoffView  `json:"handoff,omitempty"`
	ValidationToken string        `json:"validation_token,omitempty"`
	SandboxOutcome  string        `json:"sandbox_outcome,omitempty"`
}

func renderState(st orchestrator.State) stateResponse {
	out := stateResponse{
		Phase:           string(st.Phase),
		Terminal:        st.Phase.Terminal(),
		Active:          string(st.Active),
		Outstanding:     requirement.Outstanding(st.Session.Requirements),
		OrgName:         st.Session.Config.OrgName,
		ValidationToken: st.Session.ValidationToken,
		SandboxOutcome:  string(st.Session.SandboxOutcome),
	}

	if st.Identify != nil {
		view := &identifyView{
			Phase:          string(st.Identify.Phase),
			AvailableKinds: st.Identify.AvailableKinds,
		}
		if st.Identify.Challenge != nil {
			view.CanResend = st.Identify.Challenge.CanResend(time.Now())
		}
		out.Identify = view
	}
	if st.Collect != nil {
		view := &collectView{Phase: string(st.Collect.Phase), Known: st.Collect.Collected}
		if page, ok := st.Collect.Current(); ok {
			view.Page = string(page.ID)
			view.Need = page.Fields
		}
		out.Collect = view
	}
	if st.Capture != nil {
		view := &captureView{Phase: string(st.Capture.Phase), Defects: st.Capture.Defects}
		if side, ok := st.Capture.CurrentSide(); ok {
			view.Side = string(side)
		}
		out.Capture = view
	}
	if st.Handoff != nil {
		view := &handoffView{
			Phase:      string(st.Handoff.Phase),
			QRPayload:  st.QRPayload,
			LastStatus: string(st.Handoff.LastStatus),
		}
		if st.Secondary != nil {
			view.Secondary = string(st.Secondary.Phase)
		}
		out.Handoff = view
	}
	return out
}
