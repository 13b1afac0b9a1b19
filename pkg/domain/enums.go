package domain

// RequirementKind classifies a server-declared obligation that must be
// satisfied before verification can complete.
type RequirementKind string

const (
	RequirementIdentityDocument RequirementKind = "identity_document"
	RequirementLiveness         RequirementKind = "liveness"
	RequirementKYCData          RequirementKind = "kyc_data"
	RequirementKYBData          RequirementKind = "kyb_data"
	RequirementInvestorProfile  RequirementKind = "investor_profile"
	RequirementTransfer         RequirementKind = "transfer"
	RequirementAuthorize        RequirementKind = "authorize"
)

// RequirementStatus is the server's view of one requirement.
type RequirementStatus string

const (
	RequirementOutstanding RequirementStatus = "outstanding"
	RequirementSatisfied   RequirementStatus = "satisfied"
)

// Requirement is one entry of the server-ordered obligation list. The list is
// refetched after every state-mutating event; it is never cached.
type Requirement struct {
	Kind   RequirementKind   `json:"kind"`
	Status RequirementStatus `json:"status"`
}

func (r Requirement) Outstanding() bool { return r.Status == RequirementOutstanding }

// ChallengeKind is the proof-of-possession mechanism used to authenticate an
// identifier.
type ChallengeKind string

const (
	ChallengeSMS       ChallengeKind = "sms"
	ChallengeEmail     ChallengeKind = "email"
	ChallengeBiometric ChallengeKind = "biometric"
)

// D2PStatus mirrors the backend-persisted state of a cross-device handoff.
// The server copy is authoritative; both device sessions only observe it.
type D2PStatus string

const (
	D2PWaiting   D2PStatus = "waiting"
	D2PCompleted D2PStatus = "completed"
	D2PFailed    D2PStatus = "failed"
	D2PCanceled  D2PStatus = "canceled"
	// D2PExpired is synthesized client-side when the poll deadline passes
	// without a terminal status from the backend.
	D2PExpired D2PStatus = "expired"
)

// Terminal reports whether the status ends the handoff. Once observed,
// polling must stop and no further side effects may run.
func (s D2PStatus) Terminal() bool {
	return s == D2PCompleted || s == D2PFailed || s == D2PCanceled || s == D2PExpired
}

// DeviceKind is the coarse device class reported by the capability probe.
type DeviceKind string

const (
	DeviceMobile  DeviceKind = "mobile"
	DeviceDesktop DeviceKind = "desktop"
	DeviceUnknown DeviceKind = "unknown"
)

// DocSide names one side of an identity document during capture.
type DocSide string

const (
	DocSideFront DocSide = "front"
	DocSideBack  DocSide = "back"
)

// DefectCode is a backend-reported image quality problem that forces a
// re-capture of the affected side.
type DefectCode string

const (
	DefectGlare         DefectCode = "glare"
	DefectBlur          DefectCode = "blur"
	DefectWrongDocument DefectCode = "wrong_document_type"
	DefectTooDark       DefectCode = "too_dark"
	DefectFaceNotFound  DefectCode = "face_not_found"
)

// SandboxOutcome deterministically forces a verification result in
// non-production configurations.
type SandboxOutcome string

const (
	SandboxPass         SandboxOutcome = "pass"
	SandboxFail         SandboxOutcome = "fail"
	SandboxManualReview SandboxOutcome = "manual_review"
)

func (o SandboxOutcome) Valid() bool {
	switch o {
	case SandboxPass, SandboxFail, SandboxManualReview:
		return true
	}
	return false
}
