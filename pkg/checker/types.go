package checker

import (
	"strings"
	"time"
)

// Phase is a session's position in the check protocol.
type Phase int

const (
	// PhaseCreated is the initial phase: a page has been allocated but the
	// form has not been reached yet.
	PhaseCreated Phase = iota

	// PhaseFormFilled means navigation succeeded and the identity fields
	// are filled in.
	PhaseFormFilled

	// PhaseAwaitingAnswer means a challenge image has been captured and the
	// session is parked until an answer arrives.
	PhaseAwaitingAnswer

	// PhaseSubmitting means an answer has been accepted and the form is
	// being submitted.
	PhaseSubmitting

	// PhaseCompleted is terminal: the site returned a recognized result.
	PhaseCompleted

	// PhaseFailed is terminal: the check gave up.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseFormFilled:
		return "form_filled"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the session lifecycle.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// FormFields is the identity data filled into the status-check form.
type FormFields struct {
	Location       string
	ApplicationID  string
	PassportNumber string
	Surname        string
}

// Validate checks that all identity fields are present.
func (f FormFields) Validate() error {
	var missing []string
	if strings.TrimSpace(f.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(f.ApplicationID) == "" {
		missing = append(missing, "application_id")
	}
	if strings.TrimSpace(f.PassportNumber) == "" {
		missing = append(missing, "passport_number")
	}
	if strings.TrimSpace(f.Surname) == "" {
		missing = append(missing, "surname")
	}
	if len(missing) > 0 {
		return &Error{
			Kind:       KindFatal,
			Message:    "missing required fields: " + strings.Join(missing, ", "),
			Suggestion: "provide location, application_id, passport_number and surname",
		}
	}
	return nil
}

// CheckRequest is the caller-supplied input for one status check.
type CheckRequest struct {
	Fields FormFields

	// Answer optionally pre-supplies the challenge answer; when set, the
	// combined check endpoint submits it without parking the session.
	Answer string

	// MaxRetries bounds challenge re-submission in the automatic flow.
	// Zero means DefaultMaxRetries.
	MaxRetries int
}

// Validate checks the request's identity fields.
func (r CheckRequest) Validate() error {
	return r.Fields.Validate()
}

// CaseStatus is the structured outcome extracted from the result page.
type CaseStatus struct {
	Status          string `json:"status"`
	CaseNumber      string `json:"case_number,omitempty"`
	CaseCreated     string `json:"case_created,omitempty"`
	CaseLastUpdated string `json:"case_last_updated,omitempty"`
	Description     string `json:"description,omitempty"`
}

// StatusResult is the terminal outcome of a check. Success and Err are
// mutually exclusive.
type StatusResult struct {
	Success bool
	Status  *CaseStatus
	Err     *Error

	// Screenshot is evidence of the result page, when captured.
	Screenshot []byte

	// CaptchaImage is the last challenge image, kept on exhausted retries
	// so callers can fall back to the manual flow.
	CaptchaImage []byte
}

// ManualCheck is the hand-off returned by the manual flow: the parked
// session's id plus the challenge image for the caller to solve.
type ManualCheck struct {
	SessionID    string
	CaptchaImage []byte
}

// SessionInfo is a diagnostic view of one registry entry.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Phase     string    `json:"phase"`
	Expired   bool      `json:"is_expired"`
}

// Defaults shared by the registry, reaper and orchestrator.
const (
	// DefaultMaxRetries bounds challenge re-submissions in the auto flow.
	DefaultMaxRetries = 3

	// DefaultTransientRetries bounds same-step retries of transient failures.
	DefaultTransientRetries = 1

	// DefaultSessionTTL is how long a session may live, measured from creation.
	DefaultSessionTTL = 5 * time.Minute

	// DefaultSweepInterval is how often the reaper scans the registry.
	DefaultSweepInterval = time.Minute

	// DefaultMaxSessions caps concurrent live sessions.
	DefaultMaxSessions = 5
)
