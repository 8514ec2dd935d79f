package checker

import "context"

// SubmitOutcome is the structured result of submitting a challenge answer.
// The adapter inspects the page and reports what it found; the orchestrator
// never string-matches scraped error text to drive control flow.
//
// Exactly one of Status, CaptchaRejected or SiteError is meaningful:
// Status when the site returned a recognized result payload,
// CaptchaRejected when the site rejected the challenge answer, and
// SiteError for any other site-side validation message.
type SubmitOutcome struct {
	Status          *CaseStatus
	CaptchaRejected bool
	SiteError       string

	// Screenshot of the result area, when the adapter could capture one.
	Screenshot []byte
}

// PageAutomator is one driven browser page working through the status-check
// form. Implementations are failure-prone and slow (seconds per call), are
// used by a single session at a time, and must make Close safe to call more
// than once.
//
// Errors should be classified (*Error) where the implementation can tell:
// KindTransient for network/timeout failures, KindFormInteractionFailed when
// an expected element is missing.
type PageAutomator interface {
	// NavigateToForm loads the status-check form.
	NavigateToForm(ctx context.Context) error

	// FillForm fills the identity fields.
	FillForm(ctx context.Context, fields FormFields) error

	// CaptchaImage captures the current challenge image.
	CaptchaImage(ctx context.Context) ([]byte, error)

	// SubmitAnswer fills the challenge answer, submits the form and reports
	// the structured outcome.
	SubmitAnswer(ctx context.Context, answer string) (*SubmitOutcome, error)

	// Reload refreshes the page so a fresh challenge is issued. The form
	// must be re-filled afterwards.
	Reload(ctx context.Context) error

	// Close releases the underlying browser resources. Idempotent.
	Close() error
}

// AutomatorFactory allocates a fresh page for each new session.
type AutomatorFactory interface {
	NewPage(ctx context.Context) (PageAutomator, error)
}

// AutomatorFactoryFunc adapts a function to the AutomatorFactory interface.
type AutomatorFactoryFunc func(ctx context.Context) (PageAutomator, error)

// NewPage calls f.
func (f AutomatorFactoryFunc) NewPage(ctx context.Context) (PageAutomator, error) {
	return f(ctx)
}
