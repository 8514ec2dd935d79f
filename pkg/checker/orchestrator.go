package checker

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator drives sessions through the check state machine. The manual
// and automatic flows share every step; they differ only in who supplies the
// challenge answer and who drives the retry cycle.
type Orchestrator struct {
	registry         *Registry
	factory          AutomatorFactory
	solver           Solver
	logger           *zap.Logger
	transientRetries int
}

// NewOrchestrator creates an orchestrator. A nil logger means no logging;
// a nil solver means only the manual flow is available.
func NewOrchestrator(registry *Registry, factory AutomatorFactory, solver Solver, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:         registry,
		factory:          factory,
		solver:           solver,
		logger:           logger,
		transientRetries: DefaultTransientRetries,
	}
}

// CheckManual drives a new session to the point a challenge image is
// available and parks it. The caller solves the image and finishes the check
// with Resume.
func (o *Orchestrator) CheckManual(ctx context.Context, req CheckRequest) (*ManualCheck, error) {
	session, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	image := session.CaptchaImage()
	session.unclaim()

	o.logger.Info("session parked awaiting answer",
		zap.String("session_id", session.ID))
	return &ManualCheck{SessionID: session.ID, CaptchaImage: image}, nil
}

// Resume submits the caller's answer for a parked session and finishes the
// check. Single-shot: the session is removed and released no matter the
// outcome, so a second Resume on the same id fails NotFound.
func (o *Orchestrator) Resume(ctx context.Context, sessionID, answer string) (*StatusResult, error) {
	session, err := o.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.claim(); err != nil {
		return nil, err
	}

	if session.Expired(o.registry.TTL()) {
		o.teardown(session)
		return nil, &Error{
			Kind:       KindExpired,
			Message:    "session " + sessionID + " has expired",
			Suggestion: "start a new check",
		}
	}

	defer o.teardown(session)

	outcome, err := o.submit(ctx, session, answer)
	if err != nil {
		_ = session.advance(PhaseFailed)
		return failure(err), nil
	}

	switch {
	case outcome.Status != nil:
		_ = session.advance(PhaseCompleted)
		return &StatusResult{
			Success:    true,
			Status:     outcome.Status,
			Screenshot: outcome.Screenshot,
		}, nil

	case outcome.CaptchaRejected:
		_ = session.advance(PhaseFailed)
		return &StatusResult{
			Err: &Error{
				Kind:       KindCaptchaRejected,
				Message:    "the site rejected the challenge answer",
				Suggestion: "start a new check and try a fresh image",
			},
			CaptchaImage: session.CaptchaImage(),
			Screenshot:   outcome.Screenshot,
		}, nil

	default:
		_ = session.advance(PhaseFailed)
		return failure(siteError(outcome)), nil
	}
}

// CheckAuto drives a new session fully, calling the solver at each
// awaiting-answer point and looping through the retry cycle internally. The
// session is released before returning.
//
// Requires an auto-capable solver; with only a human-required solver
// configured it fails immediately, before any session or page is allocated.
func (o *Orchestrator) CheckAuto(ctx context.Context, req CheckRequest) (*StatusResult, error) {
	if o.solver == nil || !o.solver.CanAutoSolve() {
		return nil, &Error{
			Kind:       KindCapabilityUnavailable,
			Message:    "automatic challenge solving is not available",
			Suggestion: "use the manual flow, or configure an auto-capable solver",
		}
	}

	session, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	defer o.teardown(session)

	attempts := 0
	for {
		answer, err := o.solver.Solve(ctx, session.CaptchaImage())
		if err != nil {
			_ = session.advance(PhaseFailed)
			return failure(WrapError(KindFatal, err, "solver failed")), nil
		}
		o.logger.Info("submitting solver answer",
			zap.String("session_id", session.ID),
			zap.Int("attempt", attempts+1))

		attempts++
		outcome, err := o.submit(ctx, session, answer)
		if err != nil {
			_ = session.advance(PhaseFailed)
			return failure(err), nil
		}

		switch {
		case outcome.Status != nil:
			_ = session.advance(PhaseCompleted)
			return &StatusResult{
				Success:    true,
				Status:     outcome.Status,
				Screenshot: outcome.Screenshot,
			}, nil

		case outcome.CaptchaRejected:
			if attempts >= session.maxRetries {
				_ = session.advance(PhaseFailed)
				return &StatusResult{
					Err: &Error{
						Kind:       KindFatal,
						Message:    "challenge rejected on every attempt, retry budget exhausted",
						Suggestion: "fall back to the manual flow using the returned image",
					},
					CaptchaImage: session.CaptchaImage(),
					Screenshot:   outcome.Screenshot,
				}, nil
			}
			if err := o.refreshChallenge(ctx, session); err != nil {
				_ = session.advance(PhaseFailed)
				return failure(err), nil
			}

		default:
			_ = session.advance(PhaseFailed)
			return failure(siteError(outcome)), nil
		}
	}
}

// Cancel removes a parked session and releases its page immediately instead
// of waiting for the reaper.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) error {
	session, err := o.registry.Remove(sessionID)
	if err != nil {
		return err
	}
	_ = session.advance(PhaseFailed)
	if err := session.Release(); err != nil {
		o.logger.Warn("failed to release cancelled session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	o.logger.Info("session cancelled", zap.String("session_id", sessionID))
	return nil
}

// ListSessions returns diagnostic info for every live session.
func (o *Orchestrator) ListSessions() []SessionInfo {
	return o.registry.ListActive()
}

// prepare allocates a page, registers a session and drives it to
// AwaitingAnswer with the challenge image cached. The returned session is
// claimed by the caller. On any failure the session is torn down and the
// page released before returning.
func (o *Orchestrator) prepare(ctx context.Context, req CheckRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	page, err := o.factory.NewPage(ctx)
	if err != nil {
		return nil, WrapError(KindFatal, err, "failed to allocate browser page")
	}

	session, err := o.registry.Create(uuid.NewString(), page, req.Fields, req.MaxRetries)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	// Fresh session, claim cannot fail.
	_ = session.claim()

	if err := o.fillAndCapture(ctx, session, false); err != nil {
		o.teardown(session)
		return nil, err
	}
	return session, nil
}

// fillAndCapture performs navigate-or-reload, fill, and challenge capture,
// advancing Created/FormFilled phases as steps land. reload selects the
// retry-cycle variant, which refreshes the page instead of navigating.
func (o *Orchestrator) fillAndCapture(ctx context.Context, session *Session, reload bool) error {
	load := session.page.NavigateToForm
	op := "navigate"
	if reload {
		load = session.page.Reload
		op = "reload"
	}
	if err := o.withTransientRetry(ctx, op, load); err != nil {
		return err
	}

	if err := o.withTransientRetry(ctx, "fill", func(ctx context.Context) error {
		return session.page.FillForm(ctx, session.fields)
	}); err != nil {
		return err
	}
	if !reload {
		if err := session.advance(PhaseFormFilled); err != nil {
			return err
		}
	}

	var image []byte
	if err := o.withTransientRetry(ctx, "captcha", func(ctx context.Context) error {
		var err error
		image, err = session.page.CaptchaImage(ctx)
		return err
	}); err != nil {
		return err
	}
	session.setCaptcha(image)
	return session.advance(PhaseAwaitingAnswer)
}

// submit advances to Submitting and sends the answer, retrying the same step
// on transient failures.
func (o *Orchestrator) submit(ctx context.Context, session *Session, answer string) (*SubmitOutcome, error) {
	if err := session.advance(PhaseSubmitting); err != nil {
		return nil, err
	}

	var outcome *SubmitOutcome
	err := o.withTransientRetry(ctx, "submit", func(ctx context.Context) error {
		var err error
		outcome, err = session.page.SubmitAnswer(ctx, answer)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// refreshChallenge is the Submitting -> FormFilled retry cycle: consume one
// retry slot, refresh the page, re-fill the form and capture a new image.
func (o *Orchestrator) refreshChallenge(ctx context.Context, session *Session) error {
	if err := session.advance(PhaseFormFilled); err != nil {
		return err
	}
	o.logger.Info("challenge rejected, refreshing",
		zap.String("session_id", session.ID),
		zap.Int("retry", session.RetryCount()))
	return o.fillAndCapture(ctx, session, true)
}

// withTransientRetry runs fn, retrying transient failures up to the budget.
// A transient failure that outlives the budget becomes fatal: retrying
// indefinitely against an unresponsive site would blow the caller's deadline.
func (o *Orchestrator) withTransientRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = ctx.Err(); err != nil {
			return WrapError(KindOf(err), err, "%s aborted", op)
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if KindOf(err) != KindTransient || attempt >= o.transientRetries {
			break
		}
		o.logger.Warn("transient failure, retrying step",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if KindOf(err) == KindTransient {
		return WrapError(KindFatal, err, "%s still failing after transient retries", op)
	}
	return AsError(err)
}

// teardown removes the session from the registry (if still present) and
// releases its page, outside any registry lock.
func (o *Orchestrator) teardown(session *Session) {
	_, _ = o.registry.Remove(session.ID)
	if err := session.Release(); err != nil {
		o.logger.Warn("failed to release session",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

func failure(err error) *StatusResult {
	return &StatusResult{Err: AsError(err)}
}

func siteError(outcome *SubmitOutcome) *Error {
	msg := outcome.SiteError
	if msg == "" {
		msg = "could not find status information on the page"
	}
	return &Error{
		Kind:       KindFatal,
		Message:    msg,
		Suggestion: "verify the identity fields and try again",
	}
}
