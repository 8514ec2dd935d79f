package checker

import (
	"sync"
	"time"
)

// Session is one in-progress status check. It exclusively owns one
// PageAutomator from creation until release, and its phase is only ever
// mutated by the single goroutine currently driving it (enforced by the
// busy claim).
type Session struct {
	ID        string
	CreatedAt time.Time

	page       PageAutomator
	fields     FormFields
	maxRetries int

	mu         sync.Mutex
	phase      Phase
	retryCount int
	captcha    []byte
	busy       bool

	releaseOnce sync.Once
	releaseErr  error
}

// phaseTransitions lists the legal protocol moves. Submitting back to
// FormFilled is the challenge-retry cycle and is the only loop.
var phaseTransitions = map[Phase][]Phase{
	PhaseCreated:        {PhaseFormFilled, PhaseFailed},
	PhaseFormFilled:     {PhaseAwaitingAnswer, PhaseFailed},
	PhaseAwaitingAnswer: {PhaseSubmitting, PhaseFailed},
	PhaseSubmitting:     {PhaseCompleted, PhaseFormFilled, PhaseFailed},
}

func newSession(id string, page PageAutomator, fields FormFields, maxRetries int) *Session {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		page:       page,
		fields:     fields,
		maxRetries: maxRetries,
		phase:      PhaseCreated,
	}
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RetryCount returns how many challenge-retry cycles the session has taken.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// advance moves the session to the given phase, rejecting moves the protocol
// does not allow. The Submitting to FormFilled move consumes one slot of the
// retry budget.
func (s *Session) advance(to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := false
	for _, next := range phaseTransitions[s.phase] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return NewError(KindFatal, "illegal phase transition %s -> %s", s.phase, to)
	}

	if s.phase == PhaseSubmitting && to == PhaseFormFilled {
		if s.retryCount >= s.maxRetries {
			return NewError(KindFatal, "challenge retry budget (%d) exhausted", s.maxRetries)
		}
		s.retryCount++
	}

	s.phase = to
	return nil
}

// claim marks the session busy so concurrent drivers are rejected instead of
// racing on the page.
func (s *Session) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return &Error{
			Kind:       KindSessionBusy,
			Message:    "session " + s.ID + " is already being operated on",
			Suggestion: "wait for the in-flight operation to finish",
		}
	}
	s.busy = true
	return nil
}

func (s *Session) unclaim() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) setCaptcha(image []byte) {
	s.mu.Lock()
	s.captcha = image
	s.mu.Unlock()
}

// CaptchaImage returns the most recently captured challenge image.
func (s *Session) CaptchaImage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captcha
}

// Expired reports whether the session outlived the TTL, measured from
// creation rather than last activity.
func (s *Session) Expired(ttl time.Duration) bool {
	return time.Since(s.CreatedAt) > ttl
}

// Release closes the session's page. Safe to call any number of times; both
// normal completion and the reaper may race to release, and only the first
// call touches the page.
func (s *Session) Release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.page.Close()
	})
	return s.releaseErr
}

// Info returns the session's diagnostic view.
func (s *Session) Info(ttl time.Duration) SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Phase:     s.Phase().String(),
		Expired:   s.Expired(ttl),
	}
}
