package checker

import "context"

// ErrHumanRequired is returned by solvers that cannot recognize challenge
// images themselves and need a human to supply the answer.
var ErrHumanRequired = &Error{
	Kind:       KindCapabilityUnavailable,
	Message:    "challenge requires a human answer",
	Suggestion: "start a manual check and submit the answer yourself",
}

// Solver maps a challenge image to candidate text.
//
// A solver that returns false from CanAutoSolve is a human-in-the-loop
// sentinel: its Solve always fails with ErrHumanRequired, and the automatic
// flow refuses to start rather than silently degrading to manual mode.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
	CanAutoSolve() bool
}
