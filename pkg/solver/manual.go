// Package solver provides challenge-image solvers for the checker: a
// human-required sentinel and a vision-model solver speaking to an
// OpenAI-compatible endpoint.
package solver

import (
	"context"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// Manual is the human-in-the-loop sentinel: it never solves anything itself,
// so the automatic flow refuses to start and callers go through the manual
// hand-off instead.
type Manual struct{}

// Solve always fails with ErrHumanRequired.
func (Manual) Solve(ctx context.Context, image []byte) (string, error) {
	return "", checker.ErrHumanRequired
}

// CanAutoSolve reports false.
func (Manual) CanAutoSolve() bool { return false }
