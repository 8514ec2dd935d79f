package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

func TestManualRequiresHuman(t *testing.T) {
	var s checker.Solver = Manual{}

	require.False(t, s.CanAutoSolve())

	answer, err := s.Solve(context.Background(), []byte("image"))
	require.Empty(t, answer)
	require.True(t, checker.IsKind(err, checker.KindCapabilityUnavailable))
}

func TestVisionImplementsSolver(t *testing.T) {
	var s checker.Solver = NewVision("test-key", "", WithModel("gpt-4o-mini"))
	require.True(t, s.CanAutoSolve())
}

func TestSanitizeAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "X7K2P", "X7K2P"},
		{"lowercase", "x7k2p", "X7K2P"},
		{"prose around answer", "The characters are: X7K2P.", "THECHARACTERSAREX7K2P"},
		{"whitespace and dashes", " x7-k2 p\n", "X7K2P"},
		{"empty", "", ""},
		{"only punctuation", "???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizeAnswer(tt.in))
		})
	}
}
