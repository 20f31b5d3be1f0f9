package ballot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/models"
)

func ballotWith(max int, ids ...string) models.Ballot {
	b := models.Ballot{ContestID: "contest-1", ElectionID: "election-1", MaxSelections: max}
	for _, id := range ids {
		b.Candidates = append(b.Candidates, models.Candidate{ID: id, Name: "Candidate " + id})
	}
	return b
}

func TestSelection_SingleChoiceReplaces(t *testing.T) {
	s := NewSelection(ballotWith(1, "A", "B"))

	require.NoError(t, s.Select("A"))
	require.NoError(t, s.Select("B"))
	require.Equal(t, []string{"B"}, s.IDs())
}

func TestSelection_LimitEnforced(t *testing.T) {
	s := NewSelection(ballotWith(2, "A", "B", "C"))

	require.NoError(t, s.Select("A"))
	require.NoError(t, s.Select("B"))
	require.ErrorIs(t, s.Select("C"), ErrSelectionLimit)
	require.Equal(t, []string{"A", "B"}, s.IDs())
	require.Equal(t, 0, s.Remaining())

	// Re-selecting an existing choice is a no-op, not a limit error.
	require.NoError(t, s.Select("A"))
	require.Equal(t, 2, s.Len())
}

func TestSelection_ToggleAndUnknown(t *testing.T) {
	s := NewSelection(ballotWith(2, "A", "B", "C"))

	require.NoError(t, s.Toggle("A"))
	require.NoError(t, s.Toggle("B"))
	require.NoError(t, s.Toggle("A"))
	require.Equal(t, []string{"B"}, s.IDs())
	require.NoError(t, s.Toggle("C"))
	require.Equal(t, []string{"B", "C"}, s.IDs())

	require.ErrorIs(t, s.Select("Z"), ErrUnknownCandidate)

	ids := s.IDs()
	ids[0] = "mutated"
	require.Equal(t, []string{"B", "C"}, s.IDs())

	s.Clear()
	require.Zero(t, s.Len())
}

func TestSelection_NeverExceedsLimit(t *testing.T) {
	candidates := []string{"A", "B", "C", "D", "E"}
	for max := 1; max <= len(candidates); max++ {
		s := NewSelection(ballotWith(max, candidates...))
		for _, id := range candidates {
			_ = s.Select(id)
			require.LessOrEqual(t, s.Len(), max)
		}
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(2, []string{"A", "B"}))
	require.ErrorIs(t, Validate(2, nil), ErrEmptySelection)
	require.ErrorIs(t, Validate(2, []string{"A", "B", "C"}), ErrSelectionLimit)
	require.ErrorIs(t, Validate(3, []string{"A", "A"}), ErrDuplicateCandidate)
	require.ErrorIs(t, Validate(0, []string{"A", "B"}), ErrSelectionLimit)
}
