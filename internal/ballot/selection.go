package ballot

import (
	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

var (
	ErrSelectionLimit     = apperr.New(apperr.KindValidation, "selection_limit", "selection limit reached for this contest")
	ErrEmptySelection     = apperr.New(apperr.KindValidation, "empty_selection", "select at least one candidate")
	ErrUnknownCandidate   = apperr.New(apperr.KindValidation, "unknown_candidate", "candidate is not on this ballot")
	ErrDuplicateCandidate = apperr.New(apperr.KindValidation, "duplicate_candidate", "candidate selected more than once")
)

// Selection tracks the chosen candidates for one contest. It is not safe for
// concurrent use.
type Selection struct {
	max     int
	allowed map[string]struct{}
	chosen  []string
}

// NewSelection limits choices to the ballot's candidates and max_selections.
func NewSelection(b models.Ballot) *Selection {
	s := NewSelectionLimit(b.MaxSelections)
	s.allowed = make(map[string]struct{}, len(b.Candidates))
	for _, c := range b.Candidates {
		s.allowed[c.ID] = struct{}{}
	}
	return s
}

// NewSelectionLimit accepts any candidate id. A limit below 1 is treated as 1.
func NewSelectionLimit(max int) *Selection {
	if max < 1 {
		max = 1
	}
	return &Selection{max: max}
}

func (s *Selection) Max() int { return s.max }

func (s *Selection) Len() int { return len(s.chosen) }

func (s *Selection) Remaining() int { return s.max - len(s.chosen) }

func (s *Selection) Contains(candidateID string) bool {
	for _, id := range s.chosen {
		if id == candidateID {
			return true
		}
	}
	return false
}

// Select adds a candidate. With a limit of one the previous choice is
// replaced; otherwise going past the limit fails and nothing changes.
func (s *Selection) Select(candidateID string) error {
	if s.allowed != nil {
		if _, ok := s.allowed[candidateID]; !ok {
			return ErrUnknownCandidate
		}
	}
	if s.Contains(candidateID) {
		return nil
	}
	if s.max == 1 {
		s.chosen = []string{candidateID}
		return nil
	}
	if len(s.chosen) >= s.max {
		return ErrSelectionLimit
	}
	s.chosen = append(s.chosen, candidateID)
	return nil
}

func (s *Selection) Deselect(candidateID string) {
	for i, id := range s.chosen {
		if id == candidateID {
			s.chosen = append(s.chosen[:i:i], s.chosen[i+1:]...)
			return
		}
	}
}

// Toggle deselects a chosen candidate or selects an unchosen one.
func (s *Selection) Toggle(candidateID string) error {
	if s.Contains(candidateID) {
		s.Deselect(candidateID)
		return nil
	}
	return s.Select(candidateID)
}

// IDs returns the chosen candidate ids in selection order.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.chosen))
	copy(out, s.chosen)
	return out
}

func (s *Selection) Clear() {
	s.chosen = nil
}

// Validate checks a finished selection set before it is sent.
func Validate(maxSelections int, candidateIDs []string) error {
	if len(candidateIDs) == 0 {
		return ErrEmptySelection
	}
	if maxSelections < 1 {
		maxSelections = 1
	}
	if len(candidateIDs) > maxSelections {
		return ErrSelectionLimit
	}
	seen := make(map[string]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, dup := seen[id]; dup {
			return ErrDuplicateCandidate
		}
		seen[id] = struct{}{}
	}
	return nil
}
