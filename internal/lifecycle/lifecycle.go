// Package lifecycle holds the election state machine: draft, then published,
// then closed, never backwards and never skipping a state.
package lifecycle

import (
	"time"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

var (
	ErrInvalidTransition = apperr.New(apperr.KindConflict, "invalid_transition", "election status cannot change that way")
	ErrNotDraft          = apperr.New(apperr.KindConflict, "not_draft", "election not in draft state")
	ErrNotPublished      = apperr.New(apperr.KindConflict, "not_published", "election not in published state")
	ErrNotEditable       = apperr.New(apperr.KindAuthorization, "not_editable", "only draft elections can be modified")
	ErrDefaultContest    = apperr.New(apperr.KindValidation, "default_contest", "default contest cannot be deleted")
	ErrResultsNotReady   = apperr.New(apperr.KindAuthorization, "results_unavailable", "results are available only after the election is closed")
	ErrNotOpen           = apperr.New(apperr.KindValidation, "not_open", "election is not open for voting")
	ErrInvalidWindow     = apperr.New(apperr.KindValidation, "invalid_window", "opens_at must be earlier than closes_at")
	ErrUnknownStatus     = apperr.New(apperr.KindValidation, "unknown_status", "unknown election status")
	ErrNotOnRoll         = apperr.New(apperr.KindAuthorization, "not_on_roll", "voter is not on this contest's voter roll")
	ErrAlreadyVoted      = apperr.New(apperr.KindConflict, "already_voted", "voter has already submitted a ballot for this contest")
)

func rank(status models.ElectionStatus) int {
	switch status {
	case models.ElectionStatusDraft:
		return 0
	case models.ElectionStatusPublished:
		return 1
	case models.ElectionStatusClosed:
		return 2
	default:
		return -1
	}
}

// ValidateTransition allows exactly draft->published and published->closed.
func ValidateTransition(from, to models.ElectionStatus) error {
	rf, rt := rank(from), rank(to)
	if rf < 0 || rt < 0 {
		return ErrUnknownStatus
	}
	if rt == rf+1 {
		return nil
	}
	switch to {
	case models.ElectionStatusPublished:
		return ErrNotDraft
	case models.ElectionStatusClosed:
		return ErrNotPublished
	default:
		return ErrInvalidTransition
	}
}

// Publish returns a copy of e moved to published.
func Publish(e models.Election) (models.Election, error) {
	if err := ValidateTransition(e.Status, models.ElectionStatusPublished); err != nil {
		return e, err
	}
	e.Status = models.ElectionStatusPublished
	return e, nil
}

// Close returns a copy of e moved to closed.
func Close(e models.Election) (models.Election, error) {
	if err := ValidateTransition(e.Status, models.ElectionStatusClosed); err != nil {
		return e, err
	}
	e.Status = models.ElectionStatusClosed
	return e, nil
}

// EnsureEditable gates every contest, candidate and voter-roll mutation as
// well as election edits.
func EnsureEditable(status models.ElectionStatus) error {
	if status != models.ElectionStatusDraft {
		return ErrNotEditable
	}
	return nil
}

// EnsureContestDeletable applies the draft gate first, then refuses the
// default contest in any state.
func EnsureContestDeletable(status models.ElectionStatus, c models.Contest) error {
	if err := EnsureEditable(status); err != nil {
		return err
	}
	if c.IsDefault {
		return ErrDefaultContest
	}
	return nil
}

func EnsureResultsReadable(status models.ElectionStatus) error {
	if status != models.ElectionStatusClosed {
		return ErrResultsNotReady
	}
	return nil
}

func ValidateWindow(opensAt, closesAt time.Time) error {
	if !opensAt.Before(closesAt) {
		return ErrInvalidWindow
	}
	return nil
}

// InWindow reports opens_at <= now <= closes_at.
func InWindow(e models.Election, now time.Time) bool {
	return !now.Before(e.OpensAt) && !now.After(e.ClosesAt)
}

// Eligibility is what is known about one voter and one contest.
type Eligibility struct {
	OnRoll   bool
	HasVoted bool
}

// CanVoteNow is the derived voting predicate for one voter and contest.
func CanVoteNow(e models.Election, who Eligibility, now time.Time) bool {
	return e.Status == models.ElectionStatusPublished &&
		InWindow(e, now) &&
		who.OnRoll &&
		!who.HasVoted
}

// VoteBlocker explains why CanVoteNow is false, or returns nil.
func VoteBlocker(e models.Election, who Eligibility, now time.Time) error {
	switch {
	case e.Status != models.ElectionStatusPublished, !InWindow(e, now):
		return ErrNotOpen
	case !who.OnRoll:
		return ErrNotOnRoll
	case who.HasVoted:
		return ErrAlreadyVoted
	}
	return nil
}

// Due reports whether a published election has passed closes_at.
func Due(e models.Election, now time.Time) bool {
	return e.Status == models.ElectionStatusPublished && now.After(e.ClosesAt)
}
