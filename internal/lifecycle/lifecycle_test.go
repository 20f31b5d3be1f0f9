package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

func TestValidateTransition(t *testing.T) {
	draft, published, closed := models.ElectionStatusDraft, models.ElectionStatusPublished, models.ElectionStatusClosed

	require.NoError(t, ValidateTransition(draft, published))
	require.NoError(t, ValidateTransition(published, closed))

	require.ErrorIs(t, ValidateTransition(draft, closed), ErrNotPublished)
	require.ErrorIs(t, ValidateTransition(closed, published), ErrNotDraft)
	require.ErrorIs(t, ValidateTransition(published, published), ErrNotDraft)
	require.ErrorIs(t, ValidateTransition(published, draft), ErrInvalidTransition)
	require.ErrorIs(t, ValidateTransition(closed, draft), ErrInvalidTransition)
	require.ErrorIs(t, ValidateTransition("archived", closed), ErrUnknownStatus)
}

func TestPublishAndClose(t *testing.T) {
	e := models.Election{ID: "e1", Status: models.ElectionStatusDraft}

	_, err := Close(e)
	require.ErrorIs(t, err, ErrNotPublished)

	e, err = Publish(e)
	require.NoError(t, err)
	require.Equal(t, models.ElectionStatusPublished, e.Status)

	_, err = Publish(e)
	require.ErrorIs(t, err, ErrNotDraft)

	e, err = Close(e)
	require.NoError(t, err)
	require.Equal(t, models.ElectionStatusClosed, e.Status)
}

func TestEnsureEditable(t *testing.T) {
	require.NoError(t, EnsureEditable(models.ElectionStatusDraft))
	for _, s := range []models.ElectionStatus{models.ElectionStatusPublished, models.ElectionStatusClosed} {
		err := EnsureEditable(s)
		require.ErrorIs(t, err, ErrNotEditable)
		require.Equal(t, "only draft elections can be modified", err.Error())
		require.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	}
}

func TestEnsureContestDeletable(t *testing.T) {
	regular := models.Contest{ID: "c2"}
	def := models.Contest{ID: "c1", IsDefault: true}

	require.NoError(t, EnsureContestDeletable(models.ElectionStatusDraft, regular))
	require.ErrorIs(t, EnsureContestDeletable(models.ElectionStatusDraft, def), ErrDefaultContest)
	require.ErrorIs(t, EnsureContestDeletable(models.ElectionStatusPublished, regular), ErrNotEditable)
	require.ErrorIs(t, EnsureContestDeletable(models.ElectionStatusClosed, def), ErrNotEditable)
}

func TestCanVoteNow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	open := models.Election{
		Status:   models.ElectionStatusPublished,
		OpensAt:  now.Add(-time.Hour),
		ClosesAt: now.Add(time.Hour),
	}
	eligible := Eligibility{OnRoll: true}

	require.True(t, CanVoteNow(open, eligible, now))
	require.NoError(t, VoteBlocker(open, eligible, now))

	// Window bounds are inclusive.
	require.True(t, CanVoteNow(open, eligible, open.OpensAt))
	require.True(t, CanVoteNow(open, eligible, open.ClosesAt))
	require.False(t, CanVoteNow(open, eligible, open.ClosesAt.Add(time.Second)))

	draft := open
	draft.Status = models.ElectionStatusDraft
	require.False(t, CanVoteNow(draft, eligible, now))
	require.ErrorIs(t, VoteBlocker(draft, eligible, now), ErrNotOpen)

	require.False(t, CanVoteNow(open, Eligibility{}, now))
	require.ErrorIs(t, VoteBlocker(open, Eligibility{}, now), ErrNotOnRoll)

	voted := Eligibility{OnRoll: true, HasVoted: true}
	require.False(t, CanVoteNow(open, voted, now))
	require.ErrorIs(t, VoteBlocker(open, voted, now), ErrAlreadyVoted)
}

func TestResultsAndWindow(t *testing.T) {
	require.ErrorIs(t, EnsureResultsReadable(models.ElectionStatusPublished), ErrResultsNotReady)
	require.NoError(t, EnsureResultsReadable(models.ElectionStatusClosed))

	now := time.Now()
	require.NoError(t, ValidateWindow(now, now.Add(time.Minute)))
	require.ErrorIs(t, ValidateWindow(now, now), ErrInvalidWindow)

	e := models.Election{Status: models.ElectionStatusPublished, ClosesAt: now.Add(-time.Minute)}
	require.True(t, Due(e, now))
	e.Status = models.ElectionStatusClosed
	require.False(t, Due(e, now))
}
