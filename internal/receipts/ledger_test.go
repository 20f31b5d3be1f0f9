package receipts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/models"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func record(id, contest string, at time.Time) models.ReceiptRecord {
	return models.ReceiptRecord{
		ReceiptID:      id,
		ContestID:      contest,
		ElectionID:     "election-1",
		IdempotencyKey: "key-" + id,
		CandidateIDs:   []string{"A", "B"},
		SubmittedAt:    at,
		RecordedAt:     at.Add(time.Second),
	}
}

func TestLedger_RecordGetList(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, record("r1", "c1", base)))
	require.NoError(t, l.Record(ctx, record("r2", "c2", base.Add(time.Minute))))

	got, err := l.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ContestID)
	require.Equal(t, []string{"A", "B"}, got.CandidateIDs)
	require.True(t, base.Equal(got.SubmittedAt))

	all, err := l.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "r2", all[0].ReceiptID)

	c1, err := l.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, c1, 1)

	_, err = l.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_DuplicateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	first := record("r1", "c1", time.Now())
	require.NoError(t, l.Record(ctx, first))

	replay := first
	replay.IdempotencyKey = "other"
	require.NoError(t, l.Record(ctx, replay))

	got, err := l.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "key-r1", got.IdempotencyKey)
}

func TestLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "receipts.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, record("r1", "c1", time.Now())))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "r1", got.ReceiptID)
}

func TestLedger_PendingVotes(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, found, err := l.Pending(ctx, "c1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, l.SavePending(ctx, models.PendingVote{ContestID: "c1", IdempotencyKey: "k1", CandidateIDs: []string{"A"}, CreatedAt: at}))
	require.NoError(t, l.SavePending(ctx, models.PendingVote{ContestID: "c1", IdempotencyKey: "k2", CandidateIDs: []string{"B"}, CreatedAt: at.Add(time.Minute)}))

	got, found, err := l.Pending(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "k2", got.IdempotencyKey)
	require.Equal(t, []string{"B"}, got.CandidateIDs)

	all, err := l.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, l.ClearPending(ctx, "c1"))
	_, found, err = l.Pending(ctx, "c1")
	require.NoError(t, err)
	require.False(t, found)
}
