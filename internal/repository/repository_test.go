package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/database"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

// Temporary tables live on one connection, so the pool is pinned to a single
// connection and the tables shadow any real ones for the test's lifetime.
const schema = `
	CREATE TEMP TABLE users (
		id uuid PRIMARY KEY,
		email text NOT NULL UNIQUE,
		full_name text NOT NULL,
		role text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	);
	CREATE TEMP TABLE elections (
		id uuid PRIMARY KEY,
		title text NOT NULL,
		status text NOT NULL
	);
	CREATE TEMP TABLE contests (
		id uuid PRIMARY KEY,
		election_id uuid NOT NULL REFERENCES elections(id),
		title text NOT NULL,
		description text,
		max_selections int NOT NULL DEFAULT 1,
		metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
		is_default boolean NOT NULL DEFAULT false
	);
	CREATE TEMP TABLE voter_rolls (
		id uuid PRIMARY KEY,
		election_id uuid NOT NULL,
		contest_id uuid NOT NULL REFERENCES contests(id),
		user_id uuid NOT NULL REFERENCES users(id),
		UNIQUE (contest_id, user_id)
	);
`

const (
	aliceID    = "6a1f3c1e-8f7e-4f63-9d53-1b6a3fa1d001"
	bobID      = "6a1f3c1e-8f7e-4f63-9d53-1b6a3fa1d002"
	electionID = "6a1f3c1e-8f7e-4f63-9d53-1b6a3fa1e001"
	contestID  = "6a1f3c1e-8f7e-4f63-9d53-1b6a3fa1c001"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("VOTE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOTE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, config.PostgresConfig{DSN: dsn, MaxOpen: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, full_name, role) VALUES
			($1, 'Alice@Example.com', 'Alice', 'voter'),
			($2, 'bob@example.com', 'Bob', 'voter')`, aliceID, bobID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO elections (id, title, status) VALUES ($1, 'Board', 'draft')`, electionID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO contests (id, election_id, title, is_default) VALUES ($1, $2, 'General', true)`, contestID, electionID)
	require.NoError(t, err)
	return pool
}

func TestUserResolve(t *testing.T) {
	pool := newTestPool(t)
	users := NewUserRepository(pool)
	ctx := context.Background()

	id, found, err := users.Resolve(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, aliceID, id)

	id, found, err = users.Resolve(ctx, bobID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, bobID, id)

	_, found, err = users.Resolve(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.False(t, found)

	_, err = users.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestReconcileAgainstPostgres(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	contests := NewContestRepository(pool)
	rolls := NewVoterRollRepository(pool)

	contest, err := contests.EnsureEditable(ctx, contestID)
	require.NoError(t, err)
	require.Equal(t, models.ElectionStatusDraft, contest.ElectionStatus)
	require.True(t, contest.Contest.IsDefault)

	rows, err := voterroll.Parse(voterroll.FormatCSV, []byte("email\nalice@example.com\nALICE@example.com\nghost@example.com\n"+bobID+"\n"))
	require.NoError(t, err)

	reconciler := voterroll.NewReconciler(NewUserRepository(pool), rolls, zerolog.Nop())
	report, err := reconciler.Run(ctx, contestID, rows, false)
	require.NoError(t, err)
	require.Equal(t, 4, report.TotalRows)
	require.Equal(t, 2, report.ValidRows)
	require.Equal(t, 2, report.InsertedRows)
	require.Equal(t, 1, report.DuplicateRows)
	require.Equal(t, 1, report.NotFoundRows)

	inserted, err := rolls.Insert(ctx, contestID, []string{aliceID})
	require.NoError(t, err)
	require.Zero(t, inserted)

	entries, page, err := rolls.List(ctx, contestID, models.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, "Alice@Example.com", entries[0].Email)

	_, err = pool.Exec(ctx, `UPDATE elections SET status = 'published' WHERE id = $1`, electionID)
	require.NoError(t, err)
	_, err = contests.EnsureEditable(ctx, contestID)
	require.ErrorIs(t, err, lifecycle.ErrNotEditable)

	// The gate passed earlier; the write itself still refuses a published roll.
	_, err = rolls.Insert(ctx, contestID, []string{bobID})
	require.ErrorIs(t, err, lifecycle.ErrNotEditable)
	_, err = rolls.Insert(ctx, electionID, []string{bobID})
	require.ErrorIs(t, err, ErrContestNotFound)

	_, err = contests.GetByID(ctx, electionID)
	require.ErrorIs(t, err, ErrContestNotFound)
}
