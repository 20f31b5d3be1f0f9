package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

var ErrContestNotFound = errors.New("contest not found")

type ContestRepository struct {
	pool *pgxpool.Pool
}

func NewContestRepository(pool *pgxpool.Pool) *ContestRepository {
	return &ContestRepository{pool: pool}
}

// ContestWithElection is a contest joined with the state of its election.
type ContestWithElection struct {
	Contest        models.Contest
	ElectionTitle  string
	ElectionStatus models.ElectionStatus
}

func (r *ContestRepository) GetByID(ctx context.Context, id string) (ContestWithElection, error) {
	const query = `
		SELECT c.id::text, c.election_id::text, c.title, c.description, c.max_selections,
		       c.metadata, c.is_default, e.title, e.status
		FROM contests c
		JOIN elections e ON e.id = c.election_id
		WHERE c.id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var out ContestWithElection
	var status string
	var metadata []byte
	if err := row.Scan(
		&out.Contest.ID,
		&out.Contest.ElectionID,
		&out.Contest.Title,
		&out.Contest.Description,
		&out.Contest.MaxSelections,
		&metadata,
		&out.Contest.IsDefault,
		&out.ElectionTitle,
		&status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContestWithElection{}, ErrContestNotFound
		}
		return ContestWithElection{}, err
	}
	out.Contest.Metadata = metadata
	out.ElectionStatus = models.ElectionStatus(status)
	return out, nil
}

// EnsureEditable applies the draft gate to a contest's election.
func (r *ContestRepository) EnsureEditable(ctx context.Context, contestID string) (ContestWithElection, error) {
	contest, err := r.GetByID(ctx, contestID)
	if err != nil {
		return ContestWithElection{}, err
	}
	if err := lifecycle.EnsureEditable(contest.ElectionStatus); err != nil {
		return contest, err
	}
	return contest, nil
}
