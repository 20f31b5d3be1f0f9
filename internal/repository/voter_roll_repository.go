package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

// VoterRollRepository implements voterroll.Roll over the voter_rolls table.
type VoterRollRepository struct {
	pool *pgxpool.Pool
}

func NewVoterRollRepository(pool *pgxpool.Pool) *VoterRollRepository {
	return &VoterRollRepository{pool: pool}
}

func (r *VoterRollRepository) Contains(ctx context.Context, contestID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM voter_rolls WHERE contest_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, contestID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Insert adds the users in one transaction. The election row is share-locked
// and must still be a draft, so a publish cannot slip in between the gate and
// the write. Rows that already exist are skipped, so the count can fall short
// of len(userIDs) when the roll changed underneath the caller.
func (r *VoterRollRepository) Insert(ctx context.Context, contestID string, userIDs []string) (int, error) {
	const lockQuery = `
		SELECT e.status
		FROM contests c
		JOIN elections e ON e.id = c.election_id
		WHERE c.id = $1
		FOR SHARE OF e
	`
	const query = `
		INSERT INTO voter_rolls (id, election_id, contest_id, user_id)
		SELECT $1, c.election_id, c.id, $3
		FROM contests c WHERE c.id = $2
		ON CONFLICT (contest_id, user_id) DO NOTHING
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status models.ElectionStatus
	if err := tx.QueryRow(ctx, lockQuery, contestID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrContestNotFound
		}
		return 0, fmt.Errorf("lock election: %w", err)
	}
	if err := lifecycle.EnsureEditable(status); err != nil {
		return 0, err
	}

	inserted := 0
	for _, userID := range userIDs {
		cmd, err := tx.Exec(ctx, query, uuid.NewString(), contestID, userID)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", userID, err)
		}
		inserted += int(cmd.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *VoterRollRepository) List(ctx context.Context, contestID string, req models.PageRequest) ([]models.VoterRollEntry, models.Page, error) {
	req = req.Normalize(models.MaxPerPage)

	const countQuery = `SELECT COUNT(*) FROM voter_rolls WHERE contest_id = $1`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, contestID).Scan(&total); err != nil {
		return nil, models.Page{}, err
	}

	const query = `
		SELECT u.id::text, u.email, u.full_name
		FROM voter_rolls vr
		JOIN users u ON u.id = vr.user_id
		WHERE vr.contest_id = $1
		ORDER BY u.email ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, contestID, req.PerPage, req.Offset())
	if err != nil {
		return nil, models.Page{}, err
	}
	defer rows.Close()

	entries := []models.VoterRollEntry{}
	for rows.Next() {
		var entry models.VoterRollEntry
		if err := rows.Scan(&entry.UserID, &entry.Email, &entry.FullName); err != nil {
			return nil, models.Page{}, err
		}
		entries = append(entries, entry)
	}
	page := models.Page{
		Page:       req.Page,
		PerPage:    req.PerPage,
		Total:      total,
		TotalPages: models.TotalPages(total, req.PerPage),
	}
	return entries, page, rows.Err()
}
