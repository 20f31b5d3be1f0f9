// Package receipts keeps vote receipts in a local SQLite file so a voter's
// proof of submission survives the console process. Submissions whose answer
// was lost are kept too, one per contest, until they resolve.
package receipts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meowecho-tech/vote/internal/models"
)

var ErrNotFound = errors.New("receipt not found")

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
    receipt_id TEXT PRIMARY KEY,
    contest_id TEXT NOT NULL,
    election_id TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL,
    candidate_ids TEXT NOT NULL,
    submitted_at TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_contest ON receipts(contest_id);
CREATE TABLE IF NOT EXISTS pending_votes (
    contest_id TEXT PRIMARY KEY,
    idempotency_key TEXT NOT NULL,
    candidate_ids TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger. ":memory:" gives a private in-memory
// ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open receipt ledger: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate receipt ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a receipt. Recording the same receipt again keeps the first
// copy.
func (l *Ledger) Record(ctx context.Context, rec models.ReceiptRecord) error {
	candidates, err := json.Marshal(rec.CandidateIDs)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO receipts (receipt_id, contest_id, election_id, idempotency_key, candidate_ids, submitted_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(receipt_id) DO NOTHING`,
		rec.ReceiptID,
		rec.ContestID,
		rec.ElectionID,
		rec.IdempotencyKey,
		string(candidates),
		rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, receiptID string) (models.ReceiptRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT receipt_id, contest_id, election_id, idempotency_key, candidate_ids, submitted_at, recorded_at
		FROM receipts WHERE receipt_id = ?`, receiptID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReceiptRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns receipts newest first, optionally for one contest.
func (l *Ledger) List(ctx context.Context, contestID string) ([]models.ReceiptRecord, error) {
	query := `
		SELECT receipt_id, contest_id, election_id, idempotency_key, candidate_ids, submitted_at, recorded_at
		FROM receipts`
	var args []any
	if contestID != "" {
		query += ` WHERE contest_id = ?`
		args = append(args, contestID)
	}
	query += ` ORDER BY submitted_at DESC, receipt_id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []models.ReceiptRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (models.ReceiptRecord, error) {
	var (
		rec                     models.ReceiptRecord
		candidates              string
		submittedAt, recordedAt string
	)
	if err := s.Scan(&rec.ReceiptID, &rec.ContestID, &rec.ElectionID, &rec.IdempotencyKey, &candidates, &submittedAt, &recordedAt); err != nil {
		return models.ReceiptRecord{}, err
	}
	if err := json.Unmarshal([]byte(candidates), &rec.CandidateIDs); err != nil {
		return models.ReceiptRecord{}, fmt.Errorf("decode candidate ids: %w", err)
	}
	var err error
	if rec.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt); err != nil {
		return models.ReceiptRecord{}, fmt.Errorf("decode submitted_at: %w", err)
	}
	if rec.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
		return models.ReceiptRecord{}, fmt.Errorf("decode recorded_at: %w", err)
	}
	return rec, nil
}

// SavePending stores the unresolved attempt for a contest, replacing any
// earlier one.
func (l *Ledger) SavePending(ctx context.Context, p models.PendingVote) error {
	candidates, err := json.Marshal(p.CandidateIDs)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO pending_votes (contest_id, idempotency_key, candidate_ids, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contest_id) DO UPDATE SET
		    idempotency_key = excluded.idempotency_key,
		    candidate_ids = excluded.candidate_ids,
		    created_at = excluded.created_at`,
		p.ContestID,
		p.IdempotencyKey,
		string(candidates),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save pending vote: %w", err)
	}
	return nil
}

func (l *Ledger) Pending(ctx context.Context, contestID string) (models.PendingVote, bool, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT contest_id, idempotency_key, candidate_ids, created_at
		FROM pending_votes WHERE contest_id = ?`, contestID)
	p, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingVote{}, false, nil
	}
	if err != nil {
		return models.PendingVote{}, false, err
	}
	return p, true, nil
}

func (l *Ledger) ClearPending(ctx context.Context, contestID string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM pending_votes WHERE contest_id = ?`, contestID); err != nil {
		return fmt.Errorf("clear pending vote: %w", err)
	}
	return nil
}

func (l *Ledger) ListPending(ctx context.Context) ([]models.PendingVote, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT contest_id, idempotency_key, candidate_ids, created_at
		FROM pending_votes ORDER BY created_at, contest_id`)
	if err != nil {
		return nil, fmt.Errorf("list pending votes: %w", err)
	}
	defer rows.Close()

	var out []models.PendingVote
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPending(s scanner) (models.PendingVote, error) {
	var (
		p          models.PendingVote
		candidates string
		createdAt  string
	)
	if err := s.Scan(&p.ContestID, &p.IdempotencyKey, &candidates, &createdAt); err != nil {
		return models.PendingVote{}, err
	}
	if err := json.Unmarshal([]byte(candidates), &p.CandidateIDs); err != nil {
		return models.PendingVote{}, fmt.Errorf("decode candidate ids: %w", err)
	}
	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return models.PendingVote{}, fmt.Errorf("decode created_at: %w", err)
	}
	return p, nil
}
