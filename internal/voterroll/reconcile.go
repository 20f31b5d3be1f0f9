// Package voterroll turns bulk voter-roll payloads into classified import
// reports. Dry runs and applied imports walk the same classification; only
// the final insert differs.
package voterroll

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

var ErrInsertMismatch = apperr.New(apperr.KindConflict, "roll_changed", "voter roll changed during import")

// Directory resolves a user id or email to a user id.
type Directory interface {
	Resolve(ctx context.Context, identifier string) (userID string, found bool, err error)
}

// Roll is the voter roll of one contest.
type Roll interface {
	Contains(ctx context.Context, contestID, userID string) (bool, error)
	// Insert adds the users and returns how many rows were added.
	Insert(ctx context.Context, contestID string, userIDs []string) (int, error)
}

type Reconciler struct {
	dir  Directory
	roll Roll
	log  zerolog.Logger
}

func NewReconciler(dir Directory, roll Roll, log zerolog.Logger) *Reconciler {
	return &Reconciler{dir: dir, roll: roll, log: log}
}

// Normalize is the comparison form of an identifier.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Run classifies rows in payload order:
//  1. a repeated identifier is duplicate_in_payload
//  2. an unresolvable one is user_not_found
//  3. a user already resolved from an earlier row is duplicate_in_payload
//  4. a user already on the roll is already_in_roll
//  5. anything else is valid and, unless dryRun, inserted
func (r *Reconciler) Run(ctx context.Context, contestID string, rows []Row, dryRun bool) (models.ImportReport, error) {
	report := models.ImportReport{
		DryRun: dryRun,
		Issues: []models.ImportIssue{},
	}
	issue := func(row Row, reason models.IssueReason) {
		report.Issues = append(report.Issues, models.ImportIssue{
			Row:        row.Line,
			Identifier: row.Identifier,
			Reason:     reason,
		})
	}

	seenIdentifiers := make(map[string]struct{}, len(rows))
	seenUsers := make(map[string]struct{}, len(rows))
	valid := make([]string, 0, len(rows))

	for _, row := range rows {
		key := Normalize(row.Identifier)
		if _, dup := seenIdentifiers[key]; dup {
			report.DuplicateRows++
			issue(row, models.IssueDuplicateInPayload)
			continue
		}
		seenIdentifiers[key] = struct{}{}

		userID, found, err := r.dir.Resolve(ctx, strings.TrimSpace(row.Identifier))
		if err != nil {
			return models.ImportReport{}, fmt.Errorf("resolve row %d: %w", row.Line, err)
		}
		if !found {
			report.NotFoundRows++
			issue(row, models.IssueUserNotFound)
			continue
		}

		if _, dup := seenUsers[userID]; dup {
			report.DuplicateRows++
			issue(row, models.IssueDuplicateInPayload)
			continue
		}
		seenUsers[userID] = struct{}{}

		onRoll, err := r.roll.Contains(ctx, contestID, userID)
		if err != nil {
			return models.ImportReport{}, fmt.Errorf("check roll for row %d: %w", row.Line, err)
		}
		if onRoll {
			report.AlreadyInRollRows++
			issue(row, models.IssueAlreadyInRoll)
			continue
		}

		valid = append(valid, userID)
	}

	report.ValidRows = len(valid)
	report.TotalRows = report.ValidRows + report.DuplicateRows + report.AlreadyInRollRows + report.NotFoundRows

	if dryRun || len(valid) == 0 {
		return report, nil
	}

	inserted, err := r.roll.Insert(ctx, contestID, valid)
	if err != nil {
		return models.ImportReport{}, fmt.Errorf("insert voter roll: %w", err)
	}
	report.InsertedRows = inserted
	if inserted != report.ValidRows {
		r.log.Warn().
			Str("contest_id", contestID).
			Int("valid_rows", report.ValidRows).
			Int("inserted_rows", inserted).
			Msg("voter roll import inserted fewer rows than classified")
		return report, ErrInsertMismatch
	}

	r.log.Info().
		Str("contest_id", contestID).
		Int("total_rows", report.TotalRows).
		Int("inserted_rows", inserted).
		Msg("voter roll imported")
	return report, nil
}
