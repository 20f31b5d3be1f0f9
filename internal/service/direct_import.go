package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/repository"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

// ContestGate reports a contest together with its election state and
// refuses contests whose election is no longer a draft.
type ContestGate interface {
	EnsureEditable(ctx context.Context, contestID string) (repository.ContestWithElection, error)
}

// DirectImporter reconciles a voter roll straight against the database,
// bypassing the API. The draft gate still applies.
type DirectImporter struct {
	contests   ContestGate
	reconciler *voterroll.Reconciler
	archive    ImportArchive
	log        zerolog.Logger
}

func NewDirectImporter(contests ContestGate, dir voterroll.Directory, roll voterroll.Roll, archive ImportArchive, log zerolog.Logger) *DirectImporter {
	return &DirectImporter{
		contests:   contests,
		reconciler: voterroll.NewReconciler(dir, roll, log),
		archive:    archive,
		log:        log,
	}
}

func (d *DirectImporter) Import(ctx context.Context, contestID string, format voterroll.Format, payload []byte, dryRun bool) (models.ImportReport, error) {
	if err := requireID("contest", contestID); err != nil {
		return models.ImportReport{}, err
	}
	rows, err := voterroll.Parse(format, payload)
	if err != nil {
		return models.ImportReport{}, err
	}
	contest, err := d.contests.EnsureEditable(ctx, contestID)
	if err != nil {
		return models.ImportReport{}, err
	}

	report, err := d.reconciler.Run(ctx, contestID, rows, dryRun)
	if err != nil {
		return report, err
	}

	if d.archive != nil && !dryRun {
		if err := d.archive.ArchiveImport(ctx, ArchivedImport{
			ContestID: contestID,
			Format:    format,
			Payload:   payload,
			Report:    report,
		}); err != nil {
			d.log.Warn().Err(err).Str("contest_id", contestID).Msg("archive direct import failed")
		}
	}

	d.log.Info().
		Str("contest_id", contestID).
		Str("election_id", contest.Contest.ElectionID).
		Bool("dry_run", dryRun).
		Int("valid_rows", report.ValidRows).
		Int("inserted_rows", report.InsertedRows).
		Msg("direct voter roll import")
	return report, nil
}
