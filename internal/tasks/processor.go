package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/queue"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

// Elections is the part of service.ElectionService the worker drives.
type Elections interface {
	Get(ctx context.Context, electionID string) (models.Election, error)
	CloseByID(ctx context.Context, electionID string) (models.Election, error)
}

type RollImporter interface {
	ImportVoters(ctx context.Context, election models.Election, contestID string, format voterroll.Format, payload []byte, dryRun bool) (models.ImportReport, error)
}

// PayloadSource fetches staged import payloads. storage.ObjectStore
// satisfies it.
type PayloadSource interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type Processor struct {
	elections Elections
	imports   RollImporter
	payloads  PayloadSource
	logger    zerolog.Logger
}

func NewProcessor(elections Elections, imports RollImporter, payloads PayloadSource, logger zerolog.Logger) *Processor {
	return &Processor{
		elections: elections,
		imports:   imports,
		payloads:  payloads,
		logger:    logger,
	}
}

// Handle runs one stream message. Errors that a retry cannot fix are logged
// and swallowed so the message is acked; the rest are returned and the
// message stays pending.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed task")
		return nil
	}

	switch task.Type {
	case queue.TaskCloseElection:
		err = p.handleClose(ctx, task)
	case queue.TaskVoterRollImport:
		err = p.handleImport(ctx, task)
	}
	if err == nil {
		return nil
	}
	if permanent(err) {
		p.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Str("type", string(task.Type)).
			Str("kind", apperr.KindOf(err).String()).
			Msg("task failed permanently")
		return nil
	}
	return err
}

func permanent(err error) bool {
	if errors.Is(err, queue.ErrMalformedTask) {
		return true
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindConflict, apperr.KindAuthorization:
		return true
	}
	return false
}

func (p *Processor) handleClose(ctx context.Context, task queue.Task) error {
	election, err := p.elections.CloseByID(ctx, task.ElectionID)
	if err != nil {
		return fmt.Errorf("close election %s: %w", task.ElectionID, err)
	}
	p.logger.Info().
		Str("election_id", election.ID).
		Str("status", string(election.Status)).
		Msg("close task done")
	return nil
}

func (p *Processor) handleImport(ctx context.Context, task queue.Task) error {
	format, err := voterroll.ParseFormat(task.Format)
	if err != nil {
		return err
	}
	if p.payloads == nil {
		return fmt.Errorf("%w: no payload store configured", queue.ErrMalformedTask)
	}
	payload, err := p.payloads.Get(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch payload %s: %w", task.ObjectKey, err)
	}
	election, err := p.elections.Get(ctx, task.ElectionID)
	if err != nil {
		return err
	}

	report, err := p.imports.ImportVoters(ctx, election, task.ContestID, format, payload, task.DryRun)
	if err != nil {
		return fmt.Errorf("import into %s: %w", task.ContestID, err)
	}
	p.logger.Info().
		Str("contest_id", task.ContestID).
		Str("object_key", task.ObjectKey).
		Bool("dry_run", report.DryRun).
		Int("valid_rows", report.ValidRows).
		Int("inserted_rows", report.InsertedRows).
		Int("issues", len(report.Issues)).
		Msg("import task done")
	return nil
}
