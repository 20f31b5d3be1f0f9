package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/queue"
)

type DueLister interface {
	ListDue(ctx context.Context, now time.Time) ([]models.Election, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// Scheduler periodically looks for published elections whose window has
// ended and queues a close for each.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	due      DueLister
	queue    Enqueuer
	now      func() time.Time
	log      zerolog.Logger
	deadline time.Duration
}

func NewScheduler(spec string, due DueLister, queue Enqueuer, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{
		cron:     c,
		spec:     spec,
		due:      due,
		queue:    queue,
		now:      time.Now,
		log:      log,
		deadline: time.Minute,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("close sweep scheduled")
	return nil
}

// Stop halts the schedule. The returned context is done once a running sweep
// has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.deadline)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("close sweep failed")
	}
}

// Sweep enqueues close_election for every due election and returns how many
// tasks were queued.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	elections, err := s.due.ListDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, e := range elections {
		id, err := s.queue.Enqueue(ctx, queue.Task{Type: queue.TaskCloseElection, ElectionID: e.ID})
		if err != nil {
			s.log.Error().Err(err).Str("election_id", e.ID).Msg("enqueue close failed")
			continue
		}
		queued++
		s.log.Info().Str("election_id", e.ID).Str("message_id", id).Msg("close queued")
	}
	return queued, nil
}
