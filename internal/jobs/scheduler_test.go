package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/queue"
)

type dueStub struct {
	mock.Mock
}

func (d *dueStub) ListDue(ctx context.Context, now time.Time) ([]models.Election, error) {
	args := d.Called(ctx, now)
	elections, _ := args.Get(0).([]models.Election)
	return elections, args.Error(1)
}

type enqueuerStub struct {
	mock.Mock
}

func (e *enqueuerStub) Enqueue(ctx context.Context, task queue.Task) (string, error) {
	args := e.Called(ctx, task)
	return args.String(0), args.Error(1)
}

func TestSweepQueuesDueElections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := &dueStub{}
	due.On("ListDue", mock.Anything, now).Return([]models.Election{{ID: "e1"}, {ID: "e2"}}, nil)

	q := &enqueuerStub{}
	q.On("Enqueue", mock.Anything, queue.Task{Type: queue.TaskCloseElection, ElectionID: "e1"}).Return("1-0", nil)
	q.On("Enqueue", mock.Anything, queue.Task{Type: queue.TaskCloseElection, ElectionID: "e2"}).Return("", errors.New("redis down"))

	s := NewScheduler("@every 1m", due, q, zerolog.Nop())
	s.now = func() time.Time { return now }

	queued, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, queued)
	due.AssertExpectations(t)
	q.AssertExpectations(t)
}

func TestSweepListFailure(t *testing.T) {
	due := &dueStub{}
	due.On("ListDue", mock.Anything, mock.Anything).Return(nil, errors.New("unauthorized"))
	q := &enqueuerStub{}

	s := NewScheduler("@every 1m", due, q, zerolog.Nop())
	_, err := s.Sweep(context.Background())
	require.Error(t, err)
	q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler("not a spec", &dueStub{}, &enqueuerStub{}, zerolog.Nop())
	require.Error(t, s.Start())
}
