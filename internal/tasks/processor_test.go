package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/queue"
	"github.com/meowecho-tech/vote/internal/session"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

type electionsStub struct {
	mock.Mock
}

func (e *electionsStub) Get(ctx context.Context, id string) (models.Election, error) {
	args := e.Called(ctx, id)
	return args.Get(0).(models.Election), args.Error(1)
}

func (e *electionsStub) CloseByID(ctx context.Context, id string) (models.Election, error) {
	args := e.Called(ctx, id)
	return args.Get(0).(models.Election), args.Error(1)
}

type importerStub struct {
	mock.Mock
}

func (i *importerStub) ImportVoters(ctx context.Context, election models.Election, contestID string, format voterroll.Format, payload []byte, dryRun bool) (models.ImportReport, error) {
	args := i.Called(ctx, election, contestID, format, payload, dryRun)
	return args.Get(0).(models.ImportReport), args.Error(1)
}

type payloadStub map[string][]byte

func (p payloadStub) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := p[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func message(t *testing.T, task queue.Task) redis.XMessage {
	t.Helper()
	body, err := json.Marshal(task)
	require.NoError(t, err)
	return redis.XMessage{ID: "1-0", Values: map[string]any{"type": string(task.Type), "payload": string(body)}}
}

func TestCloseTask(t *testing.T) {
	elections := &electionsStub{}
	elections.On("CloseByID", mock.Anything, "e1").Return(models.Election{ID: "e1", Status: models.ElectionStatusClosed}, nil)

	p := NewProcessor(elections, &importerStub{}, payloadStub{}, zerolog.Nop())
	require.NoError(t, p.Handle(context.Background(), message(t, queue.Task{Type: queue.TaskCloseElection, ElectionID: "e1"})))
	elections.AssertExpectations(t)
}

func TestCloseTaskRetriesTransportFailures(t *testing.T) {
	elections := &electionsStub{}
	transport := &session.TransportError{Method: "GET", Path: "/elections/e1", Err: context.DeadlineExceeded}
	elections.On("CloseByID", mock.Anything, "e1").Return(models.Election{}, transport)

	p := NewProcessor(elections, &importerStub{}, payloadStub{}, zerolog.Nop())
	err := p.Handle(context.Background(), message(t, queue.Task{Type: queue.TaskCloseElection, ElectionID: "e1"}))
	require.Error(t, err)
}

func TestCloseTaskDropsPermanentFailures(t *testing.T) {
	elections := &electionsStub{}
	elections.On("CloseByID", mock.Anything, "e1").Return(models.Election{}, lifecycle.ErrInvalidTransition)

	p := NewProcessor(elections, &importerStub{}, payloadStub{}, zerolog.Nop())
	require.NoError(t, p.Handle(context.Background(), message(t, queue.Task{Type: queue.TaskCloseElection, ElectionID: "e1"})))
}

func TestImportTask(t *testing.T) {
	election := models.Election{ID: "e1", Status: models.ElectionStatusDraft}
	payload := []byte("email\nalice@example.com\n")

	elections := &electionsStub{}
	elections.On("Get", mock.Anything, "e1").Return(election, nil)
	importer := &importerStub{}
	importer.On("ImportVoters", mock.Anything, election, "c1", voterroll.FormatCSV, payload, false).
		Return(models.ImportReport{TotalRows: 1, ValidRows: 1, InsertedRows: 1}, nil)

	p := NewProcessor(elections, importer, payloadStub{"staged/c1.csv": payload}, zerolog.Nop())
	err := p.Handle(context.Background(), message(t, queue.Task{
		Type:       queue.TaskVoterRollImport,
		ElectionID: "e1",
		ContestID:  "c1",
		ObjectKey:  "staged/c1.csv",
		Format:     "csv",
	}))
	require.NoError(t, err)
	importer.AssertExpectations(t)
}

func TestImportTaskMissingPayloadIsRetried(t *testing.T) {
	p := NewProcessor(&electionsStub{}, &importerStub{}, payloadStub{}, zerolog.Nop())
	err := p.Handle(context.Background(), message(t, queue.Task{
		Type:       queue.TaskVoterRollImport,
		ElectionID: "e1",
		ContestID:  "c1",
		ObjectKey:  "staged/missing.csv",
		Format:     "csv",
	}))
	require.Error(t, err)
}

func TestMalformedTaskIsDropped(t *testing.T) {
	p := NewProcessor(&electionsStub{}, &importerStub{}, payloadStub{}, zerolog.Nop())
	err := p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{"type": "reindex"}})
	require.NoError(t, err)
}
