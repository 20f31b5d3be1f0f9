package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

type TaskType string

const (
	TaskCloseElection   TaskType = "close_election"
	TaskVoterRollImport TaskType = "voter_roll_import"
)

var ErrMalformedTask = errors.New("malformed task")

// Task is one unit of work on the stream. Which fields are set depends on
// Type.
type Task struct {
	Type       TaskType `json:"type"`
	ElectionID string   `json:"election_id,omitempty"`
	ContestID  string   `json:"contest_id,omitempty"`
	ObjectKey  string   `json:"object_key,omitempty"`
	Format     string   `json:"format,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

func (t Task) Validate() error {
	switch t.Type {
	case TaskCloseElection:
		if t.ElectionID == "" {
			return fmt.Errorf("%w: close_election needs election_id", ErrMalformedTask)
		}
	case TaskVoterRollImport:
		if t.ElectionID == "" || t.ContestID == "" || t.ObjectKey == "" || t.Format == "" {
			return fmt.Errorf("%w: voter_roll_import needs election_id, contest_id, object_key and format", ErrMalformedTask)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedTask, t.Type)
	}
	return nil
}

func (t Task) values() (map[string]any, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":    string(t.Type),
		"payload": string(body),
	}, nil
}

// DecodeTask reads a task back from stream message values.
func DecodeTask(values map[string]any) (Task, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return Task{}, fmt.Errorf("%w: payload missing", ErrMalformedTask)
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	return task, task.Validate()
}
