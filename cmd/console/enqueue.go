package main

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/meowecho-tech/vote/internal/guard"
	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/queue"
)

// enqueue hands work to the worker. Import payloads are staged in object
// storage first because stream entries should stay small.
func (a *app) enqueue(ctx context.Context, args []string) error {
	act, rest, err := action(args, "close", "import")
	if err != nil {
		return err
	}

	fs := a.newFlags("enqueue " + act)
	electionID := fs.String("election", "", "election id")
	contestID := fs.String("contest", "", "contest id")
	file := fs.String("file", "", "payload file (csv, json or xlsx)")
	format := fs.String("format", "", "payload format (default: file extension)")
	apply := fs.Bool("apply", false, "write the roll; without it the import is a dry run")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	election, err := a.loadElection(ctx, *electionID)
	if err != nil {
		return err
	}

	task := queue.Task{ElectionID: election.ID}
	switch act {
	case "close":
		if err := a.authorize(guard.ActionClose, election); err != nil {
			return err
		}
		task.Type = queue.TaskCloseElection
	default:
		if err := required(flagValue{"contest", *contestID}); err != nil {
			return err
		}
		if err := a.authorize(guard.ActionEditVoterRoll, election); err != nil {
			return err
		}
		f, payload, err := readPayload(*file, *format)
		if err != nil {
			return err
		}
		objects, err := a.objectStore(ctx)
		if err != nil {
			return err
		}
		key := path.Join("staged", time.Now().UTC().Format("2006/01/02"), *contestID, ids.New()+"."+string(f))
		if err := objects.Put(ctx, key, payload, "application/octet-stream", map[string]string{"contest-id": *contestID}); err != nil {
			return err
		}
		task.Type = queue.TaskVoterRollImport
		task.ContestID = *contestID
		task.ObjectKey = key
		task.Format = string(f)
		task.DryRun = !*apply
	}

	client, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	id, err := queue.NewProducer(client, a.cfg.Worker.Stream).Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return a.print(map[string]string{"message_id": id, "type": string(task.Type)})
}
