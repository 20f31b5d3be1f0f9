package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meowecho-tech/vote/internal/database"
	"github.com/meowecho-tech/vote/internal/guard"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/repository"
	"github.com/meowecho-tech/vote/internal/service"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

// readPayload loads an import file. Without an explicit format the file
// extension decides, and failing that the content.
func readPayload(path, format string) (voterroll.Format, []byte, error) {
	if err := required(flagValue{"file", path}); err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	if format != "" {
		f, err := voterroll.ParseFormat(format)
		return f, data, err
	}
	if f, err := voterroll.ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f, data, nil
	}
	f, err := voterroll.DetectFormat(data)
	return f, data, err
}

func (a *app) rolls(ctx context.Context, args []string) error {
	act, rest, err := action(args, "list", "add", "remove", "import", "reconcile-db")
	if err != nil {
		return err
	}

	fs := a.newFlags("rolls " + act)
	electionID := fs.String("election", "", "election id (for changes)")
	contestID := fs.String("contest", "", "contest id")
	userID := fs.String("user", "", "user id")
	file := fs.String("file", "", "payload file (csv, json or xlsx)")
	format := fs.String("format", "", "payload format (default: file extension)")
	apply := fs.Bool("apply", false, "write the roll; without it the import is a dry run")
	page, perPage := pageFlags(fs)
	if err := parseFlags(fs, rest); err != nil {
		return err
	}
	if err := required(flagValue{"contest", *contestID}); err != nil {
		return err
	}

	switch act {
	case "list":
		items, pagination, err := a.contests.Voters(ctx, *contestID, models.PageRequest{Page: *page, PerPage: *perPage})
		if err != nil {
			return err
		}
		return a.print(map[string]any{"voters": items, "pagination": pagination})
	case "reconcile-db":
		return a.reconcileDB(ctx, *contestID, *file, *format, !*apply)
	}

	election, err := a.loadElection(ctx, *electionID)
	if err != nil {
		return err
	}
	if err := a.authorize(guard.ActionEditVoterRoll, election); err != nil {
		return err
	}

	switch act {
	case "add", "remove":
		if err := required(flagValue{"user", *userID}); err != nil {
			return err
		}
		change := a.contests.AddVoter
		if act == "remove" {
			change = a.contests.RemoveVoter
		}
		if err := change(ctx, election, *contestID, *userID); err != nil {
			return err
		}
		return a.print(map[string]bool{"ok": true})
	default:
		f, payload, err := readPayload(*file, *format)
		if err != nil {
			return err
		}
		report, err := a.contests.ImportVoters(ctx, election, *contestID, f, payload, !*apply)
		if err != nil {
			return err
		}
		return a.print(report)
	}
}

// reconcileDB runs the import straight against Postgres when the API is
// unavailable.
func (a *app) reconcileDB(ctx context.Context, contestID, file, format string, dryRun bool) error {
	f, payload, err := readPayload(file, format)
	if err != nil {
		return err
	}
	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	var archive service.ImportArchive
	if a.cfg.Storage.Enabled {
		objects, err := a.objectStore(ctx)
		if err != nil {
			return err
		}
		archive = service.NewObjectArchive(objects, a.log)
	}

	importer := service.NewDirectImporter(
		repository.NewContestRepository(pool),
		repository.NewUserRepository(pool),
		repository.NewVoterRollRepository(pool),
		archive,
		a.log,
	)
	report, err := importer.Import(ctx, contestID, f, payload, dryRun)
	if err != nil {
		if report.TotalRows > 0 {
			_ = a.print(report)
		}
		return err
	}
	return a.print(report)
}
