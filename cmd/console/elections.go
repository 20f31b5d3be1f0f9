package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meowecho-tech/vote/internal/guard"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/service"
)

func (a *app) orgs(ctx context.Context, args []string) error {
	act, rest, err := action(args, "list", "create")
	if err != nil {
		return err
	}
	if err := a.enter("/admin/organizations"); err != nil {
		return err
	}
	switch act {
	case "list":
		orgs, err := a.elections.ListOrganizations(ctx)
		if err != nil {
			return err
		}
		return a.print(orgs)
	default:
		fs := a.newFlags("orgs create")
		name := fs.String("name", "", "organization name")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		org, err := a.elections.CreateOrganization(ctx, *name)
		if err != nil {
			return err
		}
		return a.print(org)
	}
}

func pageFlags(fs interface {
	Int(name string, value int, usage string) *int
}) (*int, *int) {
	return fs.Int("page", 1, "page number"), fs.Int("per-page", models.DefaultPerPage, "items per page")
}

func parseTime(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: -%s must be RFC3339: %v", errUsage, name, err)
	}
	return t, nil
}

func (a *app) loadElection(ctx context.Context, id string) (models.Election, error) {
	if err := required(flagValue{"election", id}); err != nil {
		return models.Election{}, err
	}
	return a.elections.Get(ctx, id)
}

func (a *app) electionsCmd(ctx context.Context, args []string) error {
	act, rest, err := action(args, "list", "get", "create", "update", "publish", "close", "results")
	if err != nil {
		return err
	}

	fs := a.newFlags("elections " + act)
	id := fs.String("election", "", "election id")
	page, perPage := pageFlags(fs)
	org := fs.String("org", "", "organization id")
	title := fs.String("title", "", "title")
	description := fs.String("description", "", "description")
	opens := fs.String("opens", "", "opening time, RFC3339")
	closes := fs.String("closes", "", "closing time, RFC3339")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	switch act {
	case "list":
		items, pagination, err := a.elections.List(ctx, models.PageRequest{Page: *page, PerPage: *perPage})
		if err != nil {
			return err
		}
		return a.print(map[string]any{"elections": items, "pagination": pagination})

	case "get":
		election, err := a.loadElection(ctx, *id)
		if err != nil {
			return err
		}
		return a.print(election)

	case "create":
		if err := required(flagValue{"org", *org}, flagValue{"title", *title}, flagValue{"opens", *opens}, flagValue{"closes", *closes}); err != nil {
			return err
		}
		if err := a.authorize(guard.ActionManageElections, models.Election{Status: models.ElectionStatusDraft}); err != nil {
			return err
		}
		opensAt, err := parseTime("opens", *opens)
		if err != nil {
			return err
		}
		closesAt, err := parseTime("closes", *closes)
		if err != nil {
			return err
		}
		electionID, err := a.elections.Create(ctx, service.ElectionInput{
			OrganizationID: *org,
			Title:          *title,
			Description:    optional(*description),
			OpensAt:        opensAt,
			ClosesAt:       closesAt,
		})
		if err != nil {
			return err
		}
		return a.print(map[string]string{"election_id": electionID})

	case "update":
		election, err := a.loadElection(ctx, *id)
		if err != nil {
			return err
		}
		if err := a.authorize(guard.ActionManageElections, election); err != nil {
			return err
		}
		input := service.ElectionInput{
			Title:       election.Title,
			Description: election.Description,
			OpensAt:     election.OpensAt,
			ClosesAt:    election.ClosesAt,
		}
		if *title != "" {
			input.Title = *title
		}
		if *description != "" {
			input.Description = optional(*description)
		}
		if *opens != "" {
			if input.OpensAt, err = parseTime("opens", *opens); err != nil {
				return err
			}
		}
		if *closes != "" {
			if input.ClosesAt, err = parseTime("closes", *closes); err != nil {
				return err
			}
		}
		if err := a.elections.Update(ctx, election, input); err != nil {
			return err
		}
		return a.print(map[string]bool{"ok": true})

	case "publish", "close":
		election, err := a.loadElection(ctx, *id)
		if err != nil {
			return err
		}
		do, check := a.elections.Publish, guard.ActionPublish
		if act == "close" {
			do, check = a.elections.Close, guard.ActionClose
		}
		if err := a.authorize(check, election); err != nil {
			return err
		}
		next, err := do(ctx, election)
		if err != nil {
			return err
		}
		return a.print(map[string]models.ElectionStatus{"status": next.Status})

	default:
		election, err := a.loadElection(ctx, *id)
		if err != nil {
			return err
		}
		results, err := a.elections.Results(ctx, election)
		if err != nil {
			return err
		}
		return a.print(results)
	}
}

func (a *app) findContest(ctx context.Context, electionID, contestID string) (models.Contest, error) {
	contests, err := a.contests.List(ctx, electionID)
	if err != nil {
		return models.Contest{}, err
	}
	for _, c := range contests {
		if c.ID == contestID {
			return c, nil
		}
	}
	return models.Contest{}, fmt.Errorf("%w: contest %s is not part of election %s", errUsage, contestID, electionID)
}

func (a *app) contestsCmd(ctx context.Context, args []string) error {
	act, rest, err := action(args, "list", "create", "update", "delete")
	if err != nil {
		return err
	}

	fs := a.newFlags("contests " + act)
	electionID := fs.String("election", "", "election id")
	contestID := fs.String("contest", "", "contest id")
	title := fs.String("title", "", "title")
	description := fs.String("description", "", "description")
	maxSelections := fs.Int("max", 0, "maximum selections (default 1)")
	metadata := fs.String("metadata", "", "metadata as a JSON object")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	election, err := a.loadElection(ctx, *electionID)
	if err != nil {
		return err
	}

	switch act {
	case "list":
		contests, err := a.contests.List(ctx, election.ID)
		if err != nil {
			return err
		}
		return a.print(contests)

	case "create":
		if err := a.authorize(guard.ActionEditContest, election); err != nil {
			return err
		}
		id, err := a.contests.Create(ctx, election, service.ContestInput{
			Title:         *title,
			Description:   optional(*description),
			MaxSelections: *maxSelections,
			Metadata:      json.RawMessage(strings.TrimSpace(*metadata)),
		})
		if err != nil {
			return err
		}
		return a.print(map[string]string{"contest_id": id})

	case "update":
		if err := a.authorize(guard.ActionEditContest, election); err != nil {
			return err
		}
		contest, err := a.findContest(ctx, election.ID, *contestID)
		if err != nil {
			return err
		}
		input := service.ContestInput{
			Title:         contest.Title,
			Description:   contest.Description,
			MaxSelections: contest.MaxSelections,
			Metadata:      contest.Metadata,
		}
		if *title != "" {
			input.Title = *title
		}
		if *description != "" {
			input.Description = optional(*description)
		}
		if *maxSelections != 0 {
			input.MaxSelections = *maxSelections
		}
		if *metadata != "" {
			input.Metadata = json.RawMessage(*metadata)
		}
		if err := a.contests.Update(ctx, election, contest.ID, input); err != nil {
			return err
		}
		return a.print(map[string]bool{"ok": true})

	default:
		if err := a.authorize(guard.ActionDeleteContest, election); err != nil {
			return err
		}
		contest, err := a.findContest(ctx, election.ID, *contestID)
		if err != nil {
			return err
		}
		if err := a.contests.Delete(ctx, election, contest); err != nil {
			return err
		}
		return a.print(map[string]bool{"ok": true})
	}
}

func (a *app) candidates(ctx context.Context, args []string) error {
	act, rest, err := action(args, "list", "create", "update", "delete")
	if err != nil {
		return err
	}

	fs := a.newFlags("candidates " + act)
	electionID := fs.String("election", "", "election id (for changes)")
	contestID := fs.String("contest", "", "contest id")
	candidateID := fs.String("candidate", "", "candidate id")
	name := fs.String("name", "", "candidate name")
	manifesto := fs.String("manifesto", "", "manifesto")
	page, perPage := pageFlags(fs)
	if err := parseFlags(fs, rest); err != nil {
		return err
	}
	if err := required(flagValue{"contest", *contestID}); err != nil {
		return err
	}

	if act == "list" {
		items, pagination, err := a.contests.Candidates(ctx, *contestID, models.PageRequest{Page: *page, PerPage: *perPage})
		if err != nil {
			return err
		}
		return a.print(map[string]any{"candidates": items, "pagination": pagination})
	}

	election, err := a.loadElection(ctx, *electionID)
	if err != nil {
		return err
	}
	if err := a.authorize(guard.ActionEditCandidate, election); err != nil {
		return err
	}
	input := service.CandidateInput{Name: *name, Manifesto: optional(*manifesto)}

	switch act {
	case "create":
		id, err := a.contests.CreateCandidate(ctx, election, *contestID, input)
		if err != nil {
			return err
		}
		return a.print(map[string]string{"candidate_id": id})
	case "update":
		if err := required(flagValue{"candidate", *candidateID}); err != nil {
			return err
		}
		if err := a.contests.UpdateCandidate(ctx, election, *contestID, *candidateID, input); err != nil {
			return err
		}
	default:
		if err := required(flagValue{"candidate", *candidateID}); err != nil {
			return err
		}
		if err := a.contests.DeleteCandidate(ctx, election, *contestID, *candidateID); err != nil {
			return err
		}
	}
	return a.print(map[string]bool{"ok": true})
}
