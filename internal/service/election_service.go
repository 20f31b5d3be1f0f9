package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

type ElectionService struct {
	api API
	log zerolog.Logger
}

func NewElectionService(api API, log zerolog.Logger) *ElectionService {
	return &ElectionService{api: api, log: log}
}

func (s *ElectionService) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var out struct {
		Organizations []models.Organization `json:"organizations"`
	}
	if err := s.api.Do(ctx, http.MethodGet, "/organizations", nil, &out); err != nil {
		return nil, err
	}
	return out.Organizations, nil
}

func (s *ElectionService) CreateOrganization(ctx context.Context, name string) (models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	var out struct {
		OrganizationID string `json:"organization_id"`
		Name           string `json:"name"`
	}
	if err := s.api.Do(ctx, http.MethodPost, "/organizations", map[string]string{"name": name}, &out); err != nil {
		return models.Organization{}, err
	}
	return models.Organization{ID: out.OrganizationID, Name: out.Name}, nil
}

func (s *ElectionService) List(ctx context.Context, req models.PageRequest) ([]models.Election, models.Page, error) {
	var out struct {
		Elections  []models.Election `json:"elections"`
		Pagination models.Page       `json:"pagination"`
	}
	if err := s.api.Do(ctx, http.MethodGet, pagePath("/elections", req), nil, &out); err != nil {
		return nil, models.Page{}, err
	}
	return out.Elections, out.Pagination, nil
}

type ElectionInput struct {
	OrganizationID string    `json:"organization_id,omitempty"`
	Title          string    `json:"title"`
	Description    *string   `json:"description,omitempty"`
	OpensAt        time.Time `json:"opens_at"`
	ClosesAt       time.Time `json:"closes_at"`
}

func (in *ElectionInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: election title is required", ErrInvalidInput)
	}
	return lifecycle.ValidateWindow(in.OpensAt, in.ClosesAt)
}

func (s *ElectionService) Create(ctx context.Context, input ElectionInput) (string, error) {
	if err := requireID("organization", input.OrganizationID); err != nil {
		return "", err
	}
	if err := input.normalize(); err != nil {
		return "", err
	}
	var out struct {
		ElectionID string `json:"election_id"`
	}
	if err := s.api.Do(ctx, http.MethodPost, "/elections", input, &out); err != nil {
		return "", err
	}
	s.log.Info().Str("election_id", out.ElectionID).Msg("election created")
	return out.ElectionID, nil
}

func (s *ElectionService) Get(ctx context.Context, electionID string) (models.Election, error) {
	if err := requireID("election", electionID); err != nil {
		return models.Election{}, err
	}
	var out models.Election
	if err := s.api.Do(ctx, http.MethodGet, "/elections/"+escape(electionID), nil, &out); err != nil {
		return models.Election{}, err
	}
	return out, nil
}

// Update edits a draft election. The draft check runs against the given
// snapshot before anything is sent; the server checks again.
func (s *ElectionService) Update(ctx context.Context, election models.Election, input ElectionInput) error {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	if err := input.normalize(); err != nil {
		return err
	}
	input.OrganizationID = ""
	return s.api.Do(ctx, http.MethodPatch, "/elections/"+escape(election.ID), input, &okResponse{})
}

type statusResponse struct {
	Status models.ElectionStatus `json:"status"`
}

func (s *ElectionService) Publish(ctx context.Context, election models.Election) (models.Election, error) {
	next, err := lifecycle.Publish(election)
	if err != nil {
		return election, err
	}
	var out statusResponse
	if err := s.api.Do(ctx, http.MethodPatch, "/elections/"+escape(election.ID)+"/publish", nil, &out); err != nil {
		return election, err
	}
	s.log.Info().Str("election_id", election.ID).Msg("election published")
	return next, nil
}

func (s *ElectionService) Close(ctx context.Context, election models.Election) (models.Election, error) {
	next, err := lifecycle.Close(election)
	if err != nil {
		return election, err
	}
	var out statusResponse
	if err := s.api.Do(ctx, http.MethodPatch, "/elections/"+escape(election.ID)+"/close", nil, &out); err != nil {
		return election, err
	}
	s.log.Info().Str("election_id", election.ID).Msg("election closed")
	return next, nil
}

// CloseByID loads the election and closes it when it is still published.
// Already closed elections are left alone.
func (s *ElectionService) CloseByID(ctx context.Context, electionID string) (models.Election, error) {
	election, err := s.Get(ctx, electionID)
	if err != nil {
		return models.Election{}, err
	}
	if election.Status == models.ElectionStatusClosed {
		return election, nil
	}
	return s.Close(ctx, election)
}

func (s *ElectionService) Results(ctx context.Context, election models.Election) (models.ElectionResults, error) {
	if err := lifecycle.EnsureResultsReadable(election.Status); err != nil {
		return models.ElectionResults{}, err
	}
	var out models.ElectionResults
	if err := s.api.Do(ctx, http.MethodGet, "/elections/"+escape(election.ID)+"/results", nil, &out); err != nil {
		return models.ElectionResults{}, err
	}
	return out, nil
}

// ListDue pages through every election and returns the published ones whose
// window has ended.
func (s *ElectionService) ListDue(ctx context.Context, now time.Time) ([]models.Election, error) {
	var due []models.Election
	req := models.PageRequest{Page: 1, PerPage: models.MaxPerPage}
	for {
		items, page, err := s.List(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, e := range items {
			if lifecycle.Due(e, now) {
				due = append(due, e)
			}
		}
		if page.TotalPages == 0 || req.Page >= page.TotalPages || len(items) == 0 {
			return due, nil
		}
		req.Page++
	}
}
