package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

var ErrInvalidMetadata = apperr.New(apperr.KindValidation, "invalid_metadata", "metadata must be a JSON object")

// ContestService manages contests and everything hanging off them:
// candidates, voter rolls and results. Every mutation first checks the owning
// election snapshot so a non-draft election is refused before dispatch.
type ContestService struct {
	api     API
	archive ImportArchive
	log     zerolog.Logger
}

func NewContestService(api API, archive ImportArchive, log zerolog.Logger) *ContestService {
	return &ContestService{api: api, archive: archive, log: log}
}

func contestPath(contestID string) string {
	return "/contests/" + escape(contestID)
}

func (s *ContestService) List(ctx context.Context, electionID string) ([]models.Contest, error) {
	if err := requireID("election", electionID); err != nil {
		return nil, err
	}
	var out struct {
		Contests []models.Contest `json:"contests"`
	}
	if err := s.api.Do(ctx, http.MethodGet, "/elections/"+escape(electionID)+"/contests", nil, &out); err != nil {
		return nil, err
	}
	return out.Contests, nil
}

type ContestInput struct {
	Title         string          `json:"title"`
	Description   *string         `json:"description,omitempty"`
	MaxSelections int             `json:"max_selections"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

func (in *ContestInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: contest title is required", ErrInvalidInput)
	}
	if in.MaxSelections == 0 {
		in.MaxSelections = 1
	}
	if in.MaxSelections < 1 {
		return fmt.Errorf("%w: max_selections must be >= 1", ErrInvalidInput)
	}
	meta, err := NormalizeMetadata(in.Metadata)
	if err != nil {
		return err
	}
	in.Metadata = meta
	return nil
}

// NormalizeMetadata accepts empty input as {} and otherwise requires a JSON
// object.
func NormalizeMetadata(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return nil, ErrInvalidMetadata
	}
	return json.RawMessage(trimmed), nil
}

func (s *ContestService) Create(ctx context.Context, election models.Election, input ContestInput) (string, error) {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return "", err
	}
	if err := input.normalize(); err != nil {
		return "", err
	}
	var out struct {
		ContestID string `json:"contest_id"`
	}
	if err := s.api.Do(ctx, http.MethodPost, "/elections/"+escape(election.ID)+"/contests", input, &out); err != nil {
		return "", err
	}
	return out.ContestID, nil
}

func (s *ContestService) Update(ctx context.Context, election models.Election, contestID string, input ContestInput) error {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	if err := input.normalize(); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodPatch, contestPath(contestID), input, &okResponse{})
}

func (s *ContestService) Delete(ctx context.Context, election models.Election, contest models.Contest) error {
	if err := lifecycle.EnsureContestDeletable(election.Status, contest); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodDelete, contestPath(contest.ID), nil, &okResponse{})
}

func (s *ContestService) Candidates(ctx context.Context, contestID string, req models.PageRequest) ([]models.Candidate, models.Page, error) {
	var out struct {
		Candidates []models.Candidate `json:"candidates"`
		Pagination models.Page        `json:"pagination"`
	}
	if err := s.api.Do(ctx, http.MethodGet, pagePath(contestPath(contestID)+"/candidates", req), nil, &out); err != nil {
		return nil, models.Page{}, err
	}
	return out.Candidates, out.Pagination, nil
}

type CandidateInput struct {
	Name      string  `json:"name"`
	Manifesto *string `json:"manifesto,omitempty"`
}

func (in *CandidateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: candidate name is required", ErrInvalidInput)
	}
	return nil
}

func (s *ContestService) CreateCandidate(ctx context.Context, election models.Election, contestID string, input CandidateInput) (string, error) {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return "", err
	}
	if err := input.normalize(); err != nil {
		return "", err
	}
	var out struct {
		CandidateID string `json:"candidate_id"`
	}
	if err := s.api.Do(ctx, http.MethodPost, contestPath(contestID)+"/candidates", input, &out); err != nil {
		return "", err
	}
	return out.CandidateID, nil
}

func (s *ContestService) UpdateCandidate(ctx context.Context, election models.Election, contestID, candidateID string, input CandidateInput) error {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	if err := input.normalize(); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodPatch, contestPath(contestID)+"/candidates/"+escape(candidateID), input, &okResponse{})
}

func (s *ContestService) DeleteCandidate(ctx context.Context, election models.Election, contestID, candidateID string) error {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodDelete, contestPath(contestID)+"/candidates/"+escape(candidateID), nil, &okResponse{})
}

func (s *ContestService) Voters(ctx context.Context, contestID string, req models.PageRequest) ([]models.VoterRollEntry, models.Page, error) {
	var out struct {
		Voters     []models.VoterRollEntry `json:"voters"`
		Pagination models.Page             `json:"pagination"`
	}
	if err := s.api.Do(ctx, http.MethodGet, pagePath(contestPath(contestID)+"/voter-rolls", req), nil, &out); err != nil {
		return nil, models.Page{}, err
	}
	return out.Voters, out.Pagination, nil
}

func (s *ContestService) AddVoter(ctx context.Context, election models.Election, contestID, userID string) error {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	if err := requireID("user", userID); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodPost, contestPath(contestID)+"/voter-rolls", map[string]string{"user_id": userID}, &okResponse{})
}

func (s *ContestService) RemoveVoter(ctx context.Context, election models.Election, contestID, userID string) error {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodDelete, contestPath(contestID)+"/voter-rolls/"+escape(userID), nil, &okResponse{})
}

type importRequest struct {
	Format string `json:"format"`
	Data   string `json:"data"`
	DryRun bool   `json:"dry_run"`
}

// ImportVoters parses the payload locally so malformed input never reaches
// the network, converts spreadsheets to the JSON form, and sends it. Issue
// rows in the returned report refer to the original payload rows.
func (s *ContestService) ImportVoters(ctx context.Context, election models.Election, contestID string, format voterroll.Format, payload []byte, dryRun bool) (models.ImportReport, error) {
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return models.ImportReport{}, err
	}
	rows, err := voterroll.Parse(format, payload)
	if err != nil {
		return models.ImportReport{}, err
	}

	req := importRequest{Format: string(format), Data: string(payload), DryRun: dryRun}
	remap := false
	if format == voterroll.FormatXLSX {
		encoded, err := voterroll.EncodeJSON(rows)
		if err != nil {
			return models.ImportReport{}, err
		}
		req.Format = string(voterroll.FormatJSON)
		req.Data = encoded
		remap = true
	}

	var report models.ImportReport
	if err := s.api.Do(ctx, http.MethodPost, contestPath(contestID)+"/voter-rolls/import", req, &report); err != nil {
		return models.ImportReport{}, err
	}
	if remap {
		voterroll.RemapRows(report.Issues, rows)
	}

	if s.archive != nil && !dryRun {
		if err := s.archive.ArchiveImport(ctx, ArchivedImport{
			ContestID: contestID,
			Format:    format,
			Payload:   payload,
			Report:    report,
		}); err != nil {
			s.log.Warn().Err(err).Str("contest_id", contestID).Msg("archive voter roll import failed")
		}
	}

	s.log.Info().
		Str("contest_id", contestID).
		Bool("dry_run", report.DryRun).
		Int("total_rows", report.TotalRows).
		Int("valid_rows", report.ValidRows).
		Int("inserted_rows", report.InsertedRows).
		Msg("voter roll import")
	return report, nil
}

func (s *ContestService) Results(ctx context.Context, contestID string) (models.ContestResults, error) {
	var out models.ContestResults
	if err := s.api.Do(ctx, http.MethodGet, contestPath(contestID)+"/results", nil, &out); err != nil {
		return models.ContestResults{}, err
	}
	return out, nil
}
