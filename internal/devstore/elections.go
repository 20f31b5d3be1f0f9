package devstore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

func (s *Store) ListOrganizations() []models.Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Organization, len(s.orgs))
	copy(out, s.orgs)
	return out
}

func (s *Store) CreateOrganization(name string) models.Organization {
	org := models.Organization{ID: ids.New(), Name: strings.TrimSpace(name)}
	s.mu.Lock()
	s.orgs = append(s.orgs, org)
	s.mu.Unlock()
	return org
}

func (s *Store) hasOrganization(id string) bool {
	for _, org := range s.orgs {
		if org.ID == id {
			return true
		}
	}
	return false
}

type ElectionDraft struct {
	OrganizationID string
	Title          string
	Description    *string
	OpensAt        time.Time
	ClosesAt       time.Time
}

// CreateElection stores a draft election together with its default contest.
func (s *Store) CreateElection(draft ElectionDraft) (string, error) {
	if err := lifecycle.ValidateWindow(draft.OpensAt, draft.ClosesAt); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasOrganization(draft.OrganizationID) {
		return "", ErrOrganizationMissing
	}

	election := &models.Election{
		ID:             ids.New(),
		OrganizationID: draft.OrganizationID,
		Title:          draft.Title,
		Description:    draft.Description,
		OpensAt:        draft.OpensAt.UTC(),
		ClosesAt:       draft.ClosesAt.UTC(),
		Status:         models.ElectionStatusDraft,
	}
	s.elections[election.ID] = election
	s.electionOrder = append(s.electionOrder, election.ID)

	contest := &models.Contest{
		ID:            ids.New(),
		ElectionID:    election.ID,
		Title:         defaultContestTitle,
		MaxSelections: 1,
		Metadata:      json.RawMessage(`{}`),
		IsDefault:     true,
	}
	s.contests[contest.ID] = contest
	s.contestOrder = append(s.contestOrder, contest.ID)

	s.log.Debug().Str("election_id", election.ID).Str("contest_id", contest.ID).Msg("election created")
	return election.ID, nil
}

// ListElections returns elections newest first.
func (s *Store) ListElections(req models.PageRequest) ([]models.Election, models.Page) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.Election, 0, len(s.electionOrder))
	for i := len(s.electionOrder) - 1; i >= 0; i-- {
		all = append(all, s.electionView(s.elections[s.electionOrder[i]]))
	}
	return paginate(all, req, models.MaxPerPage)
}

func (s *Store) GetElection(id string) (models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[id]
	if !ok {
		return models.Election{}, ErrElectionNotFound
	}
	return s.electionView(election), nil
}

// UpdateElection edits a draft election. The error for a non-draft election
// is lifecycle.ErrNotEditable.
func (s *Store) UpdateElection(id string, draft ElectionDraft) error {
	if err := lifecycle.ValidateWindow(draft.OpensAt, draft.ClosesAt); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return ErrElectionNotFound
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	election.Title = draft.Title
	election.Description = draft.Description
	election.OpensAt = draft.OpensAt.UTC()
	election.ClosesAt = draft.ClosesAt.UTC()
	return nil
}

func (s *Store) PublishElection(id string) (models.ElectionStatus, error) {
	return s.transition(id, lifecycle.Publish)
}

func (s *Store) CloseElection(id string) (models.ElectionStatus, error) {
	return s.transition(id, lifecycle.Close)
}

func (s *Store) transition(id string, step func(models.Election) (models.Election, error)) (models.ElectionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[id]
	if !ok {
		return "", ErrElectionNotFound
	}
	next, err := step(*election)
	if err != nil {
		return election.Status, err
	}
	election.Status = next.Status
	s.log.Info().Str("election_id", id).Str("status", string(next.Status)).Msg("election status changed")
	return next.Status, nil
}

// ElectionResults sums every contest of a closed election.
func (s *Store) ElectionResults(id string) (models.ElectionResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[id]
	if !ok {
		return models.ElectionResults{}, ErrElectionNotFound
	}
	if err := lifecycle.EnsureResultsReadable(election.Status); err != nil {
		return models.ElectionResults{}, err
	}

	var results []models.ContestResult
	for _, contestID := range s.contestOrder {
		if s.contests[contestID].ElectionID != id {
			continue
		}
		results = append(results, s.tally(contestID)...)
	}
	sortResults(results)
	if results == nil {
		results = []models.ContestResult{}
	}
	return models.ElectionResults{ElectionID: id, Results: results}, nil
}
