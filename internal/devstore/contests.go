package devstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

// ListContests returns the default contest first, then the rest in creation
// order.
func (s *Store) ListContests(electionID string) ([]models.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.elections[electionID]; !ok {
		return nil, ErrElectionNotFound
	}
	out := []models.Contest{}
	for _, id := range s.contestOrder {
		contest := s.contests[id]
		if contest.ElectionID == electionID {
			out = append(out, s.contestView(contest))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsDefault && !out[j].IsDefault
	})
	return out, nil
}

func (s *Store) GetContest(id string) (models.Contest, models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contest, election, err := s.contestElection(id)
	if err != nil {
		return models.Contest{}, models.Election{}, err
	}
	return s.contestView(contest), *election, nil
}

type ContestDraft struct {
	Title         string
	Description   *string
	MaxSelections int
	Metadata      json.RawMessage
}

func (s *Store) CreateContest(electionID string, draft ContestDraft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	election, ok := s.elections[electionID]
	if !ok {
		return "", ErrElectionNotFound
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return "", err
	}
	contest := &models.Contest{
		ID:            ids.New(),
		ElectionID:    electionID,
		Title:         draft.Title,
		Description:   draft.Description,
		MaxSelections: draft.MaxSelections,
		Metadata:      draft.Metadata,
	}
	s.contests[contest.ID] = contest
	s.contestOrder = append(s.contestOrder, contest.ID)
	return contest.ID, nil
}

func (s *Store) UpdateContest(id string, draft ContestDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contest, election, err := s.contestElection(id)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	contest.Title = draft.Title
	contest.Description = draft.Description
	contest.MaxSelections = draft.MaxSelections
	contest.Metadata = draft.Metadata
	return nil
}

// DeleteContest removes a non-default contest of a draft election with its
// candidates and roll.
func (s *Store) DeleteContest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contest, election, err := s.contestElection(id)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureContestDeletable(election.Status, *contest); err != nil {
		return err
	}

	delete(s.contests, id)
	s.contestOrder = without(s.contestOrder, id)
	for candID, cand := range s.candidates {
		if cand.ContestID == id {
			delete(s.candidates, candID)
			s.candOrder = without(s.candOrder, candID)
		}
	}
	delete(s.rolls, id)
	return nil
}

func without(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// EnsureContestEditable reports lifecycle.ErrNotEditable unless the contest's
// election is a draft.
func (s *Store) EnsureContestEditable(contestID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return err
	}
	return lifecycle.EnsureEditable(election.Status)
}

func (s *Store) ListCandidates(contestID string, req models.PageRequest) ([]models.Candidate, models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.contests[contestID]; !ok {
		return nil, models.Page{}, ErrContestNotFound
	}
	all := s.contestCandidates(contestID)
	items, page := paginate(all, req, models.MaxPerPage)
	return items, page, nil
}

func (s *Store) contestCandidates(contestID string) []models.Candidate {
	out := []models.Candidate{}
	for _, id := range s.candOrder {
		if cand := s.candidates[id]; cand.ContestID == contestID {
			out = append(out, *cand)
		}
	}
	return out
}

func (s *Store) CreateCandidate(contestID, name string, manifesto *string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return "", err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return "", err
	}
	cand := &models.Candidate{
		ID:        ids.New(),
		ContestID: contestID,
		Name:      strings.TrimSpace(name),
		Manifesto: manifesto,
	}
	s.candidates[cand.ID] = cand
	s.candOrder = append(s.candOrder, cand.ID)
	return cand.ID, nil
}

func (s *Store) UpdateCandidate(contestID, candidateID, name string, manifesto *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	cand, ok := s.candidates[candidateID]
	if !ok || cand.ContestID != contestID {
		return ErrCandidateNotFound
	}
	cand.Name = strings.TrimSpace(name)
	cand.Manifesto = manifesto
	return nil
}

func (s *Store) DeleteCandidate(contestID, candidateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	cand, ok := s.candidates[candidateID]
	if !ok || cand.ContestID != contestID {
		return ErrCandidateNotFound
	}
	delete(s.candidates, candidateID)
	s.candOrder = without(s.candOrder, candidateID)
	return nil
}

// ListVoters returns the roll ordered by email.
func (s *Store) ListVoters(contestID string, req models.PageRequest) ([]models.VoterRollEntry, models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.contests[contestID]; !ok {
		return nil, models.Page{}, ErrContestNotFound
	}
	all := make([]models.VoterRollEntry, 0, len(s.rolls[contestID]))
	for _, entry := range s.rolls[contestID] {
		user, ok := s.users[entry.userID]
		if !ok {
			continue
		}
		all = append(all, models.VoterRollEntry{UserID: user.ID, Email: user.Email, FullName: user.FullName})
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Email) < strings.ToLower(all[j].Email)
	})
	items, page := paginate(all, req, models.MaxPerPage)
	return items, page, nil
}

func (s *Store) AddVoter(contestID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	if s.onRoll(contestID, userID) {
		return ErrAlreadyOnRoll
	}
	s.rolls[contestID] = append(s.rolls[contestID], rollEntry{userID: userID, addedAt: s.now().UTC()})
	return nil
}

func (s *Store) RemoveVoter(contestID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return err
	}
	roll := s.rolls[contestID]
	for i, entry := range roll {
		if entry.userID == userID {
			s.rolls[contestID] = append(roll[:i], roll[i+1:]...)
			return nil
		}
	}
	return ErrVoterNotFound
}

// Contains and Insert make the store a voterroll.Roll.
func (s *Store) Contains(_ context.Context, contestID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onRoll(contestID, userID), nil
}

// Insert re-checks the draft gate under the write lock; a publish may have
// landed since the caller's own check.
func (s *Store) Insert(_ context.Context, contestID string, userIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, election, err := s.contestElection(contestID)
	if err != nil {
		return 0, err
	}
	if err := lifecycle.EnsureEditable(election.Status); err != nil {
		return 0, err
	}
	now := s.now().UTC()
	inserted := 0
	for _, userID := range userIDs {
		if s.onRoll(contestID, userID) {
			continue
		}
		s.rolls[contestID] = append(s.rolls[contestID], rollEntry{userID: userID, addedAt: now})
		inserted++
	}
	return inserted, nil
}
