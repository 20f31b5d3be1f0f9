package devstore

import (
	"sort"
	"strings"

	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

func (s *Store) Ballot(contestID string) (models.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contest, election, err := s.contestElection(contestID)
	if err != nil {
		return models.Ballot{}, err
	}
	candidates := s.contestCandidates(contestID)
	sort.SliceStable(candidates, func(i, j int) bool {
		return strings.ToLower(candidates[i].Name) < strings.ToLower(candidates[j].Name)
	})
	return models.Ballot{
		ContestID:     contest.ID,
		ElectionID:    election.ID,
		ElectionTitle: election.Title,
		ContestTitle:  contest.Title,
		MaxSelections: contest.MaxSelections,
		Candidates:    candidates,
	}, nil
}

// CastVote records one ballot per voter and contest. A repeated idempotency
// key returns the receipt it first produced, with created false.
func (s *Store) CastVote(contestID, voterID string, req models.CastVoteRequest) (models.VoteReceipt, bool, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return models.VoteReceipt{}, false, ErrMissingKey
	}
	if len(req.Selections) == 0 {
		return models.VoteReceipt{}, false, ErrEmptySelections
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contest, election, err := s.contestElection(contestID)
	if err != nil {
		return models.VoteReceipt{}, false, err
	}
	now := s.now().UTC()
	who := lifecycle.Eligibility{OnRoll: s.onRoll(contestID, voterID)}
	if err := lifecycle.VoteBlocker(*election, who, now); err != nil {
		return models.VoteReceipt{}, false, err
	}

	vc := voterContest{contestID: contestID, voterID: voterID}
	if existingID, ok := s.byVoter[vc]; ok {
		existing := s.receipts[existingID]
		if existing.idempotencyKey == key {
			return receiptView(existing, election.ID), false, nil
		}
		return models.VoteReceipt{}, false, ErrAlreadyVoted
	}

	if len(req.Selections) > contest.MaxSelections {
		return models.VoteReceipt{}, false, ErrTooManySelections
	}
	seen := make(map[string]struct{}, len(req.Selections))
	for _, sel := range req.Selections {
		cand, ok := s.candidates[sel.CandidateID]
		if !ok || cand.ContestID != contestID {
			return models.VoteReceipt{}, false, ErrBadSelection
		}
		if _, dup := seen[sel.CandidateID]; dup {
			return models.VoteReceipt{}, false, ErrDuplicateSelection
		}
		seen[sel.CandidateID] = struct{}{}
	}

	rec := &receipt{
		id:             ids.New(),
		contestID:      contestID,
		voterID:        voterID,
		idempotencyKey: key,
		submittedAt:    now,
	}
	s.receipts[rec.id] = rec
	s.byVoter[vc] = rec.id

	counts, ok := s.tallies[contestID]
	if !ok {
		counts = make(map[string]int64)
		s.tallies[contestID] = counts
	}
	for candidateID := range seen {
		counts[candidateID]++
	}

	s.log.Info().Str("contest_id", contestID).Str("receipt_id", rec.id).Msg("vote recorded")
	return receiptView(rec, election.ID), true, nil
}

func receiptView(rec *receipt, electionID string) models.VoteReceipt {
	return models.VoteReceipt{
		ReceiptID:   rec.id,
		ContestID:   rec.contestID,
		ElectionID:  electionID,
		SubmittedAt: rec.submittedAt,
	}
}

// Votable lists the contests the user is on the roll for, skipping draft
// elections.
func (s *Store) Votable(userID string) []models.VotableContest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := []models.VotableContest{}
	for _, contestID := range s.contestOrder {
		if !s.onRoll(contestID, userID) {
			continue
		}
		contest, election, err := s.contestElection(contestID)
		if err != nil || election.Status == models.ElectionStatusDraft {
			continue
		}
		_, voted := s.byVoter[voterContest{contestID: contestID, voterID: userID}]
		who := lifecycle.Eligibility{OnRoll: true, HasVoted: voted}
		out = append(out, models.VotableContest{
			ContestID:     contest.ID,
			ContestTitle:  contest.Title,
			ElectionID:    election.ID,
			ElectionTitle: election.Title,
			Status:        election.Status,
			OpensAt:       election.OpensAt,
			ClosesAt:      election.ClosesAt,
			HasVoted:      voted,
			CanVoteNow:    lifecycle.CanVoteNow(*election, who, now),
		})
	}
	return out
}

func (s *Store) ContestResults(contestID string) (models.ContestResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contest, election, err := s.contestElection(contestID)
	if err != nil {
		return models.ContestResults{}, err
	}
	if err := lifecycle.EnsureResultsReadable(election.Status); err != nil {
		return models.ContestResults{}, err
	}
	results := s.tally(contestID)
	sortResults(results)
	return models.ContestResults{
		ContestID:     contest.ID,
		ContestTitle:  contest.Title,
		ElectionID:    election.ID,
		ElectionTitle: election.Title,
		Results:       results,
	}, nil
}

// tally lists candidates that received at least one vote.
func (s *Store) tally(contestID string) []models.ContestResult {
	out := []models.ContestResult{}
	for candidateID, total := range s.tallies[contestID] {
		name := ""
		if cand, ok := s.candidates[candidateID]; ok {
			name = cand.Name
		}
		out = append(out, models.ContestResult{CandidateID: candidateID, Name: name, Total: total})
	}
	return out
}
