package service

import (
	"context"
	"net/http"

	"github.com/meowecho-tech/vote/internal/models"
)

// BallotService is the voter side of the API. It satisfies ballot.Caster.
type BallotService struct {
	api API
}

func NewBallotService(api API) *BallotService {
	return &BallotService{api: api}
}

func (s *BallotService) Ballot(ctx context.Context, contestID string) (models.Ballot, error) {
	if err := requireID("contest", contestID); err != nil {
		return models.Ballot{}, err
	}
	var out models.Ballot
	if err := s.api.Do(ctx, http.MethodGet, contestPath(contestID)+"/ballot", nil, &out); err != nil {
		return models.Ballot{}, err
	}
	if out.ContestID == "" {
		out.ContestID = contestID
	}
	return out, nil
}

func (s *BallotService) CastVote(ctx context.Context, contestID string, req models.CastVoteRequest) (models.VoteReceipt, error) {
	var out models.VoteReceipt
	if err := s.api.Do(ctx, http.MethodPost, contestPath(contestID)+"/vote", req, &out); err != nil {
		return models.VoteReceipt{}, err
	}
	return out, nil
}

func (s *BallotService) Votable(ctx context.Context) ([]models.VotableContest, error) {
	var out struct {
		Contests []models.VotableContest `json:"contests"`
	}
	if err := s.api.Do(ctx, http.MethodGet, "/me/contests/votable", nil, &out); err != nil {
		return nil, err
	}
	return out.Contests, nil
}
