package models

import "time"

// Ballot is what a voter may choose from in one contest.
type Ballot struct {
	ContestID     string      `json:"contest_id"`
	ElectionID    string      `json:"election_id,omitempty"`
	ElectionTitle string      `json:"election_title"`
	ContestTitle  string      `json:"contest_title"`
	MaxSelections int         `json:"max_selections"`
	Candidates    []Candidate `json:"candidates"`
}

type Selection struct {
	CandidateID string `json:"candidate_id"`
}

type CastVoteRequest struct {
	IdempotencyKey string      `json:"idempotency_key"`
	Selections     []Selection `json:"selections"`
}

type VoteReceipt struct {
	ReceiptID   string    `json:"receipt_id"`
	ContestID   string    `json:"contest_id,omitempty"`
	ElectionID  string    `json:"election_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type ContestResult struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Total       int64  `json:"total"`
}

// VotableContest is a contest the current voter is on the roll for.
type VotableContest struct {
	ContestID     string         `json:"contest_id"`
	ContestTitle  string         `json:"contest_title"`
	ElectionID    string         `json:"election_id"`
	ElectionTitle string         `json:"election_title"`
	Status        ElectionStatus `json:"status"`
	OpensAt       time.Time      `json:"opens_at"`
	ClosesAt      time.Time      `json:"closes_at"`
	HasVoted      bool           `json:"has_voted"`
	CanVoteNow    bool           `json:"can_vote_now"`
}

// ReceiptRecord is a receipt as kept in the local ledger, with the attempt
// that produced it.
type ReceiptRecord struct {
	ReceiptID      string    `json:"receipt_id"`
	ContestID      string    `json:"contest_id"`
	ElectionID     string    `json:"election_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	CandidateIDs   []string  `json:"candidate_ids"`
	SubmittedAt    time.Time `json:"submitted_at"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// PendingVote is a submission whose answer never arrived. Sending the same
// selections again reuses its key.
type PendingVote struct {
	ContestID      string    `json:"contest_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	CandidateIDs   []string  `json:"candidate_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContestResults struct {
	ContestID     string          `json:"contest_id"`
	ContestTitle  string          `json:"contest_title"`
	ElectionID    string          `json:"election_id"`
	ElectionTitle string          `json:"election_title"`
	Results       []ContestResult `json:"results"`
}

type ElectionResults struct {
	ElectionID string          `json:"election_id"`
	Results    []ContestResult `json:"results"`
}
