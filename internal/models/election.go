package models

import (
	"encoding/json"
	"time"
)

type ElectionStatus string

const (
	ElectionStatusDraft     ElectionStatus = "draft"
	ElectionStatusPublished ElectionStatus = "published"
	ElectionStatusClosed    ElectionStatus = "closed"
)

type Election struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Title          string         `json:"title"`
	Description    *string        `json:"description,omitempty"`
	OpensAt        time.Time      `json:"opens_at"`
	ClosesAt       time.Time      `json:"closes_at"`
	Status         ElectionStatus `json:"status"`
	CandidateCount int            `json:"candidate_count"`
	VoterCount     int            `json:"voter_count"`
}

type Contest struct {
	ID             string          `json:"id"`
	ElectionID     string          `json:"election_id"`
	Title          string          `json:"title"`
	Description    *string         `json:"description,omitempty"`
	MaxSelections  int             `json:"max_selections"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	IsDefault      bool            `json:"is_default"`
	CandidateCount int             `json:"candidate_count"`
	VoterCount     int             `json:"voter_count"`
}

type Candidate struct {
	ID        string  `json:"id"`
	ContestID string  `json:"contest_id,omitempty"`
	Name      string  `json:"name"`
	Manifesto *string `json:"manifesto,omitempty"`
}

type VoterRollEntry struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}
