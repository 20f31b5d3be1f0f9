// Package devstore is the in-memory backing store of the contract server. It
// enforces the same lifecycle and import rules as the console, using the
// lifecycle and voterroll packages directly.
package devstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

var (
	ErrEmailTaken          = apperr.New(apperr.KindConflict, "email_taken", "email already exists")
	ErrInvalidCredentials  = apperr.New(apperr.KindAuthentication, "invalid_credentials", "invalid credentials")
	ErrInvalidOTP          = apperr.New(apperr.KindAuthentication, "invalid_otp", "invalid or expired code")
	ErrInvalidRefresh      = apperr.New(apperr.KindAuthentication, "invalid_refresh_token", "invalid refresh token")
	ErrUserNotFound        = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
	ErrOrganizationMissing = apperr.New(apperr.KindNotFound, "organization_not_found", "organization not found")
	ErrElectionNotFound    = apperr.New(apperr.KindNotFound, "election_not_found", "election not found")
	ErrContestNotFound     = apperr.New(apperr.KindNotFound, "contest_not_found", "contest not found")
	ErrCandidateNotFound   = apperr.New(apperr.KindNotFound, "candidate_not_found", "candidate not found")
	ErrVoterNotFound       = apperr.New(apperr.KindNotFound, "voter_not_found", "voter not found in roll")
	ErrAlreadyOnRoll       = apperr.New(apperr.KindConflict, "already_in_roll", "voter already in roll")
	ErrAlreadyVoted        = apperr.New(apperr.KindConflict, "already_voted", "voter has already submitted vote")
	ErrEmptySelections     = apperr.New(apperr.KindValidation, "empty_selection", "selections cannot be empty")
	ErrTooManySelections   = apperr.New(apperr.KindValidation, "selection_limit", "too many selections for this contest")
	ErrBadSelection        = apperr.New(apperr.KindValidation, "invalid_selection", "selection is not a candidate of this contest")
	ErrDuplicateSelection  = apperr.New(apperr.KindValidation, "duplicate_selection", "candidate selected more than once")
	ErrMissingKey          = apperr.New(apperr.KindValidation, "missing_idempotency_key", "idempotency_key is required")
)

const (
	defaultContestTitle = "General"
	otpTTL              = 10 * time.Minute
	otpMaxAttempts      = 5
)

type otpCode struct {
	code      string
	expiresAt time.Time
	attempts  int
	consumed  bool
}

type refreshRecord struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

type rollEntry struct {
	userID  string
	addedAt time.Time
}

type receipt struct {
	id             string
	contestID      string
	voterID        string
	idempotencyKey string
	submittedAt    time.Time
}

type voterContest struct {
	contestID string
	voterID   string
}

// Store holds every resource behind one lock. It is meant for tests and local
// development, so nothing is persisted.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	log zerolog.Logger

	users         map[string]*models.User
	byEmail       map[string]string
	otps          map[string]*otpCode
	refresh       map[string]*refreshRecord
	orgs          []models.Organization
	elections     map[string]*models.Election
	electionOrder []string
	contests      map[string]*models.Contest
	contestOrder  []string
	candidates    map[string]*models.Candidate
	candOrder     []string
	rolls         map[string][]rollEntry
	receipts      map[string]*receipt
	byVoter       map[voterContest]string
	tallies       map[string]map[string]int64
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		log:        log,
		users:      make(map[string]*models.User),
		byEmail:    make(map[string]string),
		otps:       make(map[string]*otpCode),
		refresh:    make(map[string]*refreshRecord),
		elections:  make(map[string]*models.Election),
		contests:   make(map[string]*models.Contest),
		candidates: make(map[string]*models.Candidate),
		rolls:      make(map[string][]rollEntry),
		receipts:   make(map[string]*receipt),
		byVoter:    make(map[voterContest]string),
		tallies:    make(map[string]map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func paginate[T any](items []T, req models.PageRequest, maxPerPage int) ([]T, models.Page) {
	req = req.Normalize(maxPerPage)
	total := len(items)
	page := models.Page{
		Page:       req.Page,
		PerPage:    req.PerPage,
		Total:      total,
		TotalPages: models.TotalPages(total, req.PerPage),
	}
	start := req.Offset()
	if start >= total {
		return []T{}, page
	}
	end := start + req.PerPage
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, page
}

// contestElection must be called with the lock held.
func (s *Store) contestElection(contestID string) (*models.Contest, *models.Election, error) {
	contest, ok := s.contests[contestID]
	if !ok {
		return nil, nil, ErrContestNotFound
	}
	election, ok := s.elections[contest.ElectionID]
	if !ok {
		return nil, nil, ErrElectionNotFound
	}
	return contest, election, nil
}

func (s *Store) onRoll(contestID, userID string) bool {
	for _, entry := range s.rolls[contestID] {
		if entry.userID == userID {
			return true
		}
	}
	return false
}

func (s *Store) candidateCount(contestID string) int {
	n := 0
	for _, cand := range s.candidates {
		if cand.ContestID == contestID {
			n++
		}
	}
	return n
}

// contestView and electionView copy a stored record and fill in its counts.
func (s *Store) contestView(c *models.Contest) models.Contest {
	out := *c
	out.CandidateCount = s.candidateCount(c.ID)
	out.VoterCount = len(s.rolls[c.ID])
	return out
}

func (s *Store) electionView(e *models.Election) models.Election {
	out := *e
	voters := make(map[string]struct{})
	for _, id := range s.contestOrder {
		contest := s.contests[id]
		if contest.ElectionID != e.ID {
			continue
		}
		out.CandidateCount += s.candidateCount(id)
		for _, entry := range s.rolls[id] {
			voters[entry.userID] = struct{}{}
		}
	}
	out.VoterCount = len(voters)
	return out
}

// sortResults orders by total descending, then by name.
func sortResults(results []models.ContestResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Total != results[j].Total {
			return results[i].Total > results[j].Total
		}
		return results[i].Name < results[j].Name
	})
}
