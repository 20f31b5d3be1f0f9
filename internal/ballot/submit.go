package ballot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/session"
)

// Caster sends one vote to the API.
type Caster interface {
	CastVote(ctx context.Context, contestID string, req models.CastVoteRequest) (models.VoteReceipt, error)
}

// Ledger keeps receipts after the process exits.
type Ledger interface {
	Record(ctx context.Context, rec models.ReceiptRecord) error
}

// PendingStore keeps unresolved attempts beyond the process, so a later run
// can resend with the same key.
type PendingStore interface {
	SavePending(ctx context.Context, p models.PendingVote) error
	Pending(ctx context.Context, contestID string) (models.PendingVote, bool, error)
	ClearPending(ctx context.Context, contestID string) error
}

// Attempt is one logical submission: a key bound to a selection set.
type Attempt struct {
	ContestID      string
	IdempotencyKey string
	CandidateIDs   []string
}

// Outcome is the tagged result of Submit. Exactly one of Receipt and Err is
// set.
type Outcome struct {
	Receipt *models.VoteReceipt
	Err     error
	Attempt Attempt
	// Resendable is true when the server may have recorded the vote; sending
	// the same selections again reuses the attempt's key.
	Resendable bool
	// LedgerErr is set when the vote succeeded but the local copy of the
	// receipt could not be written.
	LedgerErr error
}

func (o Outcome) Succeeded() bool { return o.Receipt != nil }

// Submitter sends votes with idempotency keys. Every logical attempt gets a
// fresh key. The key is reused only to resend an attempt whose outcome was
// never observed (transport error or 5xx) with unchanged selections. After a
// definitive answer the next attempt is a new one.
type Submitter struct {
	caster Caster
	ledger Ledger
	store  PendingStore
	newKey func() string
	now    func() time.Time
	log    zerolog.Logger

	mu      sync.Mutex
	pending map[string]Attempt
}

func NewSubmitter(caster Caster, ledger Ledger, log zerolog.Logger) *Submitter {
	return &Submitter{
		caster:  caster,
		ledger:  ledger,
		newKey:  ids.NewIdempotencyKey,
		now:     time.Now,
		log:     log,
		pending: make(map[string]Attempt),
	}
}

// WithPending makes unresolved attempts outlive the Submitter.
func (s *Submitter) WithPending(store PendingStore) *Submitter {
	s.store = store
	return s
}

// Submit validates the selection set locally and sends it.
func (s *Submitter) Submit(ctx context.Context, contestID string, maxSelections int, candidateIDs []string) Outcome {
	if err := Validate(maxSelections, candidateIDs); err != nil {
		return Outcome{Err: err}
	}

	attempt := s.attemptFor(ctx, contestID, candidateIDs)
	req := models.CastVoteRequest{
		IdempotencyKey: attempt.IdempotencyKey,
		Selections:     make([]models.Selection, 0, len(candidateIDs)),
	}
	for _, id := range candidateIDs {
		req.Selections = append(req.Selections, models.Selection{CandidateID: id})
	}

	receipt, err := s.caster.CastVote(ctx, contestID, req)
	if err != nil {
		resendable := session.Indeterminate(err)
		if resendable {
			s.hold(ctx, attempt)
		} else {
			s.resolve(ctx, contestID)
		}

		s.log.Warn().
			Err(err).
			Str("contest_id", contestID).
			Bool("resendable", resendable).
			Msg("vote submission failed")
		return Outcome{Err: err, Attempt: attempt, Resendable: resendable}
	}

	s.resolve(ctx, contestID)

	if receipt.ContestID == "" {
		receipt.ContestID = contestID
	}
	out := Outcome{Receipt: &receipt, Attempt: attempt}

	if s.ledger != nil {
		rec := models.ReceiptRecord{
			ReceiptID:      receipt.ReceiptID,
			ContestID:      receipt.ContestID,
			ElectionID:     receipt.ElectionID,
			IdempotencyKey: attempt.IdempotencyKey,
			CandidateIDs:   attempt.CandidateIDs,
			SubmittedAt:    receipt.SubmittedAt,
			RecordedAt:     s.now().UTC(),
		}
		if err := s.ledger.Record(ctx, rec); err != nil {
			s.log.Error().Err(err).Str("receipt_id", receipt.ReceiptID).Msg("record receipt failed")
			out.LedgerErr = err
		}
	}

	s.log.Info().
		Str("contest_id", contestID).
		Str("receipt_id", receipt.ReceiptID).
		Msg("vote submitted")
	return out
}

// Pending returns the unresolved attempt for a contest, if any.
func (s *Submitter) Pending(contestID string) (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[contestID]
	return a, ok
}

func (s *Submitter) attemptFor(ctx context.Context, contestID string, candidateIDs []string) Attempt {
	prev, ok := s.Pending(contestID)
	if !ok && s.store != nil {
		stored, found, err := s.store.Pending(ctx, contestID)
		if err != nil {
			s.log.Warn().Err(err).Str("contest_id", contestID).Msg("load pending vote failed")
		}
		if found {
			prev = Attempt{ContestID: stored.ContestID, IdempotencyKey: stored.IdempotencyKey, CandidateIDs: stored.CandidateIDs}
			ok = true
		}
	}
	if ok && sameSet(prev.CandidateIDs, candidateIDs) {
		return prev
	}

	selected := make([]string, len(candidateIDs))
	copy(selected, candidateIDs)
	return Attempt{
		ContestID:      contestID,
		IdempotencyKey: s.newKey(),
		CandidateIDs:   selected,
	}
}

// hold keeps an attempt whose answer was lost. Store writes ignore the
// caller's cancellation; a timed-out call is the usual reason to get here.
func (s *Submitter) hold(ctx context.Context, attempt Attempt) {
	s.mu.Lock()
	s.pending[attempt.ContestID] = attempt
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	p := models.PendingVote{
		ContestID:      attempt.ContestID,
		IdempotencyKey: attempt.IdempotencyKey,
		CandidateIDs:   attempt.CandidateIDs,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.SavePending(context.WithoutCancel(ctx), p); err != nil {
		s.log.Error().Err(err).Str("contest_id", attempt.ContestID).Msg("save pending vote failed")
	}
}

func (s *Submitter) resolve(ctx context.Context, contestID string) {
	s.mu.Lock()
	delete(s.pending, contestID)
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.ClearPending(context.WithoutCancel(ctx), contestID); err != nil {
		s.log.Warn().Err(err).Str("contest_id", contestID).Msg("clear pending vote failed")
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
