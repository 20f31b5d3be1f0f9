package ballot

import (
	"context"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

var ErrAlreadySubmitted = apperr.New(apperr.KindConflict, "already_submitted", "this ballot already has a receipt")

// Form binds a loaded ballot to a selection and a submitter. Failed
// submissions leave the selection untouched so it can be corrected and sent
// again. A successful one keeps the receipt and refuses further submits.
type Form struct {
	ballot    models.Ballot
	selection *Selection
	submitter *Submitter
	receipt   *models.VoteReceipt
	last      *Outcome
}

func NewForm(b models.Ballot, submitter *Submitter) *Form {
	return &Form{
		ballot:    b,
		selection: NewSelection(b),
		submitter: submitter,
	}
}

func (f *Form) Ballot() models.Ballot { return f.ballot }

func (f *Form) Selection() *Selection { return f.selection }

func (f *Form) Toggle(candidateID string) error { return f.selection.Toggle(candidateID) }

func (f *Form) Select(candidateID string) error { return f.selection.Select(candidateID) }

func (f *Form) Submit(ctx context.Context) Outcome {
	if f.receipt != nil {
		return Outcome{Err: ErrAlreadySubmitted}
	}
	out := f.submitter.Submit(ctx, f.ballot.ContestID, f.ballot.MaxSelections, f.selection.IDs())
	if out.Succeeded() {
		f.receipt = out.Receipt
	}
	f.last = &out
	return out
}

// Receipt returns the receipt of the successful submission.
func (f *Form) Receipt() (models.VoteReceipt, bool) {
	if f.receipt == nil {
		return models.VoteReceipt{}, false
	}
	return *f.receipt, true
}

// LastOutcome is the result of the most recent Submit, if any.
func (f *Form) LastOutcome() (Outcome, bool) {
	if f.last == nil {
		return Outcome{}, false
	}
	return *f.last, true
}
