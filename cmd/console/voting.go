package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meowecho-tech/vote/internal/ballot"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/receipts"
)

func (a *app) votable(ctx context.Context, _ []string) error {
	if err := a.enter("/voter"); err != nil {
		return err
	}
	contests, err := a.ballots.Votable(ctx)
	if err != nil {
		return err
	}
	return a.print(contests)
}

func (a *app) ballot(ctx context.Context, args []string) error {
	fs := a.newFlags("ballot")
	contestID := fs.String("contest", "", "contest id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(flagValue{"contest", *contestID}); err != nil {
		return err
	}
	if err := a.enter("/voter/contests/" + *contestID); err != nil {
		return err
	}
	b, err := a.ballots.Ballot(ctx, *contestID)
	if err != nil {
		return err
	}
	return a.print(b)
}

type voteView struct {
	Receipt        *models.VoteReceipt `json:"receipt,omitempty"`
	IdempotencyKey string              `json:"idempotency_key"`
	Selections     []string            `json:"selections"`
	LedgerError    string              `json:"ledger_error,omitempty"`
}

func (a *app) vote(ctx context.Context, args []string) error {
	fs := a.newFlags("vote")
	contestID := fs.String("contest", "", "contest id")
	candidates := fs.String("candidates", "", "comma-separated candidate ids")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(flagValue{"contest", *contestID}, flagValue{"candidates", *candidates}); err != nil {
		return err
	}
	if err := a.enter("/voter/contests/" + *contestID); err != nil {
		return err
	}

	b, err := a.ballots.Ballot(ctx, *contestID)
	if err != nil {
		return err
	}
	ledger, err := a.receiptLedger()
	if err != nil {
		return err
	}

	if pending, found, err := ledger.Pending(ctx, *contestID); err == nil && found {
		fmt.Fprintf(a.errw, "unanswered vote for this contest (key %s); the same selections resend it\n", pending.IdempotencyKey)
	}

	form := ballot.NewForm(b, ballot.NewSubmitter(a.ballots, ledger, a.log).WithPending(ledger))
	for _, id := range strings.Split(*candidates, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := form.Select(id); err != nil {
			return fmt.Errorf("select %s: %w", id, err)
		}
	}

	out := form.Submit(ctx)
	view := voteView{
		Receipt:        out.Receipt,
		IdempotencyKey: out.Attempt.IdempotencyKey,
		Selections:     form.Selection().IDs(),
	}
	if !out.Succeeded() {
		if out.Resendable {
			fmt.Fprintf(a.errw, "no answer for key %s; the vote may have been recorded. Run the same vote again to resend it\n", out.Attempt.IdempotencyKey)
		}
		return out.Err
	}
	if out.LedgerErr != nil {
		view.LedgerError = out.LedgerErr.Error()
	}
	return a.print(view)
}

func (a *app) results(ctx context.Context, args []string) error {
	fs := a.newFlags("results")
	contestID := fs.String("contest", "", "contest id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(flagValue{"contest", *contestID}); err != nil {
		return err
	}
	results, err := a.contests.Results(ctx, *contestID)
	if err != nil {
		return err
	}
	return a.print(results)
}

func (a *app) receipts(ctx context.Context, args []string) error {
	fs := a.newFlags("receipts")
	contestID := fs.String("contest", "", "only receipts for this contest")
	receiptID := fs.String("receipt", "", "show one receipt")
	pending := fs.Bool("pending", false, "list votes still waiting for an answer")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ledger, err := a.receiptLedger()
	if err != nil {
		return err
	}
	if *pending {
		votes, err := ledger.ListPending(ctx)
		if err != nil {
			return err
		}
		if votes == nil {
			votes = []models.PendingVote{}
		}
		return a.print(votes)
	}
	if *receiptID != "" {
		rec, err := ledger.Get(ctx, *receiptID)
		if errors.Is(err, receipts.ErrNotFound) {
			return fmt.Errorf("%w: no receipt %s in %s", errUsage, *receiptID, a.cfg.Receipts.Path)
		}
		if err != nil {
			return err
		}
		return a.print(rec)
	}
	records, err := ledger.List(ctx, *contestID)
	if err != nil {
		return err
	}
	if records == nil {
		records = []models.ReceiptRecord{}
	}
	return a.print(records)
}
