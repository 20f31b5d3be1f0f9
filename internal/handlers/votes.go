package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meowecho-tech/vote/internal/models"
)

func (h HandlerSet) Ballot(c *gin.Context) {
	ballot, err := h.store.Ballot(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, ballot)
}

type castVoteRequest struct {
	IdempotencyKey string             `json:"idempotency_key" binding:"required"`
	Selections     []models.Selection `json:"selections"`
}

// CastVote answers 201 both for a new vote and for a replayed idempotency key;
// the receipt is the same in both cases.
func (h HandlerSet) CastVote(c *gin.Context) {
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user := currentUser(c)
	receipt, created, err := h.store.CastVote(c.Param("id"), user.ID, models.CastVoteRequest{
		IdempotencyKey: req.IdempotencyKey,
		Selections:     req.Selections,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if !created {
		h.log.Debug().Str("receipt_id", receipt.ReceiptID).Msg("vote replayed")
	}
	respond(c, http.StatusCreated, receipt)
}

func (h HandlerSet) Votable(c *gin.Context) {
	user := currentUser(c)
	respond(c, http.StatusOK, gin.H{"contests": h.store.Votable(user.ID)})
}
