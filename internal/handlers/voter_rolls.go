package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meowecho-tech/vote/internal/voterroll"
)

func (h HandlerSet) ListVoters(c *gin.Context) {
	voters, page, err := h.store.ListVoters(c.Param("id"), pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"voters":     voters,
		"pagination": page,
	})
}

type addVoterRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h HandlerSet) AddVoter(c *gin.Context) {
	var req addVoterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.AddVoter(c.Param("id"), req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated)
}

func (h HandlerSet) RemoveVoter(c *gin.Context) {
	if err := h.store.RemoveVoter(c.Param("id"), c.Param("userId")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK)
}

type importRequest struct {
	Format string `json:"format" binding:"required"`
	Data   string `json:"data"`
	DryRun *bool  `json:"dry_run"`
}

// ImportVoters accepts csv or json text. Spreadsheets are converted by the
// console before they are sent. dry_run defaults to true.
func (h HandlerSet) ImportVoters(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	contestID := c.Param("id")
	if err := h.store.EnsureContestEditable(contestID); err != nil {
		h.fail(c, err)
		return
	}

	format, err := voterroll.ParseFormat(req.Format)
	if err != nil || format == voterroll.FormatXLSX {
		h.fail(c, voterroll.ErrUnknownFormat)
		return
	}
	rows, err := voterroll.Parse(format, []byte(req.Data))
	if err != nil {
		h.fail(c, err)
		return
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	report, err := h.reconciler.Run(c.Request.Context(), contestID, rows, dryRun)
	if err != nil {
		if errors.Is(err, voterroll.ErrInsertMismatch) {
			h.log.Warn().Err(err).Str("contest_id", contestID).Msg("voter roll import raced with roll edits")
		}
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, report)
}
