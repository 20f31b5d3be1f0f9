package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meowecho-tech/vote/internal/devstore"
)

type electionRequest struct {
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title" binding:"required"`
	Description    *string   `json:"description"`
	OpensAt        time.Time `json:"opens_at" binding:"required"`
	ClosesAt       time.Time `json:"closes_at" binding:"required"`
}

func (r electionRequest) draft() devstore.ElectionDraft {
	return devstore.ElectionDraft{
		OrganizationID: r.OrganizationID,
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		OpensAt:        r.OpensAt,
		ClosesAt:       r.ClosesAt,
	}
}

func (h HandlerSet) ListElections(c *gin.Context) {
	elections, page := h.store.ListElections(pageRequest(c))
	respond(c, http.StatusOK, gin.H{
		"elections":  elections,
		"pagination": page,
	})
}

func (h HandlerSet) CreateElection(c *gin.Context) {
	var req electionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.store.CreateElection(req.draft())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"election_id": id})
}

func (h HandlerSet) GetElection(c *gin.Context) {
	election, err := h.store.GetElection(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, election)
}

func (h HandlerSet) UpdateElection(c *gin.Context) {
	var req electionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.store.UpdateElection(c.Param("id"), req.draft()); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK)
}

func (h HandlerSet) PublishElection(c *gin.Context) {
	status, err := h.store.PublishElection(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"status": status})
}

func (h HandlerSet) CloseElection(c *gin.Context) {
	status, err := h.store.CloseElection(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"status": status})
}

func (h HandlerSet) ElectionResults(c *gin.Context) {
	results, err := h.store.ElectionResults(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, results)
}
