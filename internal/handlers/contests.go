package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meowecho-tech/vote/internal/devstore"
	"github.com/meowecho-tech/vote/internal/service"
)

type contestRequest struct {
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	MaxSelections *int            `json:"max_selections"`
	Metadata      json.RawMessage `json:"metadata"`
}

func (r contestRequest) draft() (devstore.ContestDraft, string) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return devstore.ContestDraft{}, "contest title is required"
	}
	maxSelections := 1
	if r.MaxSelections != nil {
		maxSelections = *r.MaxSelections
	}
	if maxSelections < 1 {
		return devstore.ContestDraft{}, "max_selections must be >= 1"
	}
	meta, err := service.NormalizeMetadata(r.Metadata)
	if err != nil {
		return devstore.ContestDraft{}, err.Error()
	}
	return devstore.ContestDraft{
		Title:         title,
		Description:   r.Description,
		MaxSelections: maxSelections,
		Metadata:      meta,
	}, ""
}

func (h HandlerSet) ListContests(c *gin.Context) {
	contests, err := h.store.ListContests(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"contests": contests})
}

func (h HandlerSet) CreateContest(c *gin.Context) {
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	draft, problem := req.draft()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem, "code": "invalid_request"})
		return
	}

	id, err := h.store.CreateContest(c.Param("id"), draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"contest_id": id})
}

func (h HandlerSet) UpdateContest(c *gin.Context) {
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	draft, problem := req.draft()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem, "code": "invalid_request"})
		return
	}

	if err := h.store.UpdateContest(c.Param("id"), draft); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK)
}

func (h HandlerSet) DeleteContest(c *gin.Context) {
	if err := h.store.DeleteContest(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK)
}

type candidateRequest struct {
	Name      string  `json:"name"`
	Manifesto *string `json:"manifesto"`
}

func (h HandlerSet) ListCandidates(c *gin.Context) {
	candidates, page, err := h.store.ListCandidates(c.Param("id"), pageRequest(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"candidates": candidates,
		"pagination": page,
	})
}

func (h HandlerSet) CreateCandidate(c *gin.Context) {
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidate name is required", "code": "invalid_request"})
		return
	}

	id, err := h.store.CreateCandidate(c.Param("id"), req.Name, req.Manifesto)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"candidate_id": id})
}

func (h HandlerSet) UpdateCandidate(c *gin.Context) {
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidate name is required", "code": "invalid_request"})
		return
	}

	if err := h.store.UpdateCandidate(c.Param("id"), c.Param("candidateId"), req.Name, req.Manifesto); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK)
}

func (h HandlerSet) DeleteCandidate(c *gin.Context) {
	if err := h.store.DeleteCandidate(c.Param("id"), c.Param("candidateId")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK)
}

func (h HandlerSet) ContestResults(c *gin.Context) {
	results, err := h.store.ContestResults(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, results)
}
