package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) ListOrganizations(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"organizations": h.store.ListOrganizations()})
}

type organizationRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h HandlerSet) CreateOrganization(c *gin.Context) {
	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization name is required", "code": "invalid_request"})
		return
	}

	org := h.store.CreateOrganization(req.Name)
	respond(c, http.StatusCreated, gin.H{
		"organization_id": org.ID,
		"name":            org.Name,
	})
}
