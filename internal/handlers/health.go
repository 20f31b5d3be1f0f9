package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Environment: h.environment,
	})
}
