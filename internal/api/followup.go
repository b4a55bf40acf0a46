package api

import (
	"errors"
	"net/http"

	"leadfunnel/internal/followup"

	"github.com/gin-gonic/gin"
)

// FollowUpHandler triggers follow-up sweeps on demand.
type FollowUpHandler struct {
	Engine *followup.Engine
}

func NewFollowUpHandler(engine *followup.Engine) *FollowUpHandler {
	return &FollowUpHandler{Engine: engine}
}

func (h *FollowUpHandler) GetSweeps(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Sweeps())
}

// RunSweep runs one sweep synchronously and returns its report.
func (h *FollowUpHandler) RunSweep(c *gin.Context) {
	report, err := h.Engine.Run(c.Request.Context(), c.Param("sweep"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.Is(err, followup.ErrUnknownSweep):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, followup.ErrNoLink):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "report": report})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
	}
}
