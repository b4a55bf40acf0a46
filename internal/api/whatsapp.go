package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MediaResolver turns an inbound media id into a download URL.
type MediaResolver interface {
	RetrieveMediaURL(ctx context.Context, mediaID string) (string, error)
}

type WhatsAppHandler struct {
	Media MediaResolver
}

func NewWhatsAppHandler(media MediaResolver) *WhatsAppHandler {
	return &WhatsAppHandler{Media: media}
}

// RetrieveMediaURL gets the URL for a media ID
func (h *WhatsAppHandler) RetrieveMediaURL(c *gin.Context) {
	mediaID := c.Param("id")
	if mediaID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Media ID required"})
		return
	}

	url, err := h.Media.RetrieveMediaURL(c.Request.Context(), mediaID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
