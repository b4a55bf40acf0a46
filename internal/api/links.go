package api

import (
	"net/http"

	"leadfunnel/internal/links"
	"leadfunnel/internal/models"

	"github.com/gin-gonic/gin"
)

type LinkHandler struct {
	Links *links.Repository
}

func NewLinkHandler(repo *links.Repository) *LinkHandler {
	return &LinkHandler{Links: repo}
}

type PublishLinkRequest struct {
	Type string `json:"link_type" binding:"required"`
	Date string `json:"link_date"` // YYYY-MM-DD, defaults to today
	URL  string `json:"link" binding:"required"`
}

func (h *LinkHandler) PublishLink(c *gin.Context) {
	var req PublishLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := models.ParseMeetingType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.Links.Publish(c.Request.Context(), t, req.Date, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (h *LinkHandler) GetLinks(c *gin.Context) {
	list, err := h.Links.List(c.Request.Context(), c.Query("date"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []models.Link{}
	}
	c.JSON(http.StatusOK, list)
}
