package api

import (
	"errors"
	"net/http"

	"leadfunnel/internal/leads"
	"leadfunnel/internal/messaging"

	"github.com/gin-gonic/gin"
)

// MessageHandler sends operator messages to a lead on its own channel.
type MessageHandler struct {
	Leads     *leads.Repository
	Messenger *messaging.Messenger
}

func NewMessageHandler(repo *leads.Repository, m *messaging.Messenger) *MessageHandler {
	return &MessageHandler{Leads: repo, Messenger: m}
}

type SendRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	lead, ok := lookupLead(c, h.Leads)
	if !ok {
		return
	}
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Messenger.SendText(c.Request.Context(), messaging.ContactOf(lead), req.Text)
	if err != nil {
		c.JSON(sendStatus(err), gin.H{"error": "Failed to send message: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, msg)
}

type SendTemplateRequest struct {
	Template string            `json:"template" binding:"required"`
	Params   []messaging.Param `json:"params"`
}

func (h *MessageHandler) SendTemplate(c *gin.Context) {
	lead, ok := lookupLead(c, h.Leads)
	if !ok {
		return
	}
	var req SendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Messenger.SendTemplate(c.Request.Context(), messaging.ContactOf(lead), req.Template, req.Params)
	if err != nil {
		c.JSON(sendStatus(err), gin.H{"error": "Failed to send template: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func sendStatus(err error) int {
	if errors.Is(err, messaging.ErrNoChannel) {
		return http.StatusConflict
	}
	return http.StatusBadGateway
}
