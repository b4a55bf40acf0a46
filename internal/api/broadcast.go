package api

import (
	"context"
	"log"
	"net/http"

	"leadfunnel/internal/catalog"
	"leadfunnel/internal/config"
	"leadfunnel/internal/funnel"
	"leadfunnel/internal/leads"
	"leadfunnel/internal/models"

	"github.com/gin-gonic/gin"
)

// ConversationStarter sends the opening template to a lead.
type ConversationStarter interface {
	StartConversation(ctx context.Context, lead *models.Lead) error
}

// BroadcastHandler covers the template catalog and the bulk opener.
type BroadcastHandler struct {
	Catalog *catalog.Catalog
	Remote  catalog.Lister
	Leads   *leads.Repository
	Starter ConversationStarter
	Config  *config.Config
}

func NewBroadcastHandler(cat *catalog.Catalog, remote catalog.Lister, repo *leads.Repository, starter ConversationStarter, cfg *config.Config) *BroadcastHandler {
	return &BroadcastHandler{Catalog: cat, Remote: remote, Leads: repo, Starter: starter, Config: cfg}
}

// GetTemplates lists the local catalog
func (h *BroadcastHandler) GetTemplates(c *gin.Context) {
	list, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []models.Template{}
	}
	c.JSON(http.StatusOK, list)
}

// SyncTemplates fetches templates from Meta and stores them locally
func (h *BroadcastHandler) SyncTemplates(c *gin.Context) {
	if h.Remote == nil || h.Config.WhatsAppBusinessAccountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "WABA_ID not configured in .env"})
		return
	}
	n, err := h.Catalog.Sync(c.Request.Context(), h.Remote)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch templates from Meta: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Templates synced", "count": n})
}

// InitiateConversation sends the opening template to every lead that has
// not been contacted yet.
func (h *BroadcastHandler) InitiateConversation(c *gin.Context) {
	ctx := c.Request.Context()
	targets, err := h.Leads.Find(ctx, leads.NotOptedOut(), leads.Stage(funnel.StageNew))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sent, failed := 0, 0
	for i := range targets {
		if err := h.Starter.StartConversation(ctx, &targets[i]); err != nil {
			log.Printf("[Broadcast] start conversation with lead %d: %v", targets[i].ID, err)
			failed++
			continue
		}
		sent++
	}
	c.JSON(http.StatusOK, gin.H{"status": "Conversations initiated", "sent": sent, "failed": failed})
}
