package api

import (
	"net/http"

	"leadfunnel/internal/catalog"
	"leadfunnel/internal/config"
	"leadfunnel/internal/followup"
	"leadfunnel/internal/leads"
	"leadfunnel/internal/ledger"
	"leadfunnel/internal/links"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/webhook"
	"leadfunnel/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Leads     *leads.Repository
	Ledger    *ledger.Ledger
	Messenger *messaging.Messenger
	Catalog   *catalog.Catalog
	Links     *links.Repository
	FollowUp  *followup.Engine
	Starter   ConversationStarter
	Remote    catalog.Lister
	Media     MediaResolver
	Webhook   *webhook.Handler
	Hub       *ws.Hub
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), CORS())

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Webhook Routes
	if d.Webhook != nil {
		r.GET("/webhook", d.Webhook.VerifyWebhook)
		r.POST("/webhook", d.Webhook.HandleMessage)
	}
	if d.Hub != nil {
		r.GET("/ws", func(c *gin.Context) { d.Hub.ServeWs(c.Writer, c.Request) })
	}

	leadHandler := NewLeadHandler(d.Leads, d.Ledger)
	messageHandler := NewMessageHandler(d.Leads, d.Messenger)
	broadcastHandler := NewBroadcastHandler(d.Catalog, d.Remote, d.Leads, d.Starter, d.Config)
	linkHandler := NewLinkHandler(d.Links)
	followUpHandler := NewFollowUpHandler(d.FollowUp)
	whatsappHandler := NewWhatsAppHandler(d.Media)

	apiGroup := r.Group("/api", APIKeyAuth(d.Config.APIKey))
	{
		// Lead Routes
		apiGroup.GET("/leads", leadHandler.GetLeads)
		apiGroup.POST("/leads", leadHandler.CreateLead)
		apiGroup.GET("/leads/export", leadHandler.ExportLeads)
		apiGroup.GET("/leads/:id", leadHandler.GetLead)
		apiGroup.PATCH("/leads/:id", leadHandler.UpdateLead)
		apiGroup.GET("/leads/:id/messages", leadHandler.GetLeadMessages)
		apiGroup.POST("/leads/:id/switch-needs-attention", leadHandler.SwitchNeedsAttention)
		apiGroup.POST("/leads/:id/send-message", messageHandler.SendMessage)
		apiGroup.POST("/leads/:id/send-template", messageHandler.SendTemplate)

		// Broadcast Routes
		apiGroup.POST("/initiate-conversation", broadcastHandler.InitiateConversation)
		apiGroup.GET("/templates", broadcastHandler.GetTemplates)
		apiGroup.POST("/templates/sync", broadcastHandler.SyncTemplates)

		// Meeting links
		apiGroup.GET("/links", linkHandler.GetLinks)
		apiGroup.POST("/links", linkHandler.PublishLink)

		// Follow-up sweeps
		apiGroup.GET("/follow-up", followUpHandler.GetSweeps)
		apiGroup.POST("/follow-up/:sweep", followUpHandler.RunSweep)

		if d.Media != nil {
			apiGroup.GET("/media/:id", whatsappHandler.RetrieveMediaURL)
		}
	}

	return r
}
