package webhook

import (
	"context"
	"log"
	"net/http"

	"leadfunnel/internal/config"
	"leadfunnel/internal/funnel"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"
	wa "leadfunnel/pkg/models"

	"github.com/gin-gonic/gin"
)

// EventHandler consumes inbound events; *funnel.Engine implements it.
type EventHandler interface {
	OnInboundEvent(ctx context.Context, ev funnel.Event) error
}

type Handler struct {
	Config *config.Config
	Events EventHandler
}

func NewHandler(cfg *config.Config, events EventHandler) *Handler {
	return &Handler{
		Config: cfg,
		Events: events,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			log.Println("Webhook verified successfully!")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleMessage acknowledges every delivery with 200 so the provider does
// not retry, then feeds the messages to the funnel in order.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload wa.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("[Webhook] Error binding JSON: %v", err)
		c.Status(http.StatusOK)
		return
	}

	events := Events(&payload)
	for _, e := range payload.Entry {
		for _, ch := range e.Changes {
			for _, st := range ch.Value.Statuses {
				log.Printf("[Webhook] status %s for %s: %s", st.ID, st.RecipientId, st.Status)
			}
		}
	}

	if h.Events != nil && len(events) > 0 {
		go func() {
			ctx := context.Background()
			for _, ev := range events {
				if err := h.Events.OnInboundEvent(ctx, ev); err != nil {
					log.Printf("[Webhook] Error handling %s from %s: %v", ev.ProviderID, ev.Contact.Ref, err)
				}
			}
		}()
	}

	c.Status(http.StatusOK)
}

// Events flattens a webhook payload into funnel events.
func Events(payload *wa.WebhookPayload) []funnel.Event {
	var out []funnel.Event
	for _, e := range payload.Entry {
		for _, ch := range e.Changes {
			names := make(map[string]string, len(ch.Value.Contacts))
			for _, ct := range ch.Value.Contacts {
				names[ct.WaID] = ct.Profile.Name
			}
			for _, m := range ch.Value.Messages {
				if ev, ok := eventFromMessage(m, names[m.From]); ok {
					out = append(out, ev)
				}
			}
		}
	}
	return out
}

func eventFromMessage(m wa.WebhookMessage, name string) (funnel.Event, bool) {
	if m.From == "" {
		return funnel.Event{}, false
	}
	ev := funnel.Event{
		Contact:    messaging.Contact{Channel: models.ChannelWhatsApp, Ref: m.From},
		Name:       name,
		ProviderID: m.ID,
		Kind:       funnel.KindText,
		Type:       models.TypeText,
	}
	if m.Context != nil {
		ev.ContextID = m.Context.ID
	}

	media := func(obj *wa.MediaMessage, t models.MessageType) {
		ev.Kind, ev.Type = funnel.KindMedia, t
		if obj != nil {
			ev.MediaID = obj.ID
			ev.Text = obj.Caption
		}
	}

	switch m.Type {
	case "text":
		if m.Text != nil {
			ev.Text = m.Text.Body
		}
	case "button":
		ev.Kind, ev.Type = funnel.KindButton, models.TypeButton
		if m.Button != nil {
			ev.Payload = m.Button.Text
			if ev.Payload == "" {
				ev.Payload = m.Button.Payload
			}
		}
	case "interactive":
		ev.Kind, ev.Type = funnel.KindButton, models.TypeButton
		if in := m.Interactive; in != nil {
			switch {
			case in.ButtonReply != nil:
				ev.Payload = firstNonEmpty(in.ButtonReply.Title, in.ButtonReply.ID)
			case in.ListReply != nil:
				ev.Payload = firstNonEmpty(in.ListReply.Title, in.ListReply.ID)
			}
		}
	case "reaction":
		ev.Kind, ev.Type = funnel.KindReaction, models.TypeReaction
		if m.Reaction != nil {
			ev.Text = m.Reaction.Emoji
			ev.ContextID = m.Reaction.MessageID
		}
	case "image":
		media(m.Image, models.TypeImage)
	case "document":
		media(m.Document, models.TypeDocument)
	case "sticker":
		media(m.Sticker, models.TypeSticker)
	case "video":
		media(m.Video, models.TypeVideo)
	case "audio":
		media(m.Audio, models.TypeAudio)
	default:
		ev.Text = "[" + m.Type + "]"
		log.Printf("[Webhook] Received %s from %s", m.Type, m.From)
	}
	return ev, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
