package funnel

import (
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"
)

// Kind classifies an inbound event.
type Kind int

const (
	KindText Kind = iota
	KindButton
	KindMedia
	KindReaction
	KindStart // bot registration, e.g. Telegram /start
)

// Event is one inbound message from any channel.
type Event struct {
	Contact    messaging.Contact
	Name       string // display name reported by the channel
	Username   string
	Kind       Kind
	ProviderID string
	ContextID  string // provider id of the message this one answers
	Text       string
	Payload    string // button label or callback data
	MediaID    string
	Type       models.MessageType
}

func (e Event) ledgerRow() *models.Message {
	row := &models.Message{
		Channel:    e.Contact.Channel,
		ContactRef: e.Contact.Ref,
		Direction:  models.DirectionIncoming,
		ProviderID: e.ProviderID,
		Text:       e.Text,
		Type:       e.Type,
	}
	if e.ContextID != "" {
		id := e.ContextID
		row.ContextID = &id
	}
	if e.MediaID != "" {
		id := e.MediaID
		row.MediaID = &id
	}
	if row.Text == "" && e.Kind == KindButton {
		row.Text = e.Payload
	}
	if row.Type == "" {
		switch e.Kind {
		case KindButton:
			row.Type = models.TypeButton
		case KindReaction:
			row.Type = models.TypeReaction
		default:
			row.Type = models.TypeText
		}
	}
	return row
}
