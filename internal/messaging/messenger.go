// Package messaging is the channel-agnostic send path shared by the funnel
// engine, the follow-up sweeps and the admin API. Every successful send is
// appended to the message ledger.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leadfunnel/internal/catalog"
	"leadfunnel/internal/models"
	"leadfunnel/internal/observability"
)

// ErrNoChannel is returned when no sender is registered for a contact's channel.
var ErrNoChannel = errors.New("no sender for channel")

// Contact addresses one lead on one channel.
type Contact struct {
	Channel models.Channel
	Ref     string
}

// Key identifies the contact across channels.
func (c Contact) Key() string {
	return string(c.Channel) + ":" + c.Ref
}

func ContactOf(l *models.Lead) Contact {
	return Contact{Channel: l.Channel, Ref: l.ContactRef}
}

type Param = catalog.Param

// TemplateMessage carries everything a channel needs to deliver a template:
// providers that host templates use Name and Params, bot channels send
// Rendered with Buttons as the keyboard.
type TemplateMessage struct {
	Name     string
	Locale   string
	Params   []Param
	Rendered string
	Buttons  []string
}

// ChannelSender places a message with one provider and returns the
// provider's message id. Transport errors are returned, never retried.
type ChannelSender interface {
	SendTemplate(ctx context.Context, to string, msg TemplateMessage) (string, error)
	SendText(ctx context.Context, to, text string) (string, error)
}

// TemplateSource looks templates up by name.
type TemplateSource interface {
	Find(ctx context.Context, name string) (*models.Template, error)
}

// Recorder persists ledger rows.
type Recorder interface {
	Append(ctx context.Context, msg *models.Message) error
}

type Messenger struct {
	senders   map[models.Channel]ChannelSender
	templates TemplateSource
	ledger    Recorder
	locale    string
	log       *slog.Logger
}

func NewMessenger(templates TemplateSource, ledger Recorder, locale string) *Messenger {
	return &Messenger{
		senders:   make(map[models.Channel]ChannelSender),
		templates: templates,
		ledger:    ledger,
		locale:    locale,
		log:       observability.WithFields("component", "messenger"),
	}
}

// Register routes a channel to its sender.
func (m *Messenger) Register(ch models.Channel, s ChannelSender) {
	m.senders[ch] = s
}

func (m *Messenger) sender(ch models.Channel) (ChannelSender, error) {
	s, ok := m.senders[ch]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoChannel, ch)
	}
	return s, nil
}

// SendTemplate renders and sends a named template, then records it.
// The returned message is the ledger row.
func (m *Messenger) SendTemplate(ctx context.Context, to Contact, name string, params []Param) (*models.Message, error) {
	if to.Ref == "" {
		return nil, fmt.Errorf("send %s: missing contact identifier", name)
	}
	s, err := m.sender(to.Channel)
	if err != nil {
		return nil, err
	}

	msg := TemplateMessage{Name: name, Locale: m.locale, Params: params}
	tpl, err := m.templates.Find(ctx, name)
	switch {
	case err == nil:
		msg.Rendered = catalog.Render(tpl.Body, params)
		msg.Buttons = catalog.Buttons(tpl)
		if tpl.Language != "" {
			msg.Locale = tpl.Language
		}
	case errors.Is(err, catalog.ErrNotFound):
		m.log.Warn("template missing from catalog", "template", name)
	default:
		return nil, fmt.Errorf("lookup template %s: %w", name, err)
	}

	providerID, err := s.SendTemplate(ctx, to.Ref, msg)
	if err != nil {
		return nil, fmt.Errorf("send %s to %s: %w", name, to.Key(), err)
	}

	tplName := name
	row := &models.Message{
		Channel:      to.Channel,
		ContactRef:   to.Ref,
		Direction:    models.DirectionOutgoing,
		ProviderID:   providerID,
		TemplateName: &tplName,
		Text:         msg.Rendered,
		Type:         models.TypeText,
	}
	if row.Text == "" {
		row.Text = "Template: " + name
	}
	m.record(ctx, row)
	return row, nil
}

// SendText sends free text and records it.
func (m *Messenger) SendText(ctx context.Context, to Contact, text string) (*models.Message, error) {
	if to.Ref == "" {
		return nil, fmt.Errorf("send text: missing contact identifier")
	}
	s, err := m.sender(to.Channel)
	if err != nil {
		return nil, err
	}
	providerID, err := s.SendText(ctx, to.Ref, text)
	if err != nil {
		return nil, fmt.Errorf("send text to %s: %w", to.Key(), err)
	}
	row := &models.Message{
		Channel:    to.Channel,
		ContactRef: to.Ref,
		Direction:  models.DirectionOutgoing,
		ProviderID: providerID,
		Text:       text,
		Type:       models.TypeText,
	}
	m.record(ctx, row)
	return row, nil
}

// record logs ledger failures instead of returning them: the message has
// already left, so the send itself succeeded.
func (m *Messenger) record(ctx context.Context, row *models.Message) {
	if err := m.ledger.Append(ctx, row); err != nil {
		m.log.Error("failed to record outbound message",
			"contact", row.ContactRef, "provider_id", row.ProviderID, "error", err)
	}
}
