// Package telegram is the bot channel: a messaging.ChannelSender over the
// Bot API and a long-poll worker that turns updates into funnel events.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"leadfunnel/internal/funnel"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the part of *tgbotapi.BotAPI the channel uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// EventHandler consumes inbound events; *funnel.Engine implements it.
type EventHandler interface {
	OnInboundEvent(ctx context.Context, ev funnel.Event) error
}

type Bot struct {
	api botAPI
}

func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	log.Printf("[Telegram] authorized as @%s", api.Self.UserName)
	return &Bot{api: api}, nil
}

// ProviderID is the ledger id of a bot message. Telegram message ids are
// only unique per chat.
func ProviderID(chatID int64, messageID int) string {
	return fmt.Sprintf("tg:%d:%d", chatID, messageID)
}

func parseChat(to string) (int64, error) {
	id, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q", to)
	}
	return id, nil
}

// SendTemplate sends the rendered body with the template's buttons as an
// inline keyboard, one button per row. Callback data is the button label.
func (b *Bot) SendTemplate(_ context.Context, to string, tm messaging.TemplateMessage) (string, error) {
	chatID, err := parseChat(to)
	if err != nil {
		return "", err
	}
	if tm.Rendered == "" {
		return "", fmt.Errorf("template %s has no body for the bot channel", tm.Name)
	}
	msg := tgbotapi.NewMessage(chatID, tm.Rendered)
	if kb := keyboard(tm.Buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}
	return b.send(chatID, msg)
}

func (b *Bot) SendText(_ context.Context, to, text string) (string, error) {
	chatID, err := parseChat(to)
	if err != nil {
		return "", err
	}
	return b.send(chatID, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(chatID int64, msg tgbotapi.MessageConfig) (string, error) {
	sent, err := b.api.Send(msg)
	if err != nil {
		return "", err
	}
	return ProviderID(chatID, sent.MessageID), nil
}

func keyboard(labels []string) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, l := range labels {
		if l = strings.TrimSpace(l); l == "" {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(l, l)))
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// Run long-polls for updates until ctx is done and hands each one to h.
// Callback queries are answered so the client stops its spinner.
func (b *Bot) Run(ctx context.Context, h EventHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	log.Println("[Telegram] polling for updates")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			b.handle(ctx, h, upd)
		}
	}
}

func (b *Bot) handle(ctx context.Context, h EventHandler, upd tgbotapi.Update) {
	if cq := upd.CallbackQuery; cq != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			log.Printf("[Telegram] answer callback %s: %v", cq.ID, err)
		}
	}
	ev, ok := EventFromUpdate(upd)
	if !ok {
		return
	}
	if err := h.OnInboundEvent(ctx, ev); err != nil {
		log.Printf("[Telegram] handle update %d from %s: %v", upd.UpdateID, ev.Contact.Ref, err)
	}
}

// EventFromUpdate maps a bot update to a funnel event. ok is false for
// updates the funnel does not consume.
func EventFromUpdate(upd tgbotapi.Update) (funnel.Event, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return funnel.Event{}, false
		}
		chatID := cq.Message.Chat.ID
		ev := funnel.Event{
			Contact:    contactOf(chatID),
			Kind:       funnel.KindButton,
			ProviderID: "tg:cb:" + cq.ID,
			ContextID:  ProviderID(chatID, cq.Message.MessageID),
			Payload:    cq.Data,
			Type:       models.TypeButton,
		}
		ev.Name, ev.Username = userNames(cq.From)
		return ev, true
	}

	m := upd.Message
	if m == nil || m.Chat == nil {
		return funnel.Event{}, false
	}
	ev := funnel.Event{
		Contact:    contactOf(m.Chat.ID),
		Kind:       funnel.KindText,
		ProviderID: ProviderID(m.Chat.ID, m.MessageID),
		Text:       m.Text,
		Type:       models.TypeText,
	}
	ev.Name, ev.Username = userNames(m.From)
	if ev.Text == "" {
		ev.Text = m.Caption
	}
	if m.ReplyToMessage != nil {
		ev.ContextID = ProviderID(m.Chat.ID, m.ReplyToMessage.MessageID)
	}

	switch {
	case m.IsCommand() && m.Command() == "start":
		ev.Kind = funnel.KindStart
	case len(m.Photo) > 0:
		ev.Kind, ev.Type, ev.MediaID = funnel.KindMedia, models.TypeImage, m.Photo[len(m.Photo)-1].FileID
	case m.Document != nil:
		ev.Kind, ev.Type, ev.MediaID = funnel.KindMedia, models.TypeDocument, m.Document.FileID
	case m.Video != nil:
		ev.Kind, ev.Type, ev.MediaID = funnel.KindMedia, models.TypeVideo, m.Video.FileID
	case m.Voice != nil:
		ev.Kind, ev.Type, ev.MediaID = funnel.KindMedia, models.TypeAudio, m.Voice.FileID
	case m.Audio != nil:
		ev.Kind, ev.Type, ev.MediaID = funnel.KindMedia, models.TypeAudio, m.Audio.FileID
	case ev.Text == "":
		return funnel.Event{}, false
	}
	return ev, true
}

func contactOf(chatID int64) messaging.Contact {
	return messaging.Contact{Channel: models.ChannelTelegram, Ref: strconv.FormatInt(chatID, 10)}
}

func userNames(u *tgbotapi.User) (name, username string) {
	if u == nil {
		return "", ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName), u.UserName
}

var _ messaging.ChannelSender = (*Bot)(nil)
