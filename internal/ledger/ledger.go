// Package ledger is the append-only record of every inbound and outbound
// chat message. Rows are never updated; button replies are correlated back
// to the outbound message they answer through the provider message id.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadfunnel/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("message not found")

// Listener is notified after each successful append.
type Listener func(msg models.Message)

type Ledger struct {
	db        *gorm.DB
	listeners []Listener
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Subscribe registers fn for every future append. Not safe to call
// concurrently with Append.
func (l *Ledger) Subscribe(fn Listener) {
	l.listeners = append(l.listeners, fn)
}

// Append persists msg exactly once. CreatedAt defaults to now and is stored
// in UTC.
func (l *Ledger) Append(ctx context.Context, msg *models.Message) error {
	if msg.ContactRef == "" {
		return fmt.Errorf("append message: empty contact")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Second)
	if err := l.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	for _, fn := range l.listeners {
		fn(*msg)
	}
	return nil
}

// FindByProviderID returns the message the provider knows as id.
func (l *Ledger) FindByProviderID(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var msg models.Message
	err := l.db.WithContext(ctx).
		Where("provider_id = ?", id).
		Order("id ASC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// HasInbound reports whether an incoming message with the provider id was
// already recorded for the contact. Channels redeliver events; a repeat must
// not run the funnel twice.
func (l *Ledger) HasInbound(ctx context.Context, channel models.Channel, contactRef, providerID string) (bool, error) {
	if providerID == "" {
		return false, nil
	}
	var n int64
	err := l.db.WithContext(ctx).Model(&models.Message{}).
		Where("channel = ? AND contact_ref = ? AND provider_id = ? AND direction = ?",
			channel, contactRef, providerID, models.DirectionIncoming).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("lookup inbound %s: %w", providerID, err)
	}
	return n > 0, nil
}

// ResolveContext returns the outbound template message an inbound reply
// answers.
func (l *Ledger) ResolveContext(ctx context.Context, contextID string) (*models.Message, error) {
	msg, err := l.FindByProviderID(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if msg.Direction != models.DirectionOutgoing {
		return nil, ErrNotFound
	}
	return msg, nil
}

// History returns a contact's messages, oldest first.
func (l *Ledger) History(ctx context.Context, channel models.Channel, contactRef string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	q := l.db.WithContext(ctx).
		Where("channel = ? AND contact_ref = ?", channel, contactRef).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// LastOutboundTemplate returns the most recent template sent to a contact.
func (l *Ledger) LastOutboundTemplate(ctx context.Context, channel models.Channel, contactRef string) (*models.Message, error) {
	var msg models.Message
	err := l.db.WithContext(ctx).
		Where("channel = ? AND contact_ref = ? AND direction = ? AND template_name IS NOT NULL",
			channel, contactRef, models.DirectionOutgoing).
		Order("id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
