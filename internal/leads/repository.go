// Package leads persists Lead records and exposes the query scopes the
// follow-up sweeps are built from.
package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadfunnel/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a lead for a contact, or returns the existing one.
// created reports whether a row was inserted.
func (r *Repository) Create(ctx context.Context, lead *models.Lead) (created bool, err error) {
	if lead.ContactRef == "" || lead.Channel == "" {
		return false, fmt.Errorf("create lead: missing contact")
	}
	if lead.FunnelStage == "" {
		lead.FunnelStage = "new"
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "channel"}, {Name: "contact_ref"}}, DoNothing: true}).
		Create(lead)
	if res.Error != nil {
		return false, fmt.Errorf("create lead: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	existing, err := r.FindByContact(ctx, lead.Channel, lead.ContactRef)
	if err != nil {
		return false, err
	}
	*lead = *existing
	return false, nil
}

func (r *Repository) FindByContact(ctx context.Context, channel models.Channel, ref string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).
		Where("channel = ? AND contact_ref = ?", channel, ref).
		First(&lead).Error
	return found(&lead, err)
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.WithContext(ctx).First(&lead, id).Error
	return found(&lead, err)
}

func found(lead *models.Lead, err error) (*models.Lead, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// Update applies a partial update keyed by column name.
func (r *Repository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update lead %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFlags sets each named boolean flag to true.
func (r *Repository) SetFlags(ctx context.Context, id uint, cols ...string) error {
	fields := make(map[string]interface{}, len(cols))
	for _, c := range cols {
		if !models.IsFlagColumn(c) {
			return fmt.Errorf("unknown flag column %q", c)
		}
		fields[c] = true
	}
	return r.Update(ctx, id, fields)
}

// SetMeeting books or clears one meeting type, merged with extra fields.
func (r *Repository) SetMeeting(ctx context.Context, id uint, t models.MeetingType, status models.MeetingStatus, date *time.Time, extra map[string]interface{}) error {
	fields, err := models.MeetingUpdate(t, status, date)
	if err != nil {
		return err
	}
	for k, v := range extra {
		fields[k] = v
	}
	return r.Update(ctx, id, fields)
}

// Find returns leads matching every scope, oldest first.
func (r *Repository) Find(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]models.Lead, error) {
	var out []models.Lead
	if err := r.db.WithContext(ctx).Scopes(scopes...).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListFilter narrows the admin lead listing.
type ListFilter struct {
	Channel        models.Channel
	NeedsAttention *bool
	Stage          string
	Limit          int
	Offset         int
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Lead, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Lead{})
	if f.Channel != "" {
		q = q.Where("channel = ?", f.Channel)
	}
	if f.NeedsAttention != nil {
		q = q.Where("needs_attention = ?", *f.NeedsAttention)
	}
	if f.Stage != "" {
		q = q.Where("funnel_stage = ?", f.Stage)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []models.Lead
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
