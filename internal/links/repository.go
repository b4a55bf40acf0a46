// Package links stores the meeting URLs operators publish for each day.
package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"leadfunnel/internal/models"
	"leadfunnel/internal/schedule"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("link not found")

type Repository struct {
	db  *gorm.DB
	loc *time.Location
}

// NewRepository resolves "today" in loc, the business timezone.
func NewRepository(db *gorm.DB, loc *time.Location) *Repository {
	return &Repository{db: db, loc: loc}
}

// Publish stores url as the day's link for meeting type t. day is
// YYYY-MM-DD; empty means today. A later publish for the same day wins.
func (r *Repository) Publish(ctx context.Context, t models.MeetingType, day, rawURL string) (*models.Link, error) {
	if day == "" {
		day = schedule.DayKey(time.Now(), r.loc)
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return nil, fmt.Errorf("invalid link date %q", day)
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid link url %q", rawURL)
	}
	link := &models.Link{LinkDate: day, Type: t, URL: rawURL}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

// ForDay returns the newest link of type t published for the business-local
// day containing now.
func (r *Repository) ForDay(ctx context.Context, t models.MeetingType, now time.Time) (*models.Link, error) {
	var link models.Link
	err := r.db.WithContext(ctx).
		Where("link_date = ? AND link_type = ?", schedule.DayKey(now, r.loc), t).
		Order("id DESC").
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// List returns links newest first, optionally for one day.
func (r *Repository) List(ctx context.Context, day string) ([]models.Link, error) {
	q := r.db.WithContext(ctx).Order("link_date DESC, id DESC").Limit(200)
	if day != "" {
		q = q.Where("link_date = ?", day)
	}
	var out []models.Link
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
