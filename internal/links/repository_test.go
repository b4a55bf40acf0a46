package links

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"leadfunnel/internal/config"
	"leadfunnel/internal/database"
	"leadfunnel/internal/models"
)

func TestPublishAndForDay(t *testing.T) {
	db, err := database.Open(&config.Config{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(t.TempDir(), "test.db"),
		DBLogLevel: "silent",
	})
	if err != nil {
		t.Fatal(err)
	}
	loc, _ := time.LoadLocation("Asia/Kolkata")
	repo := NewRepository(db, loc)
	ctx := context.Background()

	if _, err := repo.Publish(ctx, models.MeetingBOM, "2025-03-03", "https://zoom.example/j/1"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := repo.Publish(ctx, models.MeetingBOM, "2025-03-03", "https://zoom.example/j/2"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := repo.Publish(ctx, models.MeetingBIT, "2025-03-03", "not a url"); err == nil {
		t.Fatal("expected invalid url error")
	}
	if _, err := repo.Publish(ctx, models.MeetingBIT, "03.03.25", "https://zoom.example/j/3"); err == nil {
		t.Fatal("expected invalid date error")
	}

	// 20:00 UTC on the 2nd is already the 3rd in IST.
	now := time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC)
	link, err := repo.ForDay(ctx, models.MeetingBOM, now)
	if err != nil {
		t.Fatalf("ForDay: %v", err)
	}
	if link.URL != "https://zoom.example/j/2" {
		t.Fatalf("link = %q, want the latest publish", link.URL)
	}
	if _, err := repo.ForDay(ctx, models.MeetingBIT, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BIT link err = %v", err)
	}

	all, err := repo.List(ctx, "2025-03-03")
	if err != nil || len(all) != 2 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
}
