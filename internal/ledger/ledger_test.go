package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"leadfunnel/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func TestAppendAndResolveContext(t *testing.T) {
	l := New(setupDB(t))
	ctx := context.Background()

	var seen []models.Message
	l.Subscribe(func(m models.Message) { seen = append(seen, m) })

	out := &models.Message{
		Channel:      models.ChannelWhatsApp,
		ContactRef:   "919800000001",
		Direction:    models.DirectionOutgoing,
		ProviderID:   "wamid.out1",
		TemplateName: strPtr("lb_2"),
		Text:         "Are you interested?",
		Type:         models.TypeText,
	}
	if err := l.Append(ctx, out); err != nil {
		t.Fatalf("Append: %v", err)
	}
	in := &models.Message{
		Channel:    models.ChannelWhatsApp,
		ContactRef: "919800000001",
		Direction:  models.DirectionIncoming,
		ProviderID: "wamid.in1",
		ContextID:  strPtr("wamid.out1"),
		Text:       "Interested",
		Type:       models.TypeButton,
	}
	if err := l.Append(ctx, in); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("listener saw %d messages, want 2", len(seen))
	}

	origin, err := l.ResolveContext(ctx, *in.ContextID)
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if origin.TemplateName == nil || *origin.TemplateName != "lb_2" {
		t.Fatalf("resolved template = %v", origin.TemplateName)
	}

	if _, err := l.ResolveContext(ctx, "wamid.in1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inbound id should not resolve as context: %v", err)
	}
	if _, err := l.ResolveContext(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id err = %v", err)
	}

	hist, err := l.History(ctx, models.ChannelWhatsApp, "919800000001", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].ProviderID != "wamid.out1" {
		t.Fatalf("history = %+v", hist)
	}

	last, err := l.LastOutboundTemplate(ctx, models.ChannelWhatsApp, "919800000001")
	if err != nil || last.ProviderID != "wamid.out1" {
		t.Fatalf("LastOutboundTemplate = %+v, %v", last, err)
	}
}

func TestAppendRequiresContact(t *testing.T) {
	l := New(setupDB(t))
	if err := l.Append(context.Background(), &models.Message{}); err == nil {
		t.Fatal("expected error for empty contact")
	}
}

func TestHasInbound(t *testing.T) {
	l := New(setupDB(t))
	ctx := context.Background()

	rows := []*models.Message{
		{Channel: models.ChannelWhatsApp, ContactRef: "9198", Direction: models.DirectionIncoming, ProviderID: "wamid.in", Type: models.TypeText},
		{Channel: models.ChannelWhatsApp, ContactRef: "9198", Direction: models.DirectionOutgoing, ProviderID: "wamid.out", Type: models.TypeText},
	}
	for _, m := range rows {
		if err := l.Append(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		contact, id string
		want        bool
	}{
		{"9198", "wamid.in", true},
		{"9198", "wamid.out", false},
		{"9199", "wamid.in", false},
		{"9198", "", false},
	}
	for _, tt := range tests {
		got, err := l.HasInbound(ctx, models.ChannelWhatsApp, tt.contact, tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("HasInbound(%s, %q) = %v, want %v", tt.contact, tt.id, got, tt.want)
		}
	}
}
