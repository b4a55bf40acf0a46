package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BUSINESS_TZ", "Asia/Kolkata")
	t.Setenv("OFFER_TTL", "2h")
	t.Setenv("SECOND_REMINDER_REQUIRES_CONFIRM", "true")
	t.Setenv("SWEEP_SEND_DELAY", "not-a-duration")

	cfg := LoadConfig()

	if cfg.OfferTTL != 2*time.Hour {
		t.Fatalf("OfferTTL = %v, want 2h", cfg.OfferTTL)
	}
	if !cfg.SecondReminderRequiresConfirm {
		t.Fatalf("expected SecondReminderRequiresConfirm to be true")
	}
	if cfg.SweepSendDelay != 500*time.Millisecond {
		t.Fatalf("SweepSendDelay = %v, want fallback 500ms", cfg.SweepSendDelay)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Fatalf("Location = %s", loc)
	}
}
