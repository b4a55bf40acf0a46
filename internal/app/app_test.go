package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"leadfunnel/internal/config"
	"leadfunnel/internal/offers"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:        "sqlite",
		DBPath:          filepath.Join(t.TempDir(), "app.db"),
		DBLogLevel:      "silent",
		BusinessTZ:      "Asia/Kolkata",
		DefaultLocale:   "en_US",
		OfferTTL:        time.Hour,
		TemplateCatalog: "../../configs/templates.yaml",
		WhatsAppAPIURL:  "http://127.0.0.1:0",
	}
}

func TestNewWiresComponents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Telegram != nil {
		t.Fatal("telegram enabled without a token")
	}
	if _, ok := a.Offers.(*offers.MemoryStore); !ok {
		t.Fatalf("offers = %T", a.Offers)
	}
	tpls, err := a.Catalog.List(context.Background())
	if err != nil || len(tpls) != 18 {
		t.Fatalf("catalog = %d, %v", len(tpls), err)
	}
	if len(a.FollowUp.Sweeps()) == 0 {
		t.Fatal("no sweeps registered")
	}

	s, err := a.Scheduler(context.Background())
	if err != nil || s.Len() == 0 {
		t.Fatalf("scheduler = %v, %v", s, err)
	}

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestNewUsesRedisWhenConfigured(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURI = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if _, ok := a.Offers.(*offers.RedisStore); !ok {
		t.Fatalf("offers = %T", a.Offers)
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.BusinessTZ = "Mars/Olympus"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected timezone error")
	}
}
