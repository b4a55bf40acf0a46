package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	contact := "whatsapp:919800000001"

	if _, err := s.Offer(ctx, contact, 1); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("empty store: err = %v, want ErrNoOffer", err)
	}

	offers := []string{"Today, 03.03.25, 16:30 IST", "Tomorrow, 04.03.25, 16:30 IST"}
	if err := s.PutOffers(ctx, contact, offers); err != nil {
		t.Fatalf("PutOffers: %v", err)
	}
	got, err := s.Offer(ctx, contact, 2)
	if err != nil || got != offers[1] {
		t.Fatalf("Offer(2) = %q, %v", got, err)
	}
	if _, err := s.Offer(ctx, contact, 3); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("Offer(3) err = %v", err)
	}

	if err := s.Select(ctx, contact, offers[0]); err != nil {
		t.Fatalf("Select: %v", err)
	}
	sel, err := s.Selected(ctx, contact)
	if err != nil || sel != offers[0] {
		t.Fatalf("Selected = %q, %v", sel, err)
	}

	if _, err := s.Selected(ctx, "whatsapp:other"); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("other contact sees offers: %v", err)
	}

	if err := s.Clear(ctx, contact); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Selected(ctx, contact); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("after Clear err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.PutOffers(ctx, "c", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := s.Offer(ctx, "c", 1); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("expected expired offer, got %v", err)
	}
}

func TestMemoryStorePrunesAbandonedContacts(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		if err := s.PutOffers(ctx, c, []string{"x"}); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := s.PutOffers(ctx, "d", []string{"y"}); err != nil {
		t.Fatal(err)
	}
	if n := len(s.entries); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
}

func TestZeroTTLKeepsOffers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stores := map[string]Store{
		"memory": NewMemoryStore(0),
		"redis":  NewRedisStoreWithClient(rdb, 0),
	}
	ctx := context.Background()
	for name, s := range stores {
		if err := s.PutOffers(ctx, "c", []string{"a", "b"}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := s.Select(ctx, "c", "a"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got, err := s.Offer(ctx, "c", 2); err != nil || got != "b" {
			t.Errorf("%s: Offer(2) = %q, %v", name, got, err)
		}
		if got, err := s.Selected(ctx, "c"); err != nil || got != "a" {
			t.Errorf("%s: Selected = %q, %v", name, got, err)
		}
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(rdb, time.Hour)
	t.Cleanup(func() { s.Close() })

	exerciseStore(t, s)

	ctx := context.Background()
	if err := s.PutOffers(ctx, "c", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := s.Offer(ctx, "c", 1); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("expected expired offer, got %v", err)
	}
}

func TestNewRedisStoreRejectsBadURI(t *testing.T) {
	if _, err := NewRedisStore("not a uri", time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
