package offers

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	offers   []string
	selected string
	expires  time.Time
}

// MemoryStore keeps offers in process memory. A restart loses them and the
// lead has to start slot selection again.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]*entry), now: time.Now}
}

// live returns the contact's entry, dropping it when expired. Caller holds mu.
func (s *MemoryStore) live(contact string) *entry {
	e, ok := s.entries[contact]
	if !ok {
		return nil
	}
	if s.ttl > 0 && !s.now().Before(e.expires) {
		delete(s.entries, contact)
		return nil
	}
	return e
}

// prune drops every expired entry. Caller holds mu.
func (s *MemoryStore) prune() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
}

func (s *MemoryStore) PutOffers(_ context.Context, contact string, offers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.entries[contact] = &entry{
		offers:  append([]string(nil), offers...),
		expires: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Offer(_ context.Context, contact string, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(contact)
	if e == nil || index < 1 || index > len(e.offers) {
		return "", ErrNoOffer
	}
	return e.offers[index-1], nil
}

func (s *MemoryStore) Select(_ context.Context, contact, offer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(contact)
	if e == nil {
		e = &entry{}
		s.entries[contact] = e
	}
	e.selected = offer
	e.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Selected(_ context.Context, contact string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(contact)
	if e == nil || e.selected == "" {
		return "", ErrNoOffer
	}
	return e.selected, nil
}

func (s *MemoryStore) Clear(_ context.Context, contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, contact)
	return nil
}
