// Package messagingtest provides an in-memory ChannelSender for tests.
package messagingtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadfunnel/internal/messaging"
)

// ErrInjected is returned for recipients registered with FailFor.
var ErrInjected = errors.New("injected send failure")

// Sent is one captured outbound message.
type Sent struct {
	To         string
	Template   string
	Params     []messaging.Param
	Rendered   string
	Buttons    []string
	Text       string
	ProviderID string
}

// Param returns the value of the named parameter, or "".
func (s Sent) Param(name string) string {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

type Sender struct {
	Prefix string
	// Delay stalls every send, to hold concurrent callers in flight.
	Delay time.Duration
	// BeforeSend, when set, runs ahead of each send with the recipient.
	BeforeSend func(to string)

	mu   sync.Mutex
	seq  int
	sent []Sent
	fail map[string]bool
}

func NewSender(prefix string) *Sender {
	return &Sender{Prefix: prefix, fail: make(map[string]bool)}
}

// FailFor makes every send to the recipient fail.
func (s *Sender) FailFor(to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[to] = true
}

func (s *Sender) SendTemplate(_ context.Context, to string, msg messaging.TemplateMessage) (string, error) {
	return s.capture(Sent{To: to, Template: msg.Name, Params: msg.Params, Rendered: msg.Rendered, Buttons: msg.Buttons})
}

func (s *Sender) SendText(_ context.Context, to, text string) (string, error) {
	return s.capture(Sent{To: to, Text: text})
}

func (s *Sender) capture(m Sent) (string, error) {
	if s.BeforeSend != nil {
		s.BeforeSend(m.To)
	}
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[m.To] {
		return "", ErrInjected
	}
	s.seq++
	m.ProviderID = fmt.Sprintf("%s%d", s.Prefix, s.seq)
	s.sent = append(s.sent, m)
	return m.ProviderID, nil
}

// Sent returns a copy of everything sent so far.
func (s *Sender) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// Last returns the most recent send; ok is false when nothing was sent.
func (s *Sender) Last() (Sent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Sent{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// To returns the sends addressed to one recipient.
func (s *Sender) To(to string) []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Sent
	for _, m := range s.sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
