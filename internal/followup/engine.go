// Package followup runs the scheduled, idempotent follow-up sweeps over the
// lead population: reminders, meeting links and escalations.
package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"leadfunnel/internal/leads"
	"leadfunnel/internal/links"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"
	"leadfunnel/internal/observability"
	"leadfunnel/internal/schedule"

	"github.com/google/uuid"
)

var (
	ErrUnknownSweep = errors.New("unknown sweep")
	ErrNoLink       = errors.New("no meeting link published for today")
)

// LeadStore is the subset of the lead repository the sweeps use.
type LeadStore interface {
	Find(ctx context.Context, scopes ...leads.Scope) ([]models.Lead, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
}

// LinkSource returns the link published for the day containing now.
type LinkSource interface {
	ForDay(ctx context.Context, t models.MeetingType, now time.Time) (*models.Link, error)
}

type Sender interface {
	SendTemplate(ctx context.Context, to messaging.Contact, name string, params []messaging.Param) (*models.Message, error)
}

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped" // no longer due when its turn came
)

// Detail is the outcome for one lead.
type Detail struct {
	LeadID  uint   `json:"lead_id"`
	Contact string `json:"contact"`
	Name    string `json:"lead_name,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes one sweep run. It is returned even when the run fails.
type Report struct {
	RunID      string    `json:"run_id"`
	Sweep      string    `json:"sweep"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Details    []Detail  `json:"details"`
	Error      string    `json:"error,omitempty"`
}

// SweepInfo describes a registered sweep.
type SweepInfo struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Template string   `json:"template"`
	Meeting  string   `json:"meeting"`
	Flag     string   `json:"flag"`
}

type Engine struct {
	leads  LeadStore
	links  LinkSource
	sender Sender
	loc    *time.Location
	delay  time.Duration
	now    func() time.Time
	sweeps map[string]*Sweep
	names  []string
	// one lock per sweep name: runs of the same sweep never overlap.
	running map[string]*sync.Mutex
	log     *slog.Logger
}

// Config wires an Engine.
type Config struct {
	Location *time.Location
	// SendDelay pauses between sends to stay under provider rate limits.
	SendDelay time.Duration
	Now       func() time.Time
	Sweeps    []Sweep
}

func NewEngine(leadStore LeadStore, linkSource LinkSource, sender Sender, cfg Config) (*Engine, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Engine{
		leads:  leadStore,
		links:  linkSource,
		sender: sender,
		loc:    cfg.Location,
		delay:  cfg.SendDelay,
		now:    cfg.Now,
		sweeps:  make(map[string]*Sweep),
		running: make(map[string]*sync.Mutex),
		log:     observability.WithFields("component", "followup"),
	}
	for i := range cfg.Sweeps {
		s := &cfg.Sweeps[i]
		if s.Flag == "" || !models.IsFlagColumn(s.Flag) {
			return nil, fmt.Errorf("sweep %s: invalid flag %q", s.Name, s.Flag)
		}
		for _, key := range append([]string{s.Name}, s.Aliases...) {
			if _, dup := e.sweeps[key]; dup {
				return nil, fmt.Errorf("duplicate sweep name %q", key)
			}
			e.sweeps[key] = s
		}
		e.names = append(e.names, s.Name)
		e.running[s.Name] = &sync.Mutex{}
	}
	return e, nil
}

// Sweeps lists the registered sweeps in registration order.
func (e *Engine) Sweeps() []SweepInfo {
	out := make([]SweepInfo, 0, len(e.names))
	for _, n := range e.names {
		s := e.sweeps[n]
		aliases := append([]string(nil), s.Aliases...)
		sort.Strings(aliases)
		out = append(out, SweepInfo{Name: s.Name, Aliases: aliases, Template: s.Template, Meeting: string(s.Meeting), Flag: s.Flag})
	}
	return out
}

// Run executes the named sweep (or alias) once. Per-lead failures are
// recorded in the report and do not stop the run; a missing link or a
// failed lead query aborts it before anything is sent. Concurrent runs of
// the same sweep, under its name or an alias, wait for each other.
func (e *Engine) Run(ctx context.Context, name string) (*Report, error) {
	s, ok := e.sweeps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSweep, name)
	}
	mu := e.running[s.Name]
	mu.Lock()
	defer mu.Unlock()

	now := e.now()
	report := &Report{RunID: uuid.NewString(), Sweep: s.Name, StartedAt: now.UTC(), Details: []Detail{}}
	log := e.log.With("sweep", s.Name, "run_id", report.RunID)
	defer func() { report.FinishedAt = e.now().UTC() }()

	fail := func(err error) (*Report, error) {
		report.Error = err.Error()
		log.Error("sweep aborted", "error", err)
		return report, err
	}

	link := ""
	if s.NeedLink {
		l, err := e.links.ForDay(ctx, s.Meeting, now)
		if errors.Is(err, links.ErrNotFound) {
			return fail(fmt.Errorf("%w (%s)", ErrNoLink, s.Meeting))
		}
		if err != nil {
			return fail(fmt.Errorf("load link: %w", err))
		}
		link = l.URL
	}

	start, end := schedule.DayBounds(now, e.loc, s.Day)
	scopes := []leads.Scope{
		leads.NotOptedOut(),
		leads.FlagUnset(s.Flag),
		leads.MeetingBetween(s.Meeting, start, end),
	}
	if len(s.Statuses) > 0 {
		scopes = append(scopes, leads.StatusIn(s.Meeting, s.Statuses...))
	}
	scopes = append(scopes, s.Scopes...)

	targets, err := e.leads.Find(ctx, scopes...)
	if err != nil {
		return fail(fmt.Errorf("select leads: %w", err))
	}
	log.Info("sweep selected leads", "count", len(targets))

	for i := range targets {
		if i > 0 && e.delay > 0 {
			select {
			case <-ctx.Done():
				return fail(ctx.Err())
			case <-time.After(e.delay):
			}
		}
		l := &targets[i]
		report.Processed++
		d := e.runOne(ctx, s, l, link, scopes)
		switch d.Status {
		case StatusSent:
			report.Sent++
		case StatusSkipped:
			report.Skipped++
			log.Info("lead no longer due", "lead_id", l.ID)
		default:
			report.Failed++
			log.Warn("sweep send failed", "lead_id", l.ID, "error", d.Error)
		}
		report.Details = append(report.Details, d)
	}

	log.Info("sweep finished", "processed", report.Processed, "sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// runOne re-checks the selection predicate for l right before sending, so a
// lead flagged or opted out since the selection is left alone.
func (e *Engine) runOne(ctx context.Context, s *Sweep, l *models.Lead, link string, scopes []leads.Scope) Detail {
	d := Detail{LeadID: l.ID, Contact: l.ContactRef, Name: l.Name}
	failed := func(err error) Detail {
		d.Status = StatusFailed
		d.Error = err.Error()
		return d
	}
	if l.ContactRef == "" {
		return failed(errors.New("missing contact identifier"))
	}
	due, err := e.leads.Find(ctx, append(scopes[:len(scopes):len(scopes)], leads.ByID(l.ID))...)
	if err != nil {
		return failed(fmt.Errorf("recheck lead: %w", err))
	}
	if len(due) == 0 {
		d.Status = StatusSkipped
		return d
	}

	var params []messaging.Param
	if s.Params != nil {
		params = s.Params(l, link, e.loc)
	}
	if _, err := e.sender.SendTemplate(ctx, messaging.ContactOf(l), s.Template, params); err != nil {
		return failed(err)
	}

	fields := map[string]interface{}{s.Flag: true}
	if s.Extra != nil {
		for k, v := range s.Extra(l) {
			fields[k] = v
		}
	}
	if err := e.leads.Update(ctx, l.ID, fields); err != nil {
		return failed(fmt.Errorf("sent but not flagged: %w", err))
	}
	d.Status = StatusSent
	return d
}
