package followup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Entry binds a cron expression (UTC) to a sweep.
type Entry struct {
	Spec  string
	Sweep string
}

// DefaultSchedule is the production cadence. Times are UTC; the business
// day runs on IST, so 10:30 UTC is 16:00 IST, half an hour before a BOM.
var DefaultSchedule = []Entry{
	{Spec: "0 14 * * *", Sweep: "bom-first-reminder"},
	{Spec: "0 8 * * *", Sweep: "bom-second-reminder"},
	{Spec: "30 9 * * 0", Sweep: "bom-pre-meeting"},
	{Spec: "30 10 * * 1-6", Sweep: "bom-pre-meeting"},
	{Spec: "50 9 * * 0", Sweep: "bom-not-ready"},
	{Spec: "50 10 * * 1-6", Sweep: "bom-not-ready"},
	{Spec: "0 11 * * 0", Sweep: "bom-no-code"},
	{Spec: "0 12 * * 1-6", Sweep: "bom-no-code"},
	{Spec: "0 13 * * 6", Sweep: "bit-first-reminder"},
	{Spec: "0 10 * * 0", Sweep: "bit-second-reminder"},
}

// Runner is what the scheduler triggers.
type Runner interface {
	Run(ctx context.Context, name string) (*Report, error)
}

// Scheduler runs sweeps on a cron table. An overlapping run of the same
// entry is skipped.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(ctx context.Context, runner Runner, entries []Entry) (*Scheduler, error) {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	for _, e := range entries {
		name := e.Sweep
		_, err := c.AddFunc(e.Spec, func() {
			report, err := runner.Run(ctx, name)
			if err != nil {
				log.Printf("[Cron] sweep %s failed: %v", name, err)
				return
			}
			log.Printf("[Cron] sweep %s: processed=%d sent=%d failed=%d", name, report.Processed, report.Sent, report.Failed)
		})
		if err != nil {
			return nil, fmt.Errorf("cron entry %q for %s: %w", e.Spec, e.Sweep, err)
		}
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Len is the number of scheduled entries.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}
