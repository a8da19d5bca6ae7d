package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/boardsync/internal/logging"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr parses as a 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("audit: schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler runs the audit on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron *cron.Cron
	db   *gorm.DB
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	running bool
	last    *Report
}

// NewScheduler registers an audit at expr.
func NewScheduler(db *gorm.DB, expr string, opts Options) (*Scheduler, error) {
	if err := ValidateSchedule(expr); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Scheduler{
		cron: cron.New(cron.WithParser(cronParser)),
		db:   db,
		opts: opts,
		log:  opts.Logger,
	}
	if _, err := s.cron.AddFunc(expr, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("audit: schedule %q: %w", expr, err)
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("sequence auditor scheduled", slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce runs an audit now unless one is already running.
func (s *Scheduler) RunOnce(ctx context.Context) *Report {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("sequence audit already running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	report, err := Run(ctx, s.db, s.opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		s.log.Error("sequence audit failed", logging.Err(err))
		return nil
	}
	s.last = report
	return report
}

// Last returns the most recent successful report.
func (s *Scheduler) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
