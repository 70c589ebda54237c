package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Notifier delivers an outbound message to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SchedulerOptions configures NewScheduler.
type SchedulerOptions struct {
	Logger   *zap.Logger
	Now      func() time.Time
	Defaults Settings

	// Scan runs the paper pipeline; nil disables the scan job
	Scan func(ctx context.Context) (*ScanResult, error)

	Notifier Notifier
}

// Scheduler runs the daily scan and digest jobs and the reminder tick.
type Scheduler struct {
	store    *Store
	log      *zap.Logger
	now      func() time.Time
	defaults Settings
	scan     func(ctx context.Context) (*ScanResult, error)
	notifier Notifier
	composer *Composer

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]scheduledJob
}

type scheduledJob struct {
	spec string
	id   cron.EntryID
}

const (
	jobScan   = "scan"
	jobDigest = "digest"
)

// NewScheduler creates a scheduler. Call Run to start it.
func NewScheduler(store *Store, opts *SchedulerOptions) *Scheduler {
	if opts == nil {
		opts = &SchedulerOptions{}
	}
	s := &Scheduler{
		store:    store,
		log:      nopIfNil(opts.Logger),
		now:      opts.Now,
		defaults: opts.Defaults,
		scan:     opts.Scan,
		notifier: opts.Notifier,
		entries:  make(map[string]scheduledJob),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.composer = NewComposer(store, &ComposerOptions{Now: s.now, Defaults: s.defaults})

	cronLog := cron.PrintfLogger(zap.NewStdLog(s.log.Named("cron")))
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	return s
}

// Run registers the jobs and blocks until ctx is cancelled. Running jobs
// are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1m", func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule reminder tick: %w", err)
	}
	s.cron.Start()
	s.log.Info("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// tick sends due reminders and picks up changed schedule settings.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.SendReminders(ctx); err != nil {
		s.log.Error("send reminders", zap.Error(err))
	}
	if err := s.Reload(ctx); err != nil {
		s.log.Error("reload schedule", zap.Error(err))
	}
}

// cronSpec returns a daily cron spec for an HH:MM clock in tz.
func cronSpec(clock, tz string) (string, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, minute, hour), nil
}

// Reload reads the settings and re-registers any daily job whose time or
// timezone changed.
func (s *Scheduler) Reload(ctx context.Context) error {
	st, err := s.store.LoadSettings(ctx, s.defaults)
	if err != nil {
		return err
	}
	if _, err := st.Location(); err != nil {
		return err
	}
	digestSpec, err := cronSpec(st.DigestTime, st.Timezone)
	if err != nil {
		return &ConfigError{Field: "morning_digest_time", Reason: err.Error()}
	}
	wanted := map[string]string{jobDigest: digestSpec}
	if s.scan != nil {
		scanSpec, err := cronSpec(st.PaperScanTime, st.Timezone)
		if err != nil {
			return &ConfigError{Field: "paper_scan_time", Reason: err.Error()}
		}
		wanted[jobScan] = scanSpec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, spec := range wanted {
		if cur, ok := s.entries[name]; ok {
			if cur.spec == spec {
				continue
			}
			s.cron.Remove(cur.id)
		}
		id, err := s.cron.AddFunc(spec, s.job(ctx, name))
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		s.entries[name] = scheduledJob{spec: spec, id: id}
		s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	}
	return nil
}

func (s *Scheduler) job(ctx context.Context, name string) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		var err error
		switch name {
		case jobScan:
			err = s.RunScan(ctx)
		case jobDigest:
			err = s.SendDigest(ctx)
		}
		if err != nil {
			s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// RunScan runs the pipeline once and reports the result to the user.
func (s *Scheduler) RunScan(ctx context.Context) error {
	if s.scan == nil {
		return nil
	}
	res, err := s.scan(ctx)
	if err != nil {
		return fmt.Errorf("paper scan: %w", err)
	}
	if res.Accepted > 0 {
		s.notify(ctx, formatScanResult(res))
	}
	return nil
}

// SendDigest composes and delivers the morning digest. last_digest is
// only recorded once delivery succeeded.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	d, err := s.composer.Compose(ctx)
	if err != nil {
		return fmt.Errorf("compose digest: %w", err)
	}
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.Notify(ctx, d.Text()); err != nil {
		return &ExternalServiceError{Service: "telegram", Op: "send digest", Err: err}
	}
	s.log.Info("digest sent", zap.Int("tasks", len(d.Tasks)), zap.Int("papers", len(d.Papers)))
	return s.store.SetStateTime(ctx, StateLastDigest, d.Now)
}

// SendReminders notifies every overdue task that has not been reminded
// yet and stamps it.
func (s *Scheduler) SendReminders(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	now := s.now()
	tasks, err := s.store.DueForReminder(ctx, now)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}
	st, err := s.store.LoadSettings(ctx, s.defaults)
	if err != nil {
		return err
	}
	loc, err := st.Location()
	if err != nil {
		return err
	}
	reminder, _ := s.notifier.(TaskReminder)
	for i := range tasks {
		t := &tasks[i]
		text := "Reminder: " + formatTaskLine(t, loc)
		if reminder != nil {
			err = reminder.Remind(ctx, t, text)
		} else {
			err = s.notifier.Notify(ctx, text)
		}
		if err != nil {
			s.log.Warn("reminder not delivered", zap.Int64("task_id", t.ID), zap.Error(err))
			continue
		}
		if err := s.store.MarkReminded(ctx, t.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Warn("notification not delivered", zap.Error(err))
	}
}
