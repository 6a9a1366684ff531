package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aetherflow/aetherflow/internal/runner"
	"github.com/aetherflow/aetherflow/internal/spec"
)

// trackedEntry pairs an Entry with its parsed cron.Schedule and the next
// time it is due to fire.
type trackedEntry struct {
	Entry
	schedule cron.Schedule
	loc      *time.Location
	next     time.Time
}

// Scheduler triggers internal/runner.Run for each due Entry on Tick.
type Scheduler struct {
	entries []*trackedEntry
	logger  *slog.Logger
}

// Config configures a Scheduler.
type Config struct {
	Entries []Entry
	Logger  *slog.Logger
}

// New builds a Scheduler from cfg, computing each entry's first due time
// relative to now.
func New(cfg Config, now time.Time) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries := make([]*trackedEntry, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		schedule, loc, err := parseCronSchedule(e.CronExpr, e.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler: entry %q: %w", e.ID, err)
		}
		entries = append(entries, &trackedEntry{
			Entry:    e,
			schedule: schedule,
			loc:      loc,
			next:     schedule.Next(now.In(loc)),
		})
	}

	return &Scheduler{entries: entries, logger: logger}, nil
}

// Tick fires every entry whose next-due time has passed, advancing it to
// its following occurrence regardless of whether the fire succeeded — a
// failed trigger is surfaced via logging, not retried by the scheduler
// itself (spec.md §1's Non-goals exclude retry/backoff orchestration above
// the step level).
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, e := range s.entries {
		nowInLoc := now.In(e.loc)
		if nowInLoc.Before(e.next) {
			continue
		}
		e.next = e.schedule.Next(nowInLoc)

		entry := e.Entry
		go s.fire(ctx, entry)
	}
}

// fire loads entry's flow document and profiles, then runs it once.
func (s *Scheduler) fire(ctx context.Context, entry Entry) {
	log := s.logger.With("schedule_id", entry.ID, "flow_file", entry.FlowFile)
	log.Info("scheduler_fire")

	data, err := os.ReadFile(entry.FlowFile)
	if err != nil {
		log.Error("scheduler_fire_failed", "error", err)
		return
	}

	var profiles spec.ProfilesFileSpec
	if entry.ProfilesFile != "" {
		raw, err := os.ReadFile(entry.ProfilesFile)
		if err != nil {
			log.Error("scheduler_fire_failed", "error", err)
			return
		}
		profiles, err = spec.ParseProfiles(raw)
		if err != nil {
			log.Error("scheduler_fire_failed", "error", err)
			return
		}
	}

	summary, err := runner.Run(ctx, data, runner.Options{
		Profiles: profiles,
		EnvFiles: entry.EnvFiles,
		Logger:   log,
	})
	if err != nil {
		log.Error("scheduler_fire_failed", "error", err)
		return
	}

	log.Info("scheduler_fire_complete", "run_id", summary.RunID, "status_counts", summary.StatusCounts)
}
