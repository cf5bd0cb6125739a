package cron

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smarteb/smarteb/internal/alerting"
	"github.com/smarteb/smarteb/internal/config"
	"github.com/smarteb/smarteb/internal/metrics"
	"github.com/smarteb/smarteb/internal/notification"
	"github.com/smarteb/smarteb/internal/storage"
)

const (
	jobName = "payment_reminders"

	// Advisory lock key for the reminder sweep. In a multi-replica Postgres
	// deployment only the lock holder runs the job.
	lockKey int64 = 7201

	// scheduleSettingKey is the settings-table key that overrides the
	// configured schedule at runtime.
	scheduleSettingKey = "reminder_schedule"
)

// scheduleParser accepts both 5-field cron expressions and the 6-field
// with-seconds form used by the default schedule.
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// nextRunAfter resolves a schedule setting against the last run: plain
// integers are a period in seconds, anything else is parsed as a cron
// expression. Unparseable settings fall back to daily.
func nextRunAfter(setting string, lastRun time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return lastRun.Add(time.Duration(v) * time.Second)
	}
	if sched, err := scheduleParser.Parse(setting); err == nil {
		return sched.Next(lastRun)
	}
	log.Printf("cron: unparseable schedule %q, falling back to daily", setting)
	return lastRun.Add(24 * time.Hour)
}

// Run starts the reminder worker: a control loop that re-reads its schedule
// from the settings table, takes the advisory lock and sweeps all consumers.
// The schedule setting is either integer seconds or a cron expression.
func Run(ctx context.Context, cfg config.Config) error {
	st, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.DatabaseDSN})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	if cfg.StorageDriver != "postgrespool" {
		// Advisory locks are a no-op on this backend; fine for a single
		// worker, unsafe for replicas.
		log.Printf("cron: driver %q has no advisory locks, run a single worker only", cfg.StorageDriver)
	}

	notifier := notification.NewService(st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig(cfg.AlertWebhookURL))

	scheduleSetting := cfg.ReminderSchedule
	if val, err := st.GetSetting(ctx, scheduleSettingKey); err == nil && val != "" {
		scheduleSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// Run immediately on start, then follow the schedule.
	nextRun := time.Now()

	log.Printf("cron worker starting, schedule=%q driver=%s", scheduleSetting, cfg.StorageDriver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, scheduleSettingKey); err == nil && val != "" && val != scheduleSetting {
				log.Printf("cron: schedule updated from %q to %q", scheduleSetting, val)
				scheduleSetting = val
				nextRun = nextRunAfter(scheduleSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			gotLock, err := st.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = nextRunAfter(scheduleSetting, time.Now())
				continue
			}
			if !gotLock {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = nextRunAfter(scheduleSetting, time.Now())
				continue
			}

			var stats SweepStats
			var runErr error
			func() {
				defer func() {
					if _, err := st.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()
				stats, runErr = RunSweep(ctx, st, notifier, time.Now())
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if len(stats.Failures) > 0 {
				alert := alerting.SweepAlert{
					JobName:       jobName,
					TotalCount:    stats.Total,
					SuccessCount:  stats.Total - len(stats.Failures),
					FailedCount:   len(stats.Failures),
					Duration:      dur,
					FailedDetails: stats.Failures,
					Timestamp:     started,
				}
				if err := alerter.SendSweepAlert(ctx, alert); err != nil {
					log.Printf("cron: send sweep alert failed: %v", err)
				}
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed, consumers=%d fined=%d reminders=%d (duration=%s)",
					jobName, stats.Total, stats.Fined, stats.Sent, dur)
			}

			nextRun = nextRunAfter(scheduleSetting, time.Now())
		}
	}
}
