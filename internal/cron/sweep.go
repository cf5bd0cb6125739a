package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/smarteb/smarteb/internal/alerting"
	"github.com/smarteb/smarteb/internal/auth"
	"github.com/smarteb/smarteb/internal/billing"
	"github.com/smarteb/smarteb/internal/metrics"
	"github.com/smarteb/smarteb/internal/notification"
	"github.com/smarteb/smarteb/internal/storage"
)

// EmailSender is the part of the notification service the sweep needs.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SweepStats summarizes one reminder sweep over all consumers.
type SweepStats struct {
	Total    int
	Fined    int
	Sent     int
	Failures []alerting.ConsumerFailure
}

// RunSweep evaluates every consumer's bill state at now, persists any
// transitions (fines, backfilled deadlines, status corrections) and sends at
// most one reminder email per threshold per cycle. Sent flags live on the
// consumer and are reset by reading ingestion and settlement, so a consumer
// gets the 7-day, 3-day and overdue mails once each.
func RunSweep(ctx context.Context, store storage.Storage, sender EmailSender, now time.Time) (SweepStats, error) {
	var stats SweepStats

	list, err := store.ListConsumers(ctx)
	if err != nil {
		return stats, fmt.Errorf("list consumers: %w", err)
	}
	stats.Total = len(list)

	emails, err := consumerEmails(ctx, store)
	if err != nil {
		return stats, fmt.Errorf("list users: %w", err)
	}

	for _, c := range list {
		if err := sweepOne(ctx, store, sender, emails, c, now, &stats); err != nil {
			stats.Failures = append(stats.Failures, alerting.ConsumerFailure{
				ConsumerNumber: c.ConsumerNumber,
				Error:          err.Error(),
			})
		}
	}

	if len(stats.Failures) > 0 {
		return stats, fmt.Errorf("sweep failed for %d of %d consumers", len(stats.Failures), stats.Total)
	}
	return stats, nil
}

func sweepOne(ctx context.Context, store storage.Storage, sender EmailSender, emails map[string]string, c storage.Consumer, now time.Time, stats *SweepStats) error {
	fineWasApplied := c.IsFineApplied
	updated, summary, changed := billing.Evaluate(c, now)
	if changed {
		updated.UpdatedAt = time.Now()
		if err := store.SaveConsumer(ctx, updated); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		if updated.IsFineApplied && !fineWasApplied {
			stats.Fined++
			metrics.FinesAppliedTotal.Inc()
		}
	}

	kind, flag := dueReminder(&updated, summary)
	if kind == "" {
		return nil
	}

	to, ok := emails[c.ConsumerNumber]
	if !ok || to == "" {
		// No login with an email on file; the dashboard reminder will have
		// to do.
		return nil
	}

	subject, body := notification.RenderReminder(kind, summary)
	if err := sender.SendEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send %s reminder: %w", kind, err)
	}
	stats.Sent++
	metrics.RemindersSentTotal.WithLabelValues(string(kind)).Inc()
	log.Printf("cron: sent %s reminder to consumer %s", kind, c.ConsumerNumber)

	*flag = true
	updated.UpdatedAt = time.Now()
	if err := store.SaveConsumer(ctx, updated); err != nil {
		return fmt.Errorf("save sent flag: %w", err)
	}
	return nil
}

// dueReminder picks the email owed right now, if any, and the sent flag that
// records it. Overdue wins over the countdown thresholds.
func dueReminder(c *storage.Consumer, s billing.Summary) (notification.ReminderKind, *bool) {
	switch {
	case s.IsOverdue && !c.OverdueReminderSent:
		return notification.ReminderOverdue, &c.OverdueReminderSent
	case !s.IsOverdue && s.NextPaymentDeadline != nil &&
		s.DaysUntilDeadline > 0 && s.DaysUntilDeadline <= 3 && !c.ReminderSent3Days:
		return notification.ReminderUrgent, &c.ReminderSent3Days
	case !s.IsOverdue && s.NextPaymentDeadline != nil &&
		s.DaysUntilDeadline > 3 && s.DaysUntilDeadline <= 7 && !c.ReminderSent7Days:
		return notification.ReminderUpcoming, &c.ReminderSent7Days
	default:
		return "", nil
	}
}

// consumerEmails maps consumer numbers to the email of their login, when one
// exists.
func consumerEmails(ctx context.Context, store storage.Storage) (map[string]string, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, u := range users {
		if u.Role == auth.RoleConsumer && u.ConsumerNumber != "" && u.Email != "" {
			out[u.ConsumerNumber] = u.Email
		}
	}
	return out, nil
}
