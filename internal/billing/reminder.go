package billing

import (
	"fmt"
	"time"
)

// ReminderType classifies how urgently a consumer should be nudged.
type ReminderType string

const (
	ReminderNone           ReminderType = "none"
	ReminderNotice         ReminderType = "notice"  // more than 7 days left
	ReminderWarning        ReminderType = "warning" // 4-7 days left
	ReminderUrgent         ReminderType = "urgent"  // 3 days or fewer left
	ReminderOverdue        ReminderType = "overdue"
	ReminderReadingPending ReminderType = "reading_pending"
)

// deadlineDateLayout mirrors how due dates are shown to consumers.
const deadlineDateLayout = "Mon Jan 02 2006"

// ClassifyReminder picks the single reminder classification for a bill.
// Priority: a pending reading beats everything, then overdue, then the
// countdown ladder.
func ClassifyReminder(readingPending, isOverdue bool, daysUntilDeadline int, hasDeadline bool) ReminderType {
	switch {
	case readingPending:
		return ReminderReadingPending
	case !hasDeadline:
		return ReminderNone
	case isOverdue:
		return ReminderOverdue
	case daysUntilDeadline > 0 && daysUntilDeadline <= 3:
		return ReminderUrgent
	case daysUntilDeadline > 3 && daysUntilDeadline <= 7:
		return ReminderWarning
	case daysUntilDeadline > 7:
		return ReminderNotice
	default:
		return ReminderNone
	}
}

// ReminderMessage renders the human-readable reminder for a classification.
func ReminderMessage(t ReminderType, daysUntilDeadline int, deadline *time.Time, windowEnd time.Time) string {
	var due string
	if deadline != nil {
		due = deadline.Format(deadlineDateLayout)
	}
	switch t {
	case ReminderReadingPending:
		return fmt.Sprintf("Reading due: please submit your meter reading before %s to generate this month's bill.",
			windowEnd.Format(deadlineDateLayout))
	case ReminderOverdue:
		return fmt.Sprintf("OVERDUE: Your bill payment was due on %s. Please pay immediately to avoid further penalties.", due)
	case ReminderUrgent:
		return fmt.Sprintf("URGENT: Only %d day(s) left to pay your bill! Deadline: %s", daysUntilDeadline, due)
	case ReminderWarning:
		return fmt.Sprintf("REMINDER: Your bill is due in %d days. Deadline: %s", daysUntilDeadline, due)
	case ReminderNotice:
		return fmt.Sprintf("Upcoming Bill: Your next payment is due on %s (%d days remaining)", due, daysUntilDeadline)
	default:
		return ""
	}
}
