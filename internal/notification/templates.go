package notification

import (
	"fmt"

	"github.com/smarteb/smarteb/internal/billing"
)

// ReminderKind selects which reminder email to render.
type ReminderKind string

const (
	ReminderUpcoming ReminderKind = "upcoming"
	ReminderUrgent   ReminderKind = "urgent"
	ReminderOverdue  ReminderKind = "overdue"
)

const emailDateLayout = "Mon Jan 02 2006"

// RenderReminder builds the subject and HTML body for a bill reminder.
func RenderReminder(kind ReminderKind, s billing.Summary) (subject, body string) {
	due := ""
	if s.NextPaymentDeadline != nil {
		due = s.NextPaymentDeadline.Format(emailDateLayout)
	}

	switch kind {
	case ReminderOverdue:
		subject = fmt.Sprintf("OVERDUE: Electricity bill for %s", s.ConsumerNumber)
		body = fmt.Sprintf(
			`<p>Dear %s,</p>
<p>Your electricity bill of <b>&#8377;%.2f</b> was due on <b>%s</b> and is now overdue.</p>
<p>A late payment fine of <b>&#8377;%.2f</b> (including CGST and SGST) has been applied. Total amount due: <b>&#8377;%.2f</b>.</p>
<p>Please pay immediately to avoid disconnection.</p>`,
			s.Name, s.BillAmount, due, s.FineDetails.TotalFineWithTax, s.TotalAmountDue)
	case ReminderUrgent:
		subject = fmt.Sprintf("URGENT: Electricity bill due in %d day(s)", s.DaysUntilDeadline)
		body = fmt.Sprintf(
			`<p>Dear %s,</p>
<p>Only <b>%d day(s)</b> left to pay your electricity bill of <b>&#8377;%.2f</b>.</p>
<p>Deadline: <b>%s</b>. A fine of &#8377;%.2f will be applied after the deadline.</p>`,
			s.Name, s.DaysUntilDeadline, s.TotalAmountDue, due, billing.CalculateFine().TotalFineWithTax)
	default:
		subject = fmt.Sprintf("Reminder: Electricity bill due on %s", due)
		body = fmt.Sprintf(
			`<p>Dear %s,</p>
<p>Your electricity bill of <b>&#8377;%.2f</b> is due in <b>%d days</b> (deadline: %s).</p>
<p>Consumer number: %s</p>`,
			s.Name, s.TotalAmountDue, s.DaysUntilDeadline, due, s.ConsumerNumber)
	}
	return subject, body
}
