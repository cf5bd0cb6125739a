package billing

import (
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

// Settle marks a consumer's outstanding bill as paid and closes the billing
// cycle. The amount actually settled (bill plus any applied fine) is recorded
// as lastPaidAmount, all fine and reminder state is reset, and the deadline
// is cleared: no new deadline opens until the next reading is submitted.
func Settle(c storage.Consumer, now time.Time) storage.Consumer {
	paid := c.Amount
	if c.IsFineApplied {
		paid += c.TotalFineWithTax
	}

	c.PaymentStatus = storage.PaymentPaid
	c.LastPaymentDate = &now
	c.LastPaidAmount = round2(paid)
	c.Amount = 0
	c.NextPaymentDeadline = nil

	c.IsFineApplied = false
	c.FineAmount = 0
	c.CGSTOnFine = 0
	c.SGSTOnFine = 0
	c.TotalFineWithTax = 0
	c.FineAppliedDate = nil

	c.ReminderSent7Days = false
	c.ReminderSent3Days = false
	c.OverdueReminderSent = false

	return c
}
