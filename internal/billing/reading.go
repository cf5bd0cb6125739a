package billing

import (
	"fmt"
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

// ApplyReading ingests a new absolute meter value for a consumer and opens a
// fresh billing cycle. It returns the updated consumer and the history entry
// to append; the caller persists both. On validation failure the input
// consumer is returned unchanged.
func ApplyReading(c storage.Consumer, newMeterValue float64, readingDate time.Time) (storage.Consumer, storage.MeterReading, error) {
	if newMeterValue <= c.CurrentReading {
		return c, storage.MeterReading{}, fmt.Errorf(
			"%w: current reading (%.2f) must be greater than previous reading (%.2f)",
			ErrInvalidReading, newMeterValue, c.CurrentReading)
	}

	rate, err := RateFor(c.TariffPlan)
	if err != nil {
		return c, storage.MeterReading{}, err
	}

	delta := newMeterValue - c.CurrentReading
	deadline := ComputePaymentDeadline(readingDate)

	c.CurrentReading = newMeterValue
	c.Amount = round2(delta * rate)
	c.LastBillDate = &readingDate
	c.NextPaymentDeadline = &deadline
	c.PaymentStatus = storage.PaymentPending

	// New cycle: no fine yet, reminders not sent.
	c.IsFineApplied = false
	c.FineAmount = 0
	c.CGSTOnFine = 0
	c.SGSTOnFine = 0
	c.TotalFineWithTax = 0
	c.FineAppliedDate = nil
	c.ReminderSent7Days = false
	c.ReminderSent3Days = false
	c.OverdueReminderSent = false

	entry := storage.MeterReading{
		ConsumerNumber: c.ConsumerNumber,
		Date:           readingDate,
		Units:          round2(delta),
		ManualReading:  newMeterValue,
	}
	return c, entry, nil
}
