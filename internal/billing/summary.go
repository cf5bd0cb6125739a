package billing

import (
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

// Summary is the full bill view for a consumer at a given instant: profile
// fields plus the derived deadline, fine and reminder state.
type Summary struct {
	ConsumerNumber    string `json:"consumerNumber"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	PhoneNumber       string `json:"phoneNumber"`
	MeterSerialNumber string `json:"meterSerialNumber"`
	TariffPlan        string `json:"tariffPlan"`

	BillAmount      float64    `json:"billAmount"`
	CurrentReading  float64    `json:"currentReading"`
	RatePerUnit     float64    `json:"ratePerUnit"`
	PaymentStatus   string     `json:"paymentStatus"`
	LastPaymentDate *time.Time `json:"lastPaymentDate,omitempty"`
	LastPaidAmount  float64    `json:"lastPaidAmount"`

	NextPaymentDeadline *time.Time `json:"nextPaymentDeadline,omitempty"`
	DaysUntilDeadline   int        `json:"daysUntilDeadline"`
	IsOverdue           bool       `json:"isOverdue"`

	IsFineApplied bool        `json:"isFineApplied"`
	FineDetails   FineDetails `json:"fineDetails"`

	TotalAmountDue float64 `json:"totalAmountDue"`

	ReminderMessage string       `json:"reminderMessage"`
	ReminderType    ReminderType `json:"reminderType"`

	ReadingPending     bool      `json:"readingPending"`
	ReadingWindowStart time.Time `json:"readingWindowStart"`
	ReadingWindowEnd   time.Time `json:"readingWindowEnd"`

	LastReadingUnits float64    `json:"lastReadingUnits"`
	LastReadingDate  *time.Time `json:"lastReadingDate,omitempty"`
}

// Evaluate runs the per-cycle bill state machine for one consumer at `now`
// and returns the (possibly) transitioned consumer, the summary view, and
// whether the consumer changed and must be persisted. Keeping the transition
// explicit makes the fine application visible to callers instead of hiding a
// write inside a query.
//
// Transitions handled:
//   - backfill of a missing deadline on an unpaid bill
//   - auto-correction of a zero-amount Pending bill to Paid
//   - one-time application of the overdue fine (idempotent afterwards)
func Evaluate(c storage.Consumer, now time.Time) (storage.Consumer, Summary, bool) {
	changed := false

	// Between cycles and inside this month's window with no reading yet:
	// the consumer owes us a reading, not a payment.
	readingPending := c.PaymentStatus == storage.PaymentPaid &&
		InReadingWindow(now) &&
		(c.LastBillDate == nil || c.LastBillDate.Before(ReadingWindowStart(now)))

	// Backfill a deadline for unpaid bills that predate deadline tracking.
	if c.NextPaymentDeadline == nil && c.Amount > 0 && c.PaymentStatus != storage.PaymentPaid {
		base := now
		if c.LastBillDate != nil {
			base = *c.LastBillDate
		}
		d := ComputePaymentDeadline(base)
		c.NextPaymentDeadline = &d
		changed = true
	}

	var daysUntil int
	isOverdue := false
	if c.NextPaymentDeadline != nil {
		daysUntil = DaysUntil(*c.NextPaymentDeadline, now)
		isOverdue = now.After(*c.NextPaymentDeadline) && c.PaymentStatus != storage.PaymentPaid
	}

	// Stale state fix: a Pending bill with nothing owed is settled.
	if c.Amount == 0 && c.PaymentStatus == storage.PaymentPending {
		c.PaymentStatus = storage.PaymentPaid
		c.NextPaymentDeadline = nil
		daysUntil = 0
		isOverdue = false
		changed = true
	}

	var fine FineDetails
	if isOverdue && !c.IsFineApplied {
		fine = CalculateFine()
		c.FineAmount = fine.FineAmount
		c.CGSTOnFine = fine.CGSTOnFine
		c.SGSTOnFine = fine.SGSTOnFine
		c.TotalFineWithTax = fine.TotalFineWithTax
		c.IsFineApplied = true
		appliedAt := now
		c.FineAppliedDate = &appliedAt
		c.PaymentStatus = storage.PaymentOverdue
		changed = true
	} else if c.IsFineApplied {
		// Frozen at first application; never recomputed.
		fine = FineDetails{
			FineAmount:       c.FineAmount,
			CGSTOnFine:       c.CGSTOnFine,
			SGSTOnFine:       c.SGSTOnFine,
			TotalFineWithTax: c.TotalFineWithTax,
		}
	}

	total := c.Amount
	if c.IsFineApplied {
		total += c.TotalFineWithTax
	}

	reminderType := ClassifyReminder(readingPending, isOverdue, daysUntil, c.NextPaymentDeadline != nil)
	message := ReminderMessage(reminderType, daysUntil, c.NextPaymentDeadline, ReadingWindowEnd(now))

	s := Summary{
		ConsumerNumber:    c.ConsumerNumber,
		Name:              c.Name,
		Address:           c.Address,
		PhoneNumber:       c.PhoneNumber,
		MeterSerialNumber: c.MeterSerialNumber,
		TariffPlan:        c.TariffPlan,

		BillAmount:      c.Amount,
		CurrentReading:  c.CurrentReading,
		PaymentStatus:   c.PaymentStatus,
		LastPaymentDate: c.LastPaymentDate,
		LastPaidAmount:  c.LastPaidAmount,

		NextPaymentDeadline: c.NextPaymentDeadline,
		DaysUntilDeadline:   daysUntil,
		IsOverdue:           isOverdue,

		IsFineApplied: c.IsFineApplied,
		FineDetails:   fine,

		TotalAmountDue: round2(total),

		ReminderMessage: message,
		ReminderType:    reminderType,

		ReadingPending:     readingPending,
		ReadingWindowStart: ReadingWindowStart(now),
		ReadingWindowEnd:   ReadingWindowEnd(now),
	}

	if rate, err := RateFor(c.TariffPlan); err == nil {
		s.RatePerUnit = rate
	}
	if last := c.LastReading(); last != nil {
		s.LastReadingUnits = last.Units
		d := last.Date
		s.LastReadingDate = &d
	}

	return c, s, changed
}
