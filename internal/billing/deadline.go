package billing

import "time"

const (
	// ReadingWindowEndDay is the last day of the monthly reading window.
	// Consumers may submit a reading from the 1st through the end of this
	// day; all readings inside the window share one due date so cycles
	// stay aligned across the customer base.
	ReadingWindowEndDay = 15

	// PaymentTermDays is how long after the baseline a bill stays payable
	// without penalty.
	PaymentTermDays = 15
)

// ReadingWindowStart returns the opening instant of the reading window for
// the month containing t.
func ReadingWindowStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// ReadingWindowEnd returns the closing instant of the reading window for the
// month containing t: the 15th at 23:59:59.
func ReadingWindowEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), ReadingWindowEndDay, 23, 59, 59, 0, t.Location())
}

// InReadingWindow reports whether t falls inside its month's reading window.
func InReadingWindow(t time.Time) bool {
	return !t.After(ReadingWindowEnd(t))
}

// ComputePaymentDeadline derives the payment deadline for a reading. A
// reading submitted on or before the 15th baselines on the window end, so
// every reading in the window converges on the same due date. A reading
// submitted after the 15th baselines on its own date instead; the deadline
// then floats relative to submission.
func ComputePaymentDeadline(readingDate time.Time) time.Time {
	base := ReadingWindowEnd(readingDate)
	if readingDate.After(base) {
		base = readingDate
	}
	return base.AddDate(0, 0, PaymentTermDays)
}

// DaysUntil returns the whole days remaining from now until the deadline,
// rounding partial days up. Past deadlines yield negative values.
func DaysUntil(deadline, now time.Time) int {
	diff := deadline.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}
