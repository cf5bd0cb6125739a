package billing

import (
	"testing"
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

// billedConsumer returns a Domestic consumer with an open 250-unit bill due
// March 30 23:59:59 (reading submitted March 10).
func billedConsumer() storage.Consumer {
	c := domesticConsumer()
	var err error
	c, _, err = ApplyReading(c, 150, time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC))
	if err != nil {
		panic(err)
	}
	return c
}

func TestEvaluate_PendingLadder(t *testing.T) {
	c := billedConsumer()
	deadline := *c.NextPaymentDeadline

	cases := []struct {
		name string
		now  time.Time
		want ReminderType
	}{
		{"more than a week out", deadline.AddDate(0, 0, -10), ReminderNotice},
		{"five days out", deadline.AddDate(0, 0, -5), ReminderWarning},
		{"two days out", deadline.AddDate(0, 0, -2), ReminderUrgent},
		{"boundary three days", deadline.AddDate(0, 0, -3), ReminderUrgent},
		{"boundary seven days", deadline.AddDate(0, 0, -7), ReminderWarning},
	}
	for _, tc := range cases {
		_, s, changed := Evaluate(c, tc.now)
		if changed {
			t.Errorf("%s: no transition expected", tc.name)
		}
		if s.ReminderType != tc.want {
			t.Errorf("%s: reminderType = %q, want %q", tc.name, s.ReminderType, tc.want)
		}
		if s.IsOverdue {
			t.Errorf("%s: not overdue yet", tc.name)
		}
		if s.TotalAmountDue != 250 {
			t.Errorf("%s: totalAmountDue = %v, want 250", tc.name, s.TotalAmountDue)
		}
		if s.ReminderMessage == "" {
			t.Errorf("%s: expected a reminder message", tc.name)
		}
	}
}

func TestEvaluate_AppliesFineOnce(t *testing.T) {
	c := billedConsumer()
	now := c.NextPaymentDeadline.AddDate(0, 0, 1)

	c2, s, changed := Evaluate(c, now)
	if !changed {
		t.Fatalf("expected a transition on first overdue evaluation")
	}
	if !s.IsOverdue || s.ReminderType != ReminderOverdue {
		t.Errorf("expected overdue classification, got %+v", s.ReminderType)
	}
	if !c2.IsFineApplied {
		t.Fatalf("fine not applied")
	}
	if s.FineDetails.TotalFineWithTax != 118 {
		t.Errorf("totalFineWithTax = %v, want 118", s.FineDetails.TotalFineWithTax)
	}
	if s.TotalAmountDue != 368 {
		t.Errorf("totalAmountDue = %v, want 368", s.TotalAmountDue)
	}
	if c2.PaymentStatus != storage.PaymentOverdue {
		t.Errorf("paymentStatus = %q, want Overdue", c2.PaymentStatus)
	}
	if c2.FineAppliedDate == nil || !c2.FineAppliedDate.Equal(now) {
		t.Errorf("fineAppliedDate = %v, want %v", c2.FineAppliedDate, now)
	}

	// Second evaluation: fine frozen, nothing to persist.
	c3, s2, changed2 := Evaluate(c2, now.AddDate(0, 0, 3))
	if changed2 {
		t.Errorf("second evaluation should not transition")
	}
	if s2.FineDetails != s.FineDetails {
		t.Errorf("fine recomputed: %+v vs %+v", s2.FineDetails, s.FineDetails)
	}
	if c3.FineAppliedDate == nil || !c3.FineAppliedDate.Equal(now) {
		t.Errorf("fineAppliedDate moved on re-evaluation")
	}
}

func TestEvaluate_BackfillsMissingDeadline(t *testing.T) {
	c := billedConsumer()
	c.NextPaymentDeadline = nil

	now := time.Date(2025, time.March, 18, 0, 0, 0, 0, time.UTC)
	c2, s, changed := Evaluate(c, now)
	if !changed {
		t.Fatalf("expected backfill to transition")
	}
	want := time.Date(2025, time.March, 30, 23, 59, 59, 0, time.UTC)
	if c2.NextPaymentDeadline == nil || !c2.NextPaymentDeadline.Equal(want) {
		t.Errorf("backfilled deadline = %v, want %v", c2.NextPaymentDeadline, want)
	}
	if s.NextPaymentDeadline == nil {
		t.Errorf("summary missing backfilled deadline")
	}
}

func TestEvaluate_AutoCorrectsZeroAmountPending(t *testing.T) {
	c := billedConsumer()
	c.Amount = 0

	c2, s, changed := Evaluate(c, time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC))
	if !changed {
		t.Fatalf("expected auto-correction to transition")
	}
	if c2.PaymentStatus != storage.PaymentPaid {
		t.Errorf("paymentStatus = %q, want Paid", c2.PaymentStatus)
	}
	if s.IsOverdue {
		t.Errorf("zero-amount bill cannot be overdue")
	}
}

func TestEvaluate_ReadingPending(t *testing.T) {
	c := domesticConsumer()
	c.PaymentStatus = storage.PaymentPaid
	lastBill := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	c.LastBillDate = &lastBill

	// Inside March's window, no March reading yet.
	_, s, changed := Evaluate(c, time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC))
	if changed {
		t.Errorf("readingPending is derived, not persisted")
	}
	if !s.ReadingPending {
		t.Fatalf("expected readingPending")
	}
	if s.ReminderType != ReminderReadingPending {
		t.Errorf("reminderType = %q, want %q", s.ReminderType, ReminderReadingPending)
	}

	// Outside the window nothing is owed.
	_, s2, _ := Evaluate(c, time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC))
	if s2.ReadingPending {
		t.Errorf("readingPending outside the window")
	}
	if s2.ReminderType != ReminderNone {
		t.Errorf("reminderType = %q, want none", s2.ReminderType)
	}

	// A reading already submitted this month clears it.
	marchBill := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	c.LastBillDate = &marchBill
	_, s3, _ := Evaluate(c, time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC))
	if s3.ReadingPending {
		t.Errorf("readingPending despite a reading this month")
	}
}

func TestEvaluate_PaidConsumerHasNoFine(t *testing.T) {
	c := billedConsumer()
	c = Settle(c, time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC))

	// Well past the old deadline: settled bills never go overdue.
	_, s, changed := Evaluate(c, time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC))
	if changed {
		t.Errorf("no transition expected for a settled consumer")
	}
	if s.IsOverdue || s.IsFineApplied {
		t.Errorf("settled consumer marked overdue/fined: %+v", s)
	}
	if s.TotalAmountDue != 0 {
		t.Errorf("totalAmountDue = %v, want 0", s.TotalAmountDue)
	}
}
