package billing

import (
	"testing"
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

func TestSettle(t *testing.T) {
	c := billedConsumer()
	paidAt := time.Date(2025, time.March, 25, 11, 0, 0, 0, time.UTC)

	got := Settle(c, paidAt)

	if got.PaymentStatus != storage.PaymentPaid {
		t.Errorf("paymentStatus = %q, want Paid", got.PaymentStatus)
	}
	if got.LastPaidAmount != 250 {
		t.Errorf("lastPaidAmount = %v, want 250", got.LastPaidAmount)
	}
	if got.Amount != 0 {
		t.Errorf("amount = %v, want 0", got.Amount)
	}
	if got.NextPaymentDeadline != nil {
		t.Errorf("deadline should be cleared until the next reading, got %v", got.NextPaymentDeadline)
	}
	if got.LastPaymentDate == nil || !got.LastPaymentDate.Equal(paidAt) {
		t.Errorf("lastPaymentDate = %v, want %v", got.LastPaymentDate, paidAt)
	}
}

func TestSettle_IncludesAppliedFine(t *testing.T) {
	c := billedConsumer()
	overdueAt := c.NextPaymentDeadline.AddDate(0, 0, 2)
	c, _, _ = Evaluate(c, overdueAt)
	if !c.IsFineApplied {
		t.Fatalf("precondition: fine not applied")
	}

	got := Settle(c, overdueAt.AddDate(0, 0, 1))

	if got.LastPaidAmount != 368 {
		t.Errorf("lastPaidAmount = %v, want 368 (250 bill + 118 fine)", got.LastPaidAmount)
	}
	if got.IsFineApplied || got.FineAmount != 0 || got.CGSTOnFine != 0 || got.SGSTOnFine != 0 || got.TotalFineWithTax != 0 {
		t.Errorf("fine state not cleared: %+v", got)
	}
	if got.FineAppliedDate != nil {
		t.Errorf("fineAppliedDate not cleared")
	}
	if got.ReminderSent7Days || got.ReminderSent3Days || got.OverdueReminderSent {
		t.Errorf("reminder flags not cleared")
	}
}
