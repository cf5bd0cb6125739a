package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

func domesticConsumer() storage.Consumer {
	return storage.Consumer{
		ConsumerNumber: "CN-1001",
		Name:           "A Subscriber",
		TariffPlan:     "Domestic",
		CurrentReading: 100,
		PaymentStatus:  storage.PaymentPaid,
	}
}

func TestApplyReading_DomesticScenario(t *testing.T) {
	c := domesticConsumer()
	readingDate := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)

	got, entry, err := ApplyReading(c, 150, readingDate)
	if err != nil {
		t.Fatalf("ApplyReading failed: %v", err)
	}

	if got.CurrentReading != 150 {
		t.Errorf("currentReading = %v, want 150", got.CurrentReading)
	}
	if got.Amount != 250 {
		t.Errorf("amount = %v, want 250 (50 units at rate 5)", got.Amount)
	}
	if got.PaymentStatus != storage.PaymentPending {
		t.Errorf("paymentStatus = %q, want Pending", got.PaymentStatus)
	}
	wantDeadline := time.Date(2025, time.March, 30, 23, 59, 59, 0, time.UTC)
	if got.NextPaymentDeadline == nil || !got.NextPaymentDeadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", got.NextPaymentDeadline, wantDeadline)
	}
	if got.LastBillDate == nil || !got.LastBillDate.Equal(readingDate) {
		t.Errorf("lastBillDate = %v, want %v", got.LastBillDate, readingDate)
	}

	if entry.Units != 50 {
		t.Errorf("entry units = %v, want 50", entry.Units)
	}
	if entry.ManualReading != 150 {
		t.Errorf("entry manualReading = %v, want 150", entry.ManualReading)
	}
	if entry.ConsumerNumber != c.ConsumerNumber {
		t.Errorf("entry consumerNumber = %q", entry.ConsumerNumber)
	}
}

func TestApplyReading_ClearsFineState(t *testing.T) {
	c := domesticConsumer()
	c.IsFineApplied = true
	c.FineAmount = 100
	c.CGSTOnFine = 9
	c.SGSTOnFine = 9
	c.TotalFineWithTax = 118
	applied := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	c.FineAppliedDate = &applied
	c.OverdueReminderSent = true

	got, _, err := ApplyReading(c, 200, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ApplyReading failed: %v", err)
	}

	if got.IsFineApplied || got.FineAmount != 0 || got.TotalFineWithTax != 0 || got.FineAppliedDate != nil {
		t.Errorf("fine state not cleared: %+v", got)
	}
	if got.OverdueReminderSent {
		t.Errorf("reminder flags not cleared")
	}
}

func TestApplyReading_RejectsNonIncreasing(t *testing.T) {
	c := domesticConsumer()
	when := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	for _, v := range []float64{100, 99.5, 0} {
		got, _, err := ApplyReading(c, v, when)
		if !errors.Is(err, ErrInvalidReading) {
			t.Fatalf("value %v: expected ErrInvalidReading, got %v", v, err)
		}
		if got.CurrentReading != c.CurrentReading || got.Amount != c.Amount {
			t.Errorf("value %v: consumer mutated on rejected reading", v)
		}
	}
}

func TestApplyReading_UnknownTariffPlan(t *testing.T) {
	c := domesticConsumer()
	c.TariffPlan = "agricultural"

	_, _, err := ApplyReading(c, 150, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrUnknownTariffPlan) {
		t.Fatalf("expected ErrUnknownTariffPlan, got %v", err)
	}
}

func TestApplyReading_CaseInsensitivePlan(t *testing.T) {
	c := domesticConsumer()
	c.TariffPlan = "COMMERCIAL"

	got, _, err := ApplyReading(c, 120, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ApplyReading failed: %v", err)
	}
	if got.Amount != 200 {
		t.Errorf("amount = %v, want 200 (20 units at rate 10)", got.Amount)
	}
}
