package billing

import "testing"

func TestCalculateFine(t *testing.T) {
	f := CalculateFine()

	if f.FineAmount != 100 {
		t.Errorf("unexpected base fine: %v", f.FineAmount)
	}
	if f.CGSTOnFine != 9 {
		t.Errorf("unexpected CGST: %v", f.CGSTOnFine)
	}
	if f.SGSTOnFine != 9 {
		t.Errorf("unexpected SGST: %v", f.SGSTOnFine)
	}
	if f.TotalFineWithTax != 118 {
		t.Errorf("unexpected total: %v", f.TotalFineWithTax)
	}
}

func TestRateFor(t *testing.T) {
	cases := []struct {
		plan string
		want float64
	}{
		{"Domestic", 5},
		{"domestic", 5},
		{"COMMERCIAL", 10},
		{"Industrial", 15},
	}
	for _, tc := range cases {
		got, err := RateFor(tc.plan)
		if err != nil {
			t.Fatalf("RateFor(%q) failed: %v", tc.plan, err)
		}
		if got != tc.want {
			t.Errorf("RateFor(%q) = %v, want %v", tc.plan, got, tc.want)
		}
	}

	if _, err := RateFor("agricultural"); err == nil {
		t.Fatalf("expected error for unknown plan")
	}
}
