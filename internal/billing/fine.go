package billing

import "math"

// Late-payment penalty: a flat base fine taxed with CGST and SGST.
const (
	FlatFineAmount = 100.0
	CGSTRate       = 0.09
	SGSTRate       = 0.09
)

// FineDetails is the penalty breakdown applied to an overdue bill. Once a
// fine is applied its values are frozen for the rest of the billing cycle.
type FineDetails struct {
	FineAmount       float64 `json:"fineAmount"`
	CGSTOnFine       float64 `json:"cgstOnFine"`
	SGSTOnFine       float64 `json:"sgstOnFine"`
	TotalFineWithTax float64 `json:"totalFineWithTax"`
}

// CalculateFine computes the flat overdue fine with tax: 100 + 9% CGST +
// 9% SGST = 118.
func CalculateFine() FineDetails {
	fine := FlatFineAmount
	cgst := fine * CGSTRate
	sgst := fine * SGSTRate
	return FineDetails{
		FineAmount:       round2(fine),
		CGSTOnFine:       round2(cgst),
		SGSTOnFine:       round2(sgst),
		TotalFineWithTax: round2(fine + cgst + sgst),
	}
}

// round2 rounds a monetary value to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
