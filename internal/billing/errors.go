package billing

import "errors"

var (
	// ErrInvalidReading means a submitted meter value does not exceed the
	// stored previous reading. The consumer record is left untouched.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrUnknownTariffPlan means the consumer's tariff plan has no
	// registered rate.
	ErrUnknownTariffPlan = errors.New("unknown tariff plan")

	// ErrInvalidDate means a reading date could not be parsed.
	ErrInvalidDate = errors.New("invalid reading date")
)
