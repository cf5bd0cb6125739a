package consumers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/smarteb/smarteb/internal/billing"
	"github.com/smarteb/smarteb/internal/metrics"
	"github.com/smarteb/smarteb/internal/ocr"
	"github.com/smarteb/smarteb/internal/storage"
)

// ErrValidation marks caller mistakes: missing fields, bad dates, unknown
// plans. Handlers map it to 400.
var ErrValidation = errors.New("validation error")

// MaxReadingMismatch is how far (in units) the OCR-extracted reading may
// disagree with the user's claimed reading and still be accepted.
const MaxReadingMismatch = 1.0

// Service owns all consumer operations: CRUD, reading ingestion, bill
// summaries, settlement and the fine roster. Billing transitions computed by
// the engine are persisted here, so handlers never write storage directly.
type Service struct {
	store storage.Storage
	ocr   *ocr.Client
}

func NewService(store storage.Storage, ocrClient *ocr.Client) *Service {
	return &Service{store: store, ocr: ocrClient}
}

func (s *Service) List(ctx context.Context) ([]storage.Consumer, error) {
	return s.store.ListConsumers(ctx)
}

func (s *Service) Get(ctx context.Context, number string) (*storage.Consumer, error) {
	c, err := s.store.GetConsumer(ctx, number)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, c storage.Consumer) (*storage.Consumer, error) {
	if c.ConsumerNumber == "" {
		return nil, fmt.Errorf("%w: consumerNumber is required", ErrValidation)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := billing.RateFor(c.TariffPlan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	existing, err := s.store.GetConsumer(ctx, c.ConsumerNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: consumer %s already exists", ErrValidation, c.ConsumerNumber)
	}

	// A fresh connection starts Pending with nothing billed; the first
	// evaluation settles it to Paid until a reading opens a cycle.
	if c.PaymentStatus == "" {
		c.PaymentStatus = storage.PaymentPending
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	if err := s.store.CreateConsumer(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update replaces the profile fields of a consumer. Billing state (readings,
// amounts, fines) is owned by the billing operations and is not touched.
func (s *Service) Update(ctx context.Context, number string, in storage.Consumer) (*storage.Consumer, error) {
	c, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Address != "" {
		c.Address = in.Address
	}
	if in.PhoneNumber != "" {
		c.PhoneNumber = in.PhoneNumber
	}
	if in.MeterSerialNumber != "" {
		c.MeterSerialNumber = in.MeterSerialNumber
	}
	if in.TariffPlan != "" {
		if _, err := billing.RateFor(in.TariffPlan); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		c.TariffPlan = in.TariffPlan
	}
	c.UpdatedAt = time.Now()

	if err := s.store.SaveConsumer(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, number string) error {
	return s.store.DeleteConsumer(ctx, number)
}

// ReadingRequest carries one submitted meter reading. Exactly one of
// CurrentReading (absolute meter value) or UnitsConsumed (delta) must be set.
type ReadingRequest struct {
	CurrentReading *float64 `json:"currentReading,omitempty"`
	UnitsConsumed  *float64 `json:"unitsConsumed,omitempty"`
	ReadingDate    string   `json:"readingDate,omitempty"` // RFC 3339 or YYYY-MM-DD; empty means now
}

func (r ReadingRequest) resolve(current float64, now time.Time) (value float64, date time.Time, err error) {
	switch {
	case r.CurrentReading != nil && r.UnitsConsumed != nil:
		return 0, time.Time{}, fmt.Errorf("%w: provide currentReading or unitsConsumed, not both", ErrValidation)
	case r.CurrentReading != nil:
		value = *r.CurrentReading
	case r.UnitsConsumed != nil:
		if *r.UnitsConsumed <= 0 {
			return 0, time.Time{}, fmt.Errorf("%w: unitsConsumed must be positive", ErrValidation)
		}
		value = current + *r.UnitsConsumed
	default:
		return 0, time.Time{}, fmt.Errorf("%w: currentReading or unitsConsumed is required", ErrValidation)
	}

	date = now
	if r.ReadingDate != "" {
		date, err = parseDate(r.ReadingDate)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: invalid readingDate %q", ErrValidation, r.ReadingDate)
		}
	}
	return value, date, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// AddReading ingests a reading, opens the new billing cycle and appends the
// history entry.
func (s *Service) AddReading(ctx context.Context, number string, req ReadingRequest) (*storage.Consumer, error) {
	c, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	value, date, err := req.resolve(c.CurrentReading, time.Now())
	if err != nil {
		return nil, err
	}

	updated, entry, err := billing.ApplyReading(*c, value, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	updated.UpdatedAt = time.Now()

	if err := s.store.SaveConsumer(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.store.AppendReading(ctx, entry); err != nil {
		return nil, err
	}
	metrics.ReadingsRecordedTotal.Inc()

	updated.Readings = append(c.Readings, entry)
	return &updated, nil
}

// BillSummary evaluates the consumer's bill state at now and persists any
// transition the engine produced (deadline backfill, fine application,
// stale-status correction).
func (s *Service) BillSummary(ctx context.Context, number string, now time.Time) (*billing.Summary, error) {
	c, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	fineWasApplied := c.IsFineApplied
	updated, summary, changed := billing.Evaluate(*c, now)
	if changed {
		updated.UpdatedAt = time.Now()
		if err := s.store.SaveConsumer(ctx, updated); err != nil {
			return nil, err
		}
		if updated.IsFineApplied && !fineWasApplied {
			metrics.FinesAppliedTotal.Inc()
		}
	}
	return &summary, nil
}

// MarkPaid settles the consumer's outstanding bill.
func (s *Service) MarkPaid(ctx context.Context, number string, now time.Time) (*storage.Consumer, error) {
	c, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	// Apply any pending transition first so an overdue fine is included in
	// the settled amount.
	evaluated, _, _ := billing.Evaluate(*c, now)

	settled := billing.Settle(evaluated, now)
	settled.UpdatedAt = time.Now()
	if err := s.store.SaveConsumer(ctx, settled); err != nil {
		return nil, err
	}
	metrics.PaymentsSettledTotal.Inc()
	return &settled, nil
}

// FineRosterEntry is one row in the outstanding-fines report.
type FineRosterEntry struct {
	ConsumerNumber  string              `json:"consumerNumber"`
	Name            string              `json:"name"`
	PhoneNumber     string              `json:"phoneNumber,omitempty"`
	TariffPlan      string              `json:"tariffPlan"`
	BillAmount      float64             `json:"billAmount"`
	FineDetails     billing.FineDetails `json:"fineDetails"`
	TotalAmountDue  float64             `json:"totalAmountDue"`
	FineAppliedDate *time.Time          `json:"fineAppliedDate,omitempty"`
	Deadline        *time.Time          `json:"nextPaymentDeadline,omitempty"`
	DaysOverdue     int                 `json:"daysOverdue"`
}

// FinesRoster lists every consumer carrying an unsettled fine.
func (s *Service) FinesRoster(ctx context.Context, now time.Time) ([]FineRosterEntry, error) {
	fined, err := s.store.ListConsumersWithFines(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]FineRosterEntry, 0, len(fined))
	for _, c := range fined {
		entry := FineRosterEntry{
			ConsumerNumber: c.ConsumerNumber,
			Name:           c.Name,
			PhoneNumber:    c.PhoneNumber,
			TariffPlan:     c.TariffPlan,
			BillAmount:     c.Amount,
			FineDetails: billing.FineDetails{
				FineAmount:       c.FineAmount,
				CGSTOnFine:       c.CGSTOnFine,
				SGSTOnFine:       c.SGSTOnFine,
				TotalFineWithTax: c.TotalFineWithTax,
			},
			TotalAmountDue:  c.Amount + c.TotalFineWithTax,
			FineAppliedDate: c.FineAppliedDate,
			Deadline:        c.NextPaymentDeadline,
		}
		if c.NextPaymentDeadline != nil {
			if d := billing.DaysUntil(*c.NextPaymentDeadline, now); d < 0 {
				entry.DaysOverdue = -d
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// MeterImageResult is the outcome of validating one meter photo against the
// user's claimed reading.
type MeterImageResult struct {
	Status           string  `json:"status"`
	ExtractedReading float64 `json:"extractedReading"`
	UserReading      float64 `json:"userReading"`
	Matched          bool    `json:"matched"`
	Reason           string  `json:"reason,omitempty"`
}

// ValidateMeterImage proxies the image to the OCR service and checks that the
// extracted reading agrees with the user's claim within MaxReadingMismatch.
func (s *Service) ValidateMeterImage(ctx context.Context, number string, image io.Reader, filename string, userReading float64) (*MeterImageResult, error) {
	if _, err := s.Get(ctx, number); err != nil {
		return nil, err
	}
	if s.ocr == nil {
		return nil, errors.New("ocr service not configured")
	}

	res, err := s.ocr.ValidateMeter(ctx, image, filename, userReading)
	if err != nil {
		if errors.Is(err, ocr.ErrExtractionFailed) {
			metrics.OCRRequestsTotal.WithLabelValues("extraction_failed").Inc()
		} else {
			metrics.OCRRequestsTotal.WithLabelValues("upstream_error").Inc()
		}
		return nil, err
	}
	if !res.ImageValid {
		metrics.OCRRequestsTotal.WithLabelValues("invalid_image").Inc()
		return nil, fmt.Errorf("%w: %s", ErrValidation, reasonOr(res.Reason, "image is not a readable meter photo"))
	}

	matched := math.Abs(res.Reading-userReading) <= MaxReadingMismatch
	outcome := "matched"
	if !matched {
		outcome = "mismatched"
	}
	metrics.OCRRequestsTotal.WithLabelValues(outcome).Inc()

	out := &MeterImageResult{
		Status:           res.Status,
		ExtractedReading: res.Reading,
		UserReading:      userReading,
		Matched:          matched,
	}
	if !matched {
		out.Reason = fmt.Sprintf("extracted reading %.1f differs from claimed %.1f by more than %.0f unit", res.Reading, userReading, MaxReadingMismatch)
	}
	return out, nil
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
