package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hardwarelens-api/internal/model"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidBarcode is returned for input that is not 8 to 14 digits.
var ErrInvalidBarcode = errors.New("invalid barcode")

var barcodePattern = regexp.MustCompile(`^[0-9]{8,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("barcode", func(fl validator.FieldLevel) bool {
		return barcodePattern.MatchString(fl.Field().String())
	})
	return v
}

// SubmitRequest is the inbound submission payload.
type SubmitRequest struct {
	Barcode string `json:"barcode" validate:"required,barcode"`
}

// Validate checks the barcode shape.
func (r *SubmitRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %q must be 8 to 14 digits", ErrInvalidBarcode, r.Barcode)
	}
	return nil
}

// Enricher resolves a barcode into a merged record.
type Enricher interface {
	Resolve(ctx context.Context, barcode string) (model.EnrichmentRecord, error)
}

// Ledger is the append-only record store with its recent-scans view.
type Ledger interface {
	EnsureHeader(ctx context.Context) error
	Append(ctx context.Context, rec model.EnrichmentRecord) error
	Recent(ctx context.Context) ([]model.EnrichmentRecord, error)
}

// SubmissionService runs the barcode submission use cases.
type SubmissionService struct {
	enricher Enricher
	ledger   Ledger
	now      func() time.Time
	logger   *zap.Logger
}

// NewSubmissionService creates the service.
func NewSubmissionService(enricher Enricher, ledger Ledger, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		enricher: enricher,
		ledger:   ledger,
		now:      time.Now,
		logger:   logger.Named("submission"),
	}
}

// WithClock overrides the timestamp source.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit validates the barcode, enriches it and appends it to the ledger.
// The returned record carries the submission timestamp.
func (s *SubmissionService) Submit(ctx context.Context, barcode string) (model.EnrichmentRecord, error) {
	req := SubmitRequest{Barcode: barcode}
	if err := req.Validate(); err != nil {
		return model.EnrichmentRecord{}, err
	}

	if err := s.ledger.EnsureHeader(ctx); err != nil {
		return model.EnrichmentRecord{}, fmt.Errorf("ensure ledger header: %w", err)
	}

	rec, err := s.enricher.Resolve(ctx, barcode)
	if err != nil {
		return model.EnrichmentRecord{}, fmt.Errorf("enrich %s: %w", barcode, err)
	}
	rec.Timestamp = s.now().UTC().Format(TimestampLayout)
	rec.Barcode = barcode

	if err := s.ledger.Append(ctx, rec); err != nil {
		return model.EnrichmentRecord{}, fmt.Errorf("append %s: %w", barcode, err)
	}

	s.logger.Info("barcode submitted", zap.String("barcode", barcode), zap.String("timestamp", rec.Timestamp))
	return rec, nil
}

// ListRecent returns the latest submissions, newest first.
func (s *SubmissionService) ListRecent(ctx context.Context) ([]model.EnrichmentRecord, error) {
	recent, err := s.ledger.Recent(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return recent, nil
}
