package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"hardwarelens-api/internal/credential"
	"hardwarelens-api/internal/ledger"
	"hardwarelens-api/internal/model"
	"hardwarelens-api/internal/service"
	"hardwarelens-api/pkg/apierror"
	"hardwarelens-api/pkg/response"
)

const maxRequestBody = 1 << 20

// Submitter is the submission use-case surface.
type Submitter interface {
	Submit(ctx context.Context, barcode string) (model.EnrichmentRecord, error)
	ListRecent(ctx context.Context) ([]model.EnrichmentRecord, error)
}

// EnrichHandler serves barcode submissions and the recent-scans feed.
type EnrichHandler struct {
	submissions Submitter
	recentLimit int
	logger      *zap.Logger
}

// NewEnrichHandler creates a new enrich handler.
func NewEnrichHandler(submissions Submitter, recentLimit int, logger *zap.Logger) *EnrichHandler {
	return &EnrichHandler{
		submissions: submissions,
		recentLimit: recentLimit,
		logger:      logger.Named("enrich"),
	}
}

// EnrichRequest is the POST /api/enrich body.
type EnrichRequest struct {
	Barcode string `json:"barcode"`
}

// Submit handles POST /api/enrich
func (h *EnrichHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("request body must be a JSON object with a barcode"))
		return
	}

	rec, err := h.submissions.Submit(r.Context(), req.Barcode)
	if err != nil {
		response.Error(w, h.toAPIError(err))
		return
	}

	response.OK(w, rec)
}

// Recent handles GET /api/enrich. Without ?last it answers a liveness probe.
func (h *EnrichHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("last") == "" {
		response.OK(w, map[string]bool{"ok": true})
		return
	}

	recent, err := h.submissions.ListRecent(r.Context())
	if err != nil {
		response.Error(w, h.toAPIError(err))
		return
	}

	response.List(w, recent, len(recent), h.recentLimit)
}

func invalidBarcode(message string) *apierror.Error {
	return apierror.ValidationError("Invalid barcode", apierror.FieldError{
		Field:   "barcode",
		Message: message,
	})
}

// toAPIError maps submission failures onto HTTP errors.
func (h *EnrichHandler) toAPIError(err error) *apierror.Error {
	if errors.Is(err, service.ErrInvalidBarcode) {
		return invalidBarcode("must be 8 to 14 digits")
	}

	var credErr *credential.Error
	if errors.As(err, &credErr) {
		h.logger.Error("credential exchange failed", zap.Error(err))
		return apierror.BadGateway("CREDENTIAL_ERROR", credErr.Error()).WithUpstream(credErr.StatusCode)
	}

	var ledgerErr *ledger.APIError
	if errors.As(err, &ledgerErr) {
		h.logger.Error("ledger request failed",
			zap.String("op", ledgerErr.Op),
			zap.Int("status", ledgerErr.StatusCode),
			zap.String("body", ledgerErr.Body),
		)
		return apierror.BadGateway("UPSTREAM_LEDGER_ERROR", ledgerErr.Error()).WithUpstream(ledgerErr.StatusCode)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apierror.ServiceUnavailable(fmt.Sprintf("request aborted: %v", err))
	}

	h.logger.Error("submission failed", zap.Error(err))
	return apierror.InternalError(err.Error())
}
