package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/api/shared"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/platform/logger"
	"github.com/ledgerlift/receipt-api/internal/redact"
	"github.com/ledgerlift/receipt-api/internal/service"
)

// SubmitReceiptRequest represents the request body for submitting a receipt image
type SubmitReceiptRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	Mode        string `json:"mode,omitempty" validate:"omitempty,oneof=receipt caption"`
	Language    string `json:"language,omitempty" validate:"omitempty,len=2"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	VoiceNote   string `json:"voice_note,omitempty" validate:"omitempty,max=2000"`
}

// ReceiptHandler handles receipt-related HTTP requests
type ReceiptHandler struct {
	service service.ReceiptService
	logger  *slog.Logger
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(svc service.ReceiptService, logger *slog.Logger) *ReceiptHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReceiptHandler")
	}

	return &ReceiptHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "receipt_handler")),
	}
}

// SubmitReceipt handles POST /api/receipts requests. It decodes the submitted
// image and hands it to the pipeline. A fresh or attached job answers 202
// with the job to poll; a cache hit answers 200 with the prior result.
func (h *ReceiptHandler) SubmitReceipt(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitReceiptRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("validation error", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Validation error", err)
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		log.Warn("image is not valid base64", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Image must be base64-encoded")
		return
	}

	params := analysis.Params{
		Mode:     req.Mode,
		Language: req.Language,
	}

	outcome, err := h.service.SubmitReceipt(
		r.Context(),
		image,
		params,
		domain.JobPriority(req.Priority),
		req.VoiceNote,
	)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to submit receipt"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	response := SubmissionResponse{
		JobID:  outcome.JobID.String(),
		Status: SubmissionStatusAttached,
	}
	statusCode := http.StatusAccepted
	switch {
	case outcome.Completed:
		response.Status = SubmissionStatusCompleted
		response.ResultRef = outcome.ResultRef
		statusCode = http.StatusOK
	case outcome.IsNew:
		response.Status = SubmissionStatusQueued
	}

	log.Debug("receipt submission handled",
		slog.String("job_id", response.JobID),
		slog.String("status", response.Status))
	shared.RespondWithJSON(w, r, statusCode, response)
}

// GetReceipt handles GET /api/receipts/{id} requests
func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	pathID := chi.URLParam(r, "id")
	receiptID, err := uuid.Parse(pathID)
	if err != nil {
		log.Warn("invalid receipt ID format", slog.String("receipt_id", pathID))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid receipt ID format")
		return
	}

	receipt, err := h.service.GetReceipt(r.Context(), receiptID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to get receipt"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, receiptToResponse(receipt))
}
