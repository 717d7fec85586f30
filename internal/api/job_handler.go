package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/api/shared"
	"github.com/ledgerlift/receipt-api/internal/platform/logger"
	"github.com/ledgerlift/receipt-api/internal/service"
)

// JobHandler handles job status HTTP requests
type JobHandler struct {
	service service.ReceiptService
	logger  *slog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(svc service.ReceiptService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}

	return &JobHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "job_handler")),
	}
}

// GetJob handles GET /api/jobs/{id} requests. Submitters poll this until the
// job reaches a terminal state; a succeeded job's result_ref is the receipt ID.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	pathID := chi.URLParam(r, "id")
	jobID, err := uuid.Parse(pathID)
	if err != nil {
		log.Warn("invalid job ID format", slog.String("job_id", pathID))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to get job"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}
