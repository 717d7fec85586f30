package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ledgerlift/receipt-api/internal/api/shared"
	"github.com/ledgerlift/receipt-api/internal/platform/logger"
	"github.com/ledgerlift/receipt-api/internal/service"
)

// Dead-letter listing defaults and bounds.
const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// DeadLetterHandler handles dead-letter triage HTTP requests
type DeadLetterHandler struct {
	service service.ReceiptService
	logger  *slog.Logger
}

// NewDeadLetterHandler creates a new DeadLetterHandler
func NewDeadLetterHandler(svc service.ReceiptService, logger *slog.Logger) *DeadLetterHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for DeadLetterHandler")
	}

	return &DeadLetterHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "deadletter_handler")),
	}
}

// ListDeadLetters handles GET /api/deadletters requests. It pages through
// dead-lettered jobs, newest first, for operator inspection.
func (h *DeadLetterHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	limit, err := parseQueryInt(r, "limit", defaultDeadLetterLimit)
	if err != nil || limit < 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
		return
	}
	if limit == 0 {
		limit = defaultDeadLetterLimit
	}
	if limit > maxDeadLetterLimit {
		limit = maxDeadLetterLimit
	}

	offset, err := parseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset parameter")
		return
	}

	jobs, err := h.service.ListDeadLetters(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list dead-lettered jobs", err)
		return
	}

	response := DeadLetterListResponse{
		Jobs:   make([]JobResponse, 0, len(jobs)),
		Limit:  limit,
		Offset: offset,
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, jobToResponse(job))
	}

	log.Debug("listed dead-lettered jobs",
		slog.Int("count", len(response.Jobs)),
		slog.Int("limit", limit),
		slog.Int("offset", offset))
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// parseQueryInt reads an integer query parameter, falling back to def when
// the parameter is absent.
func parseQueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
