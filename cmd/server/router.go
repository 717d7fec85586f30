package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ledgerlift/receipt-api/internal/api"
	apimiddleware "github.com/ledgerlift/receipt-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	receiptHandler := api.NewReceiptHandler(app.receiptService, app.logger)
	jobHandler := api.NewJobHandler(app.receiptService, app.logger)
	deadLetterHandler := api.NewDeadLetterHandler(app.receiptService, app.logger)

	// Register routes; everything under /api requires the API key
	r.Route("/api", func(r chi.Router) {
		r.Use(app.authMiddleware.Authenticate)

		r.Post("/receipts", receiptHandler.SubmitReceipt)
		r.Get("/receipts/{id}", receiptHandler.GetReceipt)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/deadletters", deadLetterHandler.ListDeadLetters)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
