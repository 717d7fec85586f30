package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ledgerlift/receipt-api/internal/api/shared"
	"github.com/ledgerlift/receipt-api/internal/platform/logger"
)

// TraceMiddleware adds a trace ID to the request context and attaches a
// correspondingly-enriched logger, so every log line below this point in
// the chain carries the same correlation field. Apply it first.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		log := slog.With(slog.String("trace_id", traceID))
		ctx = logger.WithContext(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
