package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"google.golang.org/genai"
)

// classifyCallError maps a Gemini API call failure onto the analysis
// package's retry sentinels. Rate limiting, server errors and deadline
// expiry are transient; client-side errors such as a rejected request or
// bad credentials will not heal on retry.
func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", analysis.ErrTransient, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return fmt.Errorf("%w: gemini API error %d: %s", analysis.ErrTransient, apiErr.Code, apiErr.Message)
		default:
			return fmt.Errorf("%w: gemini API error %d: %s", analysis.ErrPermanent, apiErr.Code, apiErr.Message)
		}
	}

	// Unknown failure, typically network-level. Assume transient so the
	// retry budget gets a chance at it.
	return fmt.Errorf("%w: %v", analysis.ErrTransient, err)
}
