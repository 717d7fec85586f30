package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/ledgerlift/receipt-api/internal/api/shared"
)

// apiKeyHeader is the header clients send their key in.
const apiKeyHeader = "X-API-Key"

// AuthMiddleware provides static API key authentication for routes.
type AuthMiddleware struct {
	apiKey []byte
}

// NewAuthMiddleware creates a new AuthMiddleware with the given key.
func NewAuthMiddleware(apiKey string) (*AuthMiddleware, error) {
	if apiKey == "" {
		return nil, errors.New("API key cannot be empty")
	}
	return &AuthMiddleware{apiKey: []byte(apiKey)}, nil
}

// Authenticate rejects requests whose X-API-Key header does not match the
// configured key. The comparison is constant-time.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "API key required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), m.apiKey) != 1 {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Invalid API key", nil, shared.WithElevatedLogLevel())
			return
		}

		next.ServeHTTP(w, r)
	})
}
