package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthMiddleware(t *testing.T) {
	t.Run("rejects_empty_key", func(t *testing.T) {
		_, err := NewAuthMiddleware("")
		assert.Error(t, err)
	})

	t.Run("accepts_key", func(t *testing.T) {
		m, err := NewAuthMiddleware("test-key")
		require.NoError(t, err)
		assert.NotNil(t, m)
	})
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	m, err := NewAuthMiddleware("correct-key")
	require.NoError(t, err)

	var reachedHandler bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reachedHandler = true
		w.WriteHeader(http.StatusOK)
	})
	protected := m.Authenticate(next)

	tests := []struct {
		name           string
		key            string
		expectedStatus int
		expectedErrMsg string
		expectNext     bool
	}{
		{
			name:           "valid_key",
			key:            "correct-key",
			expectedStatus: http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "missing_key",
			key:            "",
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "API key required",
		},
		{
			name:           "wrong_key",
			key:            "wrong-key",
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid API key",
		},
		{
			name:           "key_with_matching_prefix",
			key:            "correct-key-but-longer",
			expectedStatus: http.StatusUnauthorized,
			expectedErrMsg: "Invalid API key",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reachedHandler = false

			req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rr := httptest.NewRecorder()

			protected.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectNext, reachedHandler)

			if tc.expectedErrMsg != "" {
				var errResp map[string]interface{}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
				assert.Equal(t, tc.expectedErrMsg, errResp["error"])
			}
		})
	}
}
