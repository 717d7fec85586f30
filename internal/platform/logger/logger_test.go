package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"mixed case", "DeBuG"},
		{"invalid level falls back to info", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Setup(tt.logLevel)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestFromContextDefault(t *testing.T) {
	// An unadorned context yields the process default logger
	logger := FromContext(context.Background())
	assert.Equal(t, slog.Default(), logger)
}

func TestWithContextRoundTrip(t *testing.T) {
	base := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "test")
	ctx := WithContext(context.Background(), base)

	got := FromContext(ctx)
	assert.Same(t, base, got)
}
