package gemini

import (
	"testing"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptReceiptMode(t *testing.T) {
	prompt, err := buildPrompt(analysis.Params{Mode: analysis.ModeReceipt})
	require.NoError(t, err)
	assert.Contains(t, prompt, "receipt parser")
	assert.Contains(t, prompt, "vendor_name")
}

func TestBuildPromptCaptionMode(t *testing.T) {
	prompt, err := buildPrompt(analysis.Params{Mode: analysis.ModeCaption})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Describe this image")
}

func TestBuildPromptLanguageHint(t *testing.T) {
	prompt, err := buildPrompt(analysis.Params{Mode: analysis.ModeReceipt, Language: "de"})
	require.NoError(t, err)
	assert.Contains(t, prompt, `"de"`)
}

func TestBuildPromptUnknownMode(t *testing.T) {
	_, err := buildPrompt(analysis.Params{Mode: "transcribe"})
	assert.ErrorIs(t, err, analysis.ErrInvalidConfig)
}
