package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassifyCallErrorTransientCodes(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		err := classifyCallError(genai.APIError{Code: code, Message: "upstream unhappy"})
		assert.ErrorIs(t, err, analysis.ErrTransient, "code %d should be transient", code)
	}
}

func TestClassifyCallErrorPermanentCodes(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		err := classifyCallError(genai.APIError{Code: code, Message: "rejected"})
		assert.ErrorIs(t, err, analysis.ErrPermanent, "code %d should be permanent", code)
	}
}

func TestClassifyCallErrorWrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", genai.APIError{Code: 503, Message: "overloaded"})
	assert.ErrorIs(t, classifyCallError(wrapped), analysis.ErrTransient)
}

func TestClassifyCallErrorContextDeadline(t *testing.T) {
	err := classifyCallError(fmt.Errorf("generate: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, analysis.ErrTransient)
}

func TestClassifyCallErrorUnknownAssumedTransient(t *testing.T) {
	err := classifyCallError(errors.New("connection reset by peer"))
	assert.ErrorIs(t, err, analysis.ErrTransient)
}

func TestExtractTextResponses(t *testing.T) {
	t.Run("concatenates text parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "{\"vendor_name\":"},
					{Text: "\"Costco\"}"},
				}},
			}},
		}
		text, err := extractText(resp)
		assert.NoError(t, err)
		assert.Equal(t, `{"vendor_name":"Costco"}`, text)
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := extractText(nil)
		assert.ErrorIs(t, err, analysis.ErrInvalidResponse)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := extractText(&genai.GenerateContentResponse{})
		assert.ErrorIs(t, err, analysis.ErrInvalidResponse)
	})

	t.Run("safety block", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}
		_, err := extractText(resp)
		assert.ErrorIs(t, err, analysis.ErrContentBlocked)
	})

	t.Run("empty content", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
		}
		_, err := extractText(resp)
		assert.ErrorIs(t, err, analysis.ErrInvalidResponse)
	})
}
