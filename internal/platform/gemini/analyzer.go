package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/config"
	"google.golang.org/genai"
)

// GeminiAnalyzer implements the analysis.Analyzer interface using Google's
// Gemini API to extract structured data from receipt images.
type GeminiAnalyzer struct {
	// logger is used for structured logging
	logger *slog.Logger

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewGeminiAnalyzer creates a new instance of GeminiAnalyzer with the
// provided dependencies.
func NewGeminiAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiAnalyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", analysis.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", analysis.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", analysis.ErrInvalidConfig, err)
	}

	return &GeminiAnalyzer{
		logger: logger.With("component", "gemini_analyzer"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Analyze sends the image and a mode-specific prompt to the Gemini API and
// parses the response. It makes exactly one API call; the caller owns retry
// scheduling and works off the error classification returned here.
func (a *GeminiAnalyzer) Analyze(
	ctx context.Context,
	image []byte,
	params analysis.Params,
) (*analysis.Result, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", analysis.ErrPermanent)
	}

	mimeType := http.DetectContentType(image)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %s", analysis.ErrPermanent, mimeType)
	}

	prompt, err := buildPrompt(params)
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "Making Gemini API call",
		"model", a.model,
		"mode", params.Mode,
		"image_bytes", len(image),
		"mime_type", mimeType)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		a.logger.ErrorContext(ctx, "Gemini API call failed", "error", err)
		return nil, classifyCallError(err)
	}

	raw, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	result := &analysis.Result{RawResponse: raw}
	switch params.Mode {
	case analysis.ModeReceipt:
		receipt, err := parseReceiptResponse(raw)
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to parse receipt response",
				"error", err,
				"response_length", len(raw))
			return nil, err
		}
		result.Receipt = receipt
	case analysis.ModeCaption:
		caption := strings.TrimSpace(raw)
		if caption == "" {
			return nil, fmt.Errorf("%w: empty caption", analysis.ErrInvalidResponse)
		}
		result.Caption = caption
	}

	a.logger.DebugContext(ctx, "Gemini API call successful",
		"mode", params.Mode,
		"response_length", len(raw))
	return result, nil
}

// extractText pulls the concatenated text parts out of the first response
// candidate, mapping empty and safety-blocked responses onto the analysis
// sentinels.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", analysis.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", analysis.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason safety", analysis.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", analysis.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: no text in response", analysis.ErrInvalidResponse)
	}
	return text.String(), nil
}

// Ensure GeminiAnalyzer implements analysis.Analyzer
var _ analysis.Analyzer = (*GeminiAnalyzer)(nil)
