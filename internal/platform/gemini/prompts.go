package gemini

import (
	"fmt"

	"github.com/ledgerlift/receipt-api/internal/analysis"
)

// receiptPrompt instructs the model to return receipt data as a strict JSON
// object matching the extraction schema in parse.go.
const receiptPrompt = `You are an expert receipt parser. Analyze this receipt image and extract its data.
Your response MUST be a single valid JSON object with exactly these fields:

{
  "vendor_name": string,
  "total": number,
  "date": string or null,
  "vendor_address": string or null,
  "receipt_number": string or null,
  "subtotal": number or null,
  "tax": number or null,
  "payment_method": string or null,
  "items": [
    {"description": string, "quantity": number, "unit_price": number, "total": number}
  ]
}

Extract all fields precisely. The "date" must be in "YYYY-MM-DDTHH:MM:SS" format.
If a field is not visible or applicable, use null. Do not include any text
outside the JSON object.`

// captionPrompt asks for a short plain-text description of the image.
const captionPrompt = `Describe this image in one or two short sentences of plain text.
Do not use markdown, lists or JSON.`

// buildPrompt selects the prompt for the requested analysis mode and
// appends the language hint when one was given.
func buildPrompt(params analysis.Params) (string, error) {
	var prompt string
	switch params.Mode {
	case analysis.ModeReceipt:
		prompt = receiptPrompt
	case analysis.ModeCaption:
		prompt = captionPrompt
	default:
		return "", fmt.Errorf("%w: unknown analysis mode %q", analysis.ErrInvalidConfig, params.Mode)
	}

	if params.Language != "" {
		prompt += fmt.Sprintf("\n\nThe text in the image is in language %q.", params.Language)
	}
	return prompt, nil
}
