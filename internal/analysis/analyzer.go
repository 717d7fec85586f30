package analysis

import (
	"context"

	"github.com/ledgerlift/receipt-api/internal/domain"
)

// Params are the normalized processing parameters for an analysis request.
// They are part of the request identity: two submissions with the same image
// and the same Params are the same logical request.
type Params struct {
	// Mode selects the analysis performed on the image.
	Mode string `json:"mode" validate:"required,oneof=receipt caption"`

	// Language is an optional hint for the language of the receipt text.
	Language string `json:"language,omitempty" validate:"omitempty,len=2"`
}

// Analysis mode values accepted in Params.Mode.
const (
	ModeReceipt = "receipt"
	ModeCaption = "caption"
)

// Result is the outcome of a successful analysis call.
type Result struct {
	// Receipt holds the structured extraction for ModeReceipt.
	Receipt *domain.Receipt

	// Caption holds the short description produced for ModeCaption.
	Caption string

	// RawResponse is the unparsed model output, kept for triage.
	RawResponse string
}

// Analyzer is the boundary between the pipeline core and the external AI
// service, following the hexagonal architecture pattern. Implementations
// must classify their own failures using the sentinel errors in errors.go;
// the pipeline trusts that classification when deciding retry vs.
// dead-letter.
type Analyzer interface {
	// Analyze runs the configured analysis on the image bytes. The call is
	// bounded by the context deadline; implementations must return promptly
	// once the context is cancelled.
	Analyze(ctx context.Context, image []byte, params Params) (*Result, error)
}
