package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlift/receipt-api/internal/analysis"
)

// Common payload errors
var (
	ErrEmptyImageRef = errors.New("job payload image reference cannot be empty")
)

// JobPayload is the discriminated request carried by a job. The parameter
// schema is validated at the submission boundary, not inside workers.
type JobPayload struct {
	// ImageRef locates the submitted image in blob storage.
	ImageRef string `json:"image_ref"`

	// Params are the normalized analysis parameters; together with the
	// image content they define the job's identity key.
	Params analysis.Params `json:"params"`

	// VoiceNote is free-form submitter context recorded with the result.
	// It is not part of the request identity.
	VoiceNote string `json:"voice_note,omitempty"`

	// SubmittedAt is when the request entered the system.
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate checks the payload fields that workers depend on.
func (p *JobPayload) Validate() error {
	if p.ImageRef == "" {
		return ErrEmptyImageRef
	}
	if p.Params.Mode == "" {
		return fmt.Errorf("%w: missing mode", analysis.ErrInvalidConfig)
	}
	return nil
}

// Marshal serializes the payload for storage on the job record.
func (p *JobPayload) Marshal() (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return data, nil
}

// UnmarshalJobPayload decodes a stored payload back into its typed form.
func UnmarshalJobPayload(data json.RawMessage) (*JobPayload, error) {
	var payload JobPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return &payload, nil
}
