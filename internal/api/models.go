package api

import (
	"time"

	"github.com/ledgerlift/receipt-api/internal/domain"
)

// Submission status values returned by POST /api/receipts.
const (
	// SubmissionStatusQueued means a new job was created for this request.
	SubmissionStatusQueued = "queued"

	// SubmissionStatusAttached means an identical request is already in
	// flight and this submission now shares its job.
	SubmissionStatusAttached = "attached"

	// SubmissionStatusCompleted means a cached result satisfied the
	// request without enqueueing anything.
	SubmissionStatusCompleted = "completed"
)

// SubmissionResponse is the response body for POST /api/receipts.
type SubmissionResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	ResultRef string `json:"result_ref,omitempty"`
}

// JobResponse represents the response data for a job
type JobResponse struct {
	ID             string     `json:"id"`
	State          string     `json:"state"`
	Priority       string     `json:"priority"`
	Attempt        int        `json:"attempt"`
	ResultRef      string     `json:"result_ref,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastFailure    string     `json:"last_failure,omitempty"`
	NextEligibleAt *time.Time `json:"next_eligible_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// LineItemResponse represents one purchased item on a receipt
type LineItemResponse struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Total       *float64 `json:"total,omitempty"`
}

// ReceiptResponse represents the response data for a receipt
type ReceiptResponse struct {
	ID            string             `json:"id"`
	JobID         string             `json:"job_id"`
	VendorName    string             `json:"vendor_name"`
	VendorAddress string             `json:"vendor_address,omitempty"`
	ReceiptNumber string             `json:"receipt_number,omitempty"`
	Date          *time.Time         `json:"date,omitempty"`
	Total         float64            `json:"total"`
	Subtotal      *float64           `json:"subtotal,omitempty"`
	Tax           *float64           `json:"tax,omitempty"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	Items         []LineItemResponse `json:"items,omitempty"`
	Category      string             `json:"category,omitempty"`
	VoiceNote     string             `json:"voice_note,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// DeadLetterListResponse is the response body for GET /api/deadletters.
type DeadLetterListResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// jobToResponse converts a domain.Job to a JobResponse
func jobToResponse(job *domain.Job) JobResponse {
	resp := JobResponse{
		ID:          job.ID.String(),
		State:       string(job.State),
		Priority:    string(job.Priority),
		Attempt:     job.Attempt,
		ResultRef:   job.ResultRef,
		LastError:   job.LastError,
		LastFailure: string(job.LastFailure),
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	// Only expose the backoff gate while it is in the future.
	if job.State == domain.JobStateQueued && job.NextEligibleAt.After(time.Now()) {
		next := job.NextEligibleAt
		resp.NextEligibleAt = &next
	}
	return resp
}

// receiptToResponse converts a domain.Receipt to a ReceiptResponse
func receiptToResponse(receipt *domain.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:            receipt.ID.String(),
		JobID:         receipt.JobID.String(),
		VendorName:    receipt.VendorName,
		VendorAddress: receipt.VendorAddress,
		ReceiptNumber: receipt.ReceiptNumber,
		Date:          receipt.Date,
		Total:         receipt.Total,
		Subtotal:      receipt.Subtotal,
		Tax:           receipt.Tax,
		PaymentMethod: receipt.PaymentMethod,
		Category:      receipt.Category,
		VoiceNote:     receipt.VoiceNote,
		CreatedAt:     receipt.CreatedAt,
	}
	for _, item := range receipt.Items {
		resp.Items = append(resp.Items, LineItemResponse{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return resp
}
