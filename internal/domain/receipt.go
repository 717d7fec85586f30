package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Receipt
var (
	ErrEmptyReceiptID    = errors.New("receipt ID cannot be empty")
	ErrEmptyVendorName   = errors.New("receipt vendor name cannot be empty")
	ErrNegativeTotal     = errors.New("receipt total cannot be negative")
	ErrEmptyReceiptJobID = errors.New("receipt job ID cannot be empty")
)

// LineItem is a single purchased item extracted from a receipt image.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Total       *float64 `json:"total,omitempty"`
}

// Receipt holds the structured data extracted from a receipt image by the
// analysis service, plus the submission metadata recorded with it.
type Receipt struct {
	ID            uuid.UUID  `json:"id"`
	JobID         uuid.UUID  `json:"job_id"`
	IdentityKey   string     `json:"identity_key"`
	VendorName    string     `json:"vendor_name"`
	VendorAddress string     `json:"vendor_address,omitempty"`
	ReceiptNumber string     `json:"receipt_number,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	Total         float64    `json:"total"`
	Subtotal      *float64   `json:"subtotal,omitempty"`
	Tax           *float64   `json:"tax,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
	Category      string     `json:"category,omitempty"`
	VoiceNote     string     `json:"voice_note,omitempty"`
	ImageRef      string     `json:"image_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewReceipt creates a Receipt for the given job with creation timestamp set.
// Returns an error if validation fails.
func NewReceipt(jobID uuid.UUID, identityKey, vendorName string, total float64) (*Receipt, error) {
	receipt := &Receipt{
		ID:          uuid.New(),
		JobID:       jobID,
		IdentityKey: identityKey,
		VendorName:  vendorName,
		Total:       total,
		CreatedAt:   time.Now().UTC(),
	}

	if err := receipt.Validate(); err != nil {
		return nil, err
	}

	return receipt, nil
}

// Validate checks if the Receipt has valid data.
func (r *Receipt) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyReceiptID
	}

	if r.JobID == uuid.Nil {
		return ErrEmptyReceiptJobID
	}

	if r.VendorName == "" {
		return ErrEmptyVendorName
	}

	if r.Total < 0 {
		return ErrNegativeTotal
	}

	return nil
}

// vendorCategories maps ledger categories to vendor name keywords. Order
// matters: a vendor matching keywords in several categories gets the first
// listed one, so repeated categorization of the same name agrees.
var vendorCategories = []struct {
	category string
	keywords []string
}{
	{"Groceries", []string{"walmart", "kroger", "whole foods", "safeway", "costco"}},
	{"Restaurants", []string{"mcdonalds", "starbucks", "subway", "taco bell", "chipotle"}},
	{"Gas/Fuel", []string{"shell", "exxon", "chevron", "bp", "76"}},
	{"Shopping", []string{"amazon", "target", "best buy", "home depot"}},
}

// CategorizeVendor assigns a ledger category based on vendor name keywords.
// Unknown vendors fall into "Other".
func CategorizeVendor(vendorName string) string {
	lower := strings.ToLower(vendorName)
	for _, entry := range vendorCategories {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.category
			}
		}
	}
	return "Other"
}
