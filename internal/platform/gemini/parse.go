package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
)

// receiptSchema mirrors the JSON object the receipt prompt asks the model
// to produce. Optional fields are pointers so absent and zero stay distinct.
type receiptSchema struct {
	VendorName    string           `json:"vendor_name"`
	Total         *float64         `json:"total"`
	Date          string           `json:"date"`
	VendorAddress string           `json:"vendor_address"`
	ReceiptNumber string           `json:"receipt_number"`
	Subtotal      *float64         `json:"subtotal"`
	Tax           *float64         `json:"tax"`
	PaymentMethod string           `json:"payment_method"`
	Items         []lineItemSchema `json:"items"`
}

type lineItemSchema struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`
}

// dateLayouts are the formats accepted for the extracted date, most
// specific first. Models sometimes drop the time component despite the
// prompt.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// stripMarkdownFences removes a ```json ... ``` wrapper if the model added
// one around the JSON payload.
func stripMarkdownFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// parseReceiptResponse converts the raw model output into a domain.Receipt.
// Parse failures are permanent: the same image produces the same response.
func parseReceiptResponse(raw string) (*domain.Receipt, error) {
	cleaned := stripMarkdownFences(raw)

	var schema receiptSchema
	if err := json.Unmarshal([]byte(cleaned), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", analysis.ErrInvalidResponse, err)
	}

	if strings.TrimSpace(schema.VendorName) == "" {
		return nil, fmt.Errorf("%w: missing vendor name", analysis.ErrInvalidResponse)
	}
	if schema.Total == nil {
		return nil, fmt.Errorf("%w: missing total", analysis.ErrInvalidResponse)
	}
	if *schema.Total < 0 {
		return nil, fmt.Errorf("%w: negative total", analysis.ErrInvalidResponse)
	}

	receipt := &domain.Receipt{
		VendorName:    strings.TrimSpace(schema.VendorName),
		VendorAddress: strings.TrimSpace(schema.VendorAddress),
		ReceiptNumber: strings.TrimSpace(schema.ReceiptNumber),
		Total:         *schema.Total,
		Subtotal:      schema.Subtotal,
		Tax:           schema.Tax,
		PaymentMethod: strings.TrimSpace(schema.PaymentMethod),
	}

	if schema.Date != "" {
		date, err := parseDate(schema.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: unparseable date %q", analysis.ErrInvalidResponse, schema.Date)
		}
		receipt.Date = &date
	}

	for i, item := range schema.Items {
		if strings.TrimSpace(item.Description) == "" {
			return nil, fmt.Errorf("%w: item %d missing description", analysis.ErrInvalidResponse, i)
		}
		receipt.Items = append(receipt.Items, domain.LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}

	return receipt, nil
}

func parseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		date, err := time.Parse(layout, value)
		if err == nil {
			return date, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
