package extraction

import (
	"context"

	"github.com/hgupta/billscan/internal/pipeline"
)

// BillItem is one extracted line item. Numeric fields are nil when the value
// could not be determined on the page; nil never means zero.
type BillItem struct {
	ItemName     string   `json:"item_name"`
	ItemAmount   *float64 `json:"item_amount"`
	ItemRate     *float64 `json:"item_rate"`
	ItemQuantity *float64 `json:"item_quantity"`
}

// PageExtraction is the per-page output of the extractor. Item order
// reflects reading order on the page and is preserved end to end.
type PageExtraction struct {
	PageNo    string     `json:"page_no"`
	PageType  string     `json:"page_type"`
	BillItems []BillItem `json:"bill_items"`
}

// TokenUsage tracks model token consumption for one request.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another request's usage.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.TotalTokens += other.TotalTokens
}

// Extractor defines the interface for multimodal bill-item extraction. The
// pipeline and the reconciliation engine only ever see this interface, so
// they stay testable with fixed stub outputs.
type Extractor interface {
	// ExtractPage reads the bill items visible on one preprocessed page.
	ExtractPage(ctx context.Context, page pipeline.PageMetadata, typeHint string) (*PageExtraction, TokenUsage, error)
	// Close closes the extractor and releases resources.
	Close() error
}
