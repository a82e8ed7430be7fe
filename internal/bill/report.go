package bill

import (
	"github.com/hgupta/billscan/internal/extraction"
)

// FinalReport is the reconciled output for one document. Field names and
// nesting are a fixed external contract; consumers of the report format
// depend on them exactly as spelled here.
type FinalReport struct {
	IsSuccess  bool                  `json:"is_success"`
	TokenUsage extraction.TokenUsage `json:"token_usage"`
	Data       ReportData            `json:"data"`
}

// ReportData carries the per-page listings and the deduplicated item count.
// The pagewise listing keeps every item seen, duplicates included; only the
// count reflects distinct charges.
type ReportData struct {
	PagewiseLineItems []extraction.PageExtraction `json:"pagewise_line_items"`
	TotalItemCount    int                         `json:"total_item_count"`
}

// PrintedTotal is a total amount as printed on the source document, used as
// a diagnostic cross-check against the computed sum.
type PrintedTotal struct {
	PageNo         string   `json:"page_no"`
	ExtractedValue *float64 `json:"extracted_value"`
}
