package bill

import "time"

// ExtractionRecord is one processed document with its reconciled report.
type ExtractionRecord struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"content_type"`
	PageCount   int         `json:"page_count"`
	Report      FinalReport `json:"report"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
