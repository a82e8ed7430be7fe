package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parsePageExtraction parses the model's text response into a PageExtraction.
// Models wrap JSON in markdown fences or chatter despite instructions, so
// the parser brace-bounds the payload before decoding, then checks the
// structural contract.
func parsePageExtraction(text string) (*PageExtraction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if !ValidExtractionShape(raw) {
		return nil, fmt.Errorf("response does not match extraction schema")
	}

	return extractionFromMap(raw), nil
}

// extractionFromMap converts a shape-validated JSON map into the typed
// record. Models sometimes return page_no as a number; both spellings are
// accepted and normalized to a string.
func extractionFromMap(m map[string]any) *PageExtraction {
	page := &PageExtraction{
		PageType:  "Other",
		BillItems: []BillItem{},
	}

	switch v := m["page_no"].(type) {
	case string:
		page.PageNo = v
	case float64:
		page.PageNo = fmt.Sprintf("%d", int(v))
	}

	if t, ok := m["page_type"].(string); ok && t != "" {
		page.PageType = t
	}

	items, _ := m["bill_items"].([]any)
	for _, raw := range items {
		entry := raw.(map[string]any) // shape already validated
		item := BillItem{
			ItemName:     entry["item_name"].(string),
			ItemAmount:   numericOrNil(entry["item_amount"]),
			ItemRate:     numericOrNil(entry["item_rate"]),
			ItemQuantity: numericOrNil(entry["item_quantity"]),
		}
		page.BillItems = append(page.BillItems, item)
	}
	return page
}

func numericOrNil(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
