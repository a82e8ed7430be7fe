package bill

import (
	"encoding/json"
	"math"
)

// ValidReportShape reports whether a decoded JSON value has the final report
// shape: is_success bool, token_usage with three integer-like counters, and
// a data object holding pagewise_line_items plus an integer total_item_count.
// It is a pure structural predicate; it never attempts semantic correction.
func ValidReportShape(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}

	if _, ok := m["is_success"].(bool); !ok {
		return false
	}

	usage, ok := m["token_usage"].(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{"input_tokens", "output_tokens", "total_tokens"} {
		if !integerLike(usage[key]) {
			return false
		}
	}

	data, ok := m["data"].(map[string]any)
	if !ok {
		return false
	}

	pages, ok := data["pagewise_line_items"].([]any)
	if !ok {
		return false
	}
	for _, raw := range pages {
		page, ok := raw.(map[string]any)
		if !ok {
			return false
		}
		for _, key := range []string{"page_no", "page_type", "bill_items"} {
			if _, ok := page[key]; !ok {
				return false
			}
		}
	}

	return integerLike(data["total_item_count"])
}

// reportContractHolds round-trips a typed report through JSON and checks it
// against the wire contract. It exists as a gate for serialization drift:
// a renamed struct tag fails here instead of at a consumer.
func reportContractHolds(report FinalReport) bool {
	data, err := json.Marshal(report)
	if err != nil {
		return false
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return false
	}
	return ValidReportShape(decoded)
}

// integerLike accepts the int-or-whole-float spellings that JSON decoding
// produces for integer counters.
func integerLike(v any) bool {
	switch n := v.(type) {
	case int:
		return true
	case float64:
		return n == math.Trunc(n)
	default:
		return false
	}
}
