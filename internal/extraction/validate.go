package extraction

// ValidExtractionShape reports whether a decoded JSON value has the per-page
// extraction shape: page_no, page_type, and a bill_items list whose entries
// carry an item_name string and three numeric-or-null fields. It is a pure
// structural predicate; it never repairs anything.
func ValidExtractionShape(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}

	for _, key := range []string{"page_no", "page_type", "bill_items"} {
		if _, ok := m[key]; !ok {
			return false
		}
	}

	items, ok := m["bill_items"].([]any)
	if !ok {
		return false
	}

	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return false
		}

		name, ok := item["item_name"]
		if !ok {
			return false
		}
		if _, ok := name.(string); !ok {
			return false
		}

		for _, field := range []string{"item_amount", "item_rate", "item_quantity"} {
			value, ok := item[field]
			if !ok {
				return false
			}
			if value == nil {
				continue
			}
			if _, ok := value.(float64); !ok {
				return false
			}
		}
	}
	return true
}
