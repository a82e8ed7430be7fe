package bill

import (
	"log/slog"
	"math"
	"strings"

	"github.com/hgupta/billscan/internal/extraction"
)

// Reconcile merges per-page extraction results into one final report.
//
// Numeric fields are rounded to 2 decimals at this single point; the
// extractor's raw floats are never trusted for exact-decimal output. The
// pagewise listing preserves every item in the order received; cross-page
// deduplication affects only total_item_count. The monetary sum is taken
// over the full non-deduplicated list, so a coincidental name+amount match
// between two real charges never under-counts money.
func Reconcile(pages []extraction.PageExtraction, printedTotals []PrintedTotal, usage extraction.TokenUsage) FinalReport {
	rounded := make([]extraction.PageExtraction, len(pages))
	for i, page := range pages {
		items := make([]extraction.BillItem, len(page.BillItems))
		for j, item := range page.BillItems {
			items[j] = extraction.BillItem{
				ItemName:     item.ItemName,
				ItemAmount:   roundTo2(item.ItemAmount),
				ItemRate:     roundTo2(item.ItemRate),
				ItemQuantity: roundTo2(item.ItemQuantity),
			}
		}
		rounded[i] = extraction.PageExtraction{
			PageNo:    page.PageNo,
			PageType:  page.PageType,
			BillItems: items,
		}
	}

	var flattened []extraction.BillItem
	for _, page := range rounded {
		flattened = append(flattened, page.BillItems...)
	}

	totalItemCount := len(Deduplicate(flattened))
	reconciled := ReconciledAmount(flattened)

	for _, ref := range printedTotals {
		if ref.ExtractedValue == nil {
			continue
		}
		delta := math.Round((*ref.ExtractedValue-reconciled)*100) / 100
		slog.Debug("printed total cross-check",
			"page_no", ref.PageNo,
			"printed_total", *ref.ExtractedValue,
			"reconciled_amount", reconciled,
			"delta", delta,
		)
	}

	return FinalReport{
		IsSuccess:  len(pages) > 0,
		TokenUsage: usage,
		Data: ReportData{
			PagewiseLineItems: rounded,
			TotalItemCount:    totalItemCount,
		},
	}
}

// dedupKey identifies one physical bill line. Matching is exact on the
// trimmed name plus amount; fuzzy matching would silently change reported
// item counts.
type dedupKey struct {
	name   string
	amount float64
	hasAmt bool
}

func keyOf(item extraction.BillItem) dedupKey {
	k := dedupKey{name: strings.TrimSpace(item.ItemName)}
	if item.ItemAmount != nil {
		k.amount = *item.ItemAmount
		k.hasAmt = true
	}
	return k
}

// Deduplicate removes repeated (name, amount) occurrences from a flattened
// item list, keeping the first occurrence of each key. It is idempotent.
func Deduplicate(items []extraction.BillItem) []extraction.BillItem {
	seen := make(map[dedupKey]struct{}, len(items))
	distinct := make([]extraction.BillItem, 0, len(items))
	for _, item := range items {
		k := keyOf(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		distinct = append(distinct, item)
	}
	return distinct
}

// ReconciledAmount sums every non-null item_amount in the list, rounded to
// 2 decimals.
func ReconciledAmount(items []extraction.BillItem) float64 {
	var sum float64
	for _, item := range items {
		if item.ItemAmount != nil {
			sum += *item.ItemAmount
		}
	}
	return math.Round(sum*100) / 100
}

// roundTo2 rounds a nullable amount to 2 decimal places; nil passes through.
func roundTo2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
