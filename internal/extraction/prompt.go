package extraction

import "fmt"

const extractionSystemPrompt = `You are a deterministic extractor. You will be given one full page image and several region crop images from a medical/pharmacy bill. Do not produce any commentary; output exact JSON only. Use numeric floats (two decimal places) for amounts, rates, and quantities. If a numeric value cannot be found, set it to null. Do not hallucinate items. Prefer visual evidence over guesses.

If you see ANY bill items in the images, you MUST extract them. An empty bill_items array should only be returned if the page truly contains no line items at all.`

const extractionRulesPrompt = `Task:
From the supplied images extract a JSON object for this page containing the list of bill line items visible on the page.

Rules (strict):
1. Inspect the images visually. Use the full page first; confirm ambiguous numbers against the region crops.
2. Extract every line item you see - medicines, services, tests, procedures, consultations, room charges.
3. Each bill item must have:
   - "item_name": text exactly as printed on the bill (trim whitespace).
   - "item_amount": net amount after discount as printed (float or null).
   - "item_rate": rate as printed (float or null).
   - "item_quantity": quantity as printed (float or null).
4. If the printed layout is tabular, prefer the right-most numeric column as item_amount.
5. Normalize numeric formats: remove currency symbols and thousands separators. Output floats with two decimals (e.g., 1234.50).
6. If an item name wraps across lines, combine visually adjacent lines belonging to the same row.
7. If a numeric value is illegible or missing, set it to null; do not guess.
8. For page_type, choose the most appropriate: "Bill Detail" (has itemized list), "Final Bill" (summary with totals), "Pharmacy" (medicine list), or "Other" (only if truly unclear).
9. Output exact JSON and nothing else, no markdown fences.

Return JSON:
{
  "page_no": "%s",
  "page_type": "Bill Detail | Final Bill | Pharmacy | Other",
  "bill_items": [
    {
      "item_name": "string",
      "item_amount": 123.45,
      "item_rate": 12.34,
      "item_quantity": 2.00
    }
  ]
}`

// extractionPrompt builds the per-page user prompt. The type hint is
// advisory only; the model still decides the final page_type from what it
// sees.
func extractionPrompt(pageNo string, typeHint string) string {
	prompt := fmt.Sprintf(extractionRulesPrompt, pageNo)
	if typeHint != "" {
		prompt += fmt.Sprintf("\n\nPage type hint (advisory): %s", typeHint)
	}
	return prompt
}
