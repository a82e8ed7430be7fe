package extraction

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidExtractionShape", func() {
	decode := func(s string) any {
		var v any
		Expect(json.Unmarshal([]byte(s), &v)).To(Succeed())
		return v
	}

	It("accepts a well-formed page extraction", func() {
		v := decode(`{"page_no": "1", "page_type": "Pharmacy", "bill_items": [{"item_name": "A", "item_amount": 1.5, "item_rate": null, "item_quantity": 2}]}`)
		Expect(ValidExtractionShape(v)).To(BeTrue())
	})

	It("accepts an empty item list", func() {
		v := decode(`{"page_no": "1", "page_type": "Other", "bill_items": []}`)
		Expect(ValidExtractionShape(v)).To(BeTrue())
	})

	It("rejects a missing top-level key", func() {
		v := decode(`{"page_no": "1", "bill_items": []}`)
		Expect(ValidExtractionShape(v)).To(BeFalse())
	})

	It("rejects bill_items that is not a list", func() {
		v := decode(`{"page_no": "1", "page_type": "Other", "bill_items": {}}`)
		Expect(ValidExtractionShape(v)).To(BeFalse())
	})

	It("rejects an item without a name", func() {
		v := decode(`{"page_no": "1", "page_type": "Other", "bill_items": [{"item_amount": 1, "item_rate": null, "item_quantity": null}]}`)
		Expect(ValidExtractionShape(v)).To(BeFalse())
	})

	It("rejects a non-numeric amount", func() {
		v := decode(`{"page_no": "1", "page_type": "Other", "bill_items": [{"item_name": "A", "item_amount": "1.5", "item_rate": null, "item_quantity": null}]}`)
		Expect(ValidExtractionShape(v)).To(BeFalse())
	})

	It("rejects non-object input", func() {
		Expect(ValidExtractionShape("nope")).To(BeFalse())
		Expect(ValidExtractionShape(nil)).To(BeFalse())
	})
})
