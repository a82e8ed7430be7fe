package pipeline

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DecodePages", func() {
	When("decoding a PNG upload", func() {
		It("returns a single page", func() {
			data, err := EncodePNG(testImage(30, 20))
			Expect(err).NotTo(HaveOccurred())

			pages, err := DecodePages(data, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(1))
			Expect(pages[0].Bounds().Dx()).To(Equal(30))
		})
	})

	When("the content type is missing", func() {
		It("still decodes by sniffing the data", func() {
			data, err := EncodePNG(testImage(10, 10))
			Expect(err).NotTo(HaveOccurred())

			pages, err := DecodePages(data, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(1))
		})
	})

	When("the data is not a decodable image", func() {
		It("returns an error", func() {
			_, err := DecodePages([]byte("not an image"), "image/png")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("isPDFData", func() {
	It("recognizes the PDF magic header", func() {
		Expect(isPDFData([]byte("%PDF-1.7\n"))).To(BeTrue())
	})

	It("rejects other data", func() {
		Expect(isPDFData([]byte("PNG..."))).To(BeFalse())
		Expect(isPDFData([]byte("%P"))).To(BeFalse())
	})
})

var _ = Describe("isHEICFormat", func() {
	It("recognizes an ftyp box with a HEIC brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("rejects short or unrelated data", func() {
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		data := append([]byte{0, 0, 0, 24}, []byte("ftypmp42")...)
		Expect(isHEICFormat(data)).To(BeFalse())
	})
})

var _ = Describe("isHEICMimeType", func() {
	It("matches heic and heif MIME types", func() {
		Expect(isHEICMimeType("image/heic")).To(BeTrue())
		Expect(isHEICMimeType("IMAGE/HEIF ")).To(BeTrue())
		Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
	})
})
