package bill

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tempDir string
		store   *LocalStorage
		err     error
	)

	BeforeEach(func() {
		tempDir, err = os.MkdirTemp("", "billscan-storage-test-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = NewLocalStorage(tempDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	It("round-trips a file", func() {
		path, err := store.Save("doc-1/bill.png", []byte("png-bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("doc-1/bill.png"))

		data, err := store.Get("doc-1/bill.png")
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("png-bytes")))
	})

	It("creates nested document directories on demand", func() {
		_, err := store.Save("doc-2/p1_col2_1.png", []byte("crop"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("deletes a single file", func() {
		_, err := store.Save("doc-3/bill.png", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Delete("doc-3/bill.png")).To(Succeed())
		_, err = store.Get("doc-3/bill.png")
		Expect(err).To(HaveOccurred())
	})

	It("deletes every artifact under a prefix", func() {
		_, err := store.Save("doc-4/bill.png", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Save("doc-4/p1.png", []byte("y"))
		Expect(err).NotTo(HaveOccurred())

		Expect(store.DeleteAll("doc-4")).To(Succeed())
		_, err = store.Get("doc-4/bill.png")
		Expect(err).To(HaveOccurred())
		_, err = store.Get("doc-4/p1.png")
		Expect(err).To(HaveOccurred())
	})

	It("errors when reading a missing file", func() {
		_, err := store.Get("nope.png")
		Expect(err).To(HaveOccurred())
	})
})
