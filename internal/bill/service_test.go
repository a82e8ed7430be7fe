package bill

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hgupta/billscan/internal/extraction"
	"github.com/hgupta/billscan/internal/pipeline"
)

// mockDB is a mock implementation of DB
type mockDB struct {
	records   map[string]*ExtractionRecord
	saveErr   error
	getErr    error
	listErr   error
	deleteErr error
}

func newMockDB() *mockDB {
	return &mockDB{
		records: make(map[string]*ExtractionRecord),
	}
}

func (m *mockDB) SaveExtraction(record *ExtractionRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockDB) GetExtraction(id string) (*ExtractionRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.records[id]
	if !ok {
		return nil, errors.New("extraction not found")
	}
	return record, nil
}

func (m *mockDB) ListExtractions() ([]*ExtractionRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	records := make([]*ExtractionRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	return records, nil
}

func (m *mockDB) DeleteExtraction(id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[id]; !ok {
		return errors.New("extraction not found")
	}
	delete(m.records, id)
	return nil
}

func (m *mockDB) Close() error {
	return nil
}

// mockStorage is a mock implementation of Storage
type mockStorage struct {
	files     map[string][]byte
	saveErr   error
	getErr    error
	deleteErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		files: make(map[string][]byte),
	}
}

func (m *mockStorage) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.files[filename] = data
	return filename, nil
}

func (m *mockStorage) Get(path string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (m *mockStorage) Delete(path string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.files, path)
	return nil
}

func (m *mockStorage) DeleteAll(prefix string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			delete(m.files, name)
		}
	}
	return nil
}

// mockExtractor returns a fixed extraction per page
type mockExtractor struct {
	items      []extraction.BillItem
	usage      extraction.TokenUsage
	extractErr error
	calls      int
}

func (m *mockExtractor) ExtractPage(ctx context.Context, page pipeline.PageMetadata, typeHint string) (*extraction.PageExtraction, extraction.TokenUsage, error) {
	m.calls++
	if m.extractErr != nil {
		return nil, extraction.TokenUsage{}, m.extractErr
	}
	return &extraction.PageExtraction{
		PageNo:    strconv.Itoa(page.PageNo),
		PageType:  "Bill Detail",
		BillItems: m.items,
	}, m.usage, nil
}

func (m *mockExtractor) Close() error {
	return nil
}

// fixedIDGenerator returns a predetermined ID
type fixedIDGenerator struct {
	id string
}

func (g *fixedIDGenerator) Generate() string {
	return g.id
}

// fixedTimeSource returns a predetermined time
type fixedTimeSource struct {
	now time.Time
}

func (t *fixedTimeSource) Now() time.Time {
	return t.now
}

func testPagePNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 60, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	for y := 10; y < 20; y++ {
		for x := 10; x < 50; x++ {
			img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	data, err := pipeline.EncodePNG(img)
	Expect(err).NotTo(HaveOccurred())
	return data
}

var _ = Describe("Service", func() {
	var (
		db        *mockDB
		store     *mockStorage
		extractor *mockExtractor
		service   *Service
		fixedTime time.Time
	)

	BeforeEach(func() {
		db = newMockDB()
		store = newMockStorage()
		extractor = &mockExtractor{
			items: []extraction.BillItem{
				{ItemName: "Paracetamol 500mg", ItemAmount: fptr(45.0)},
			},
			usage: extraction.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
		}
		fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		cfg := pipeline.Config{
			DeskewMinAngle:  0.5,
			ContrastFactor:  1,
			MarginThreshold: 128,
			ColumnCounts:    []int{2},
			WindowWidth:     40,
			WindowHeight:    20,
			OverlapRatio:    0.2,
		}
		service = NewServiceWithDeps(db, extractor, store, cfg, 2,
			&fixedIDGenerator{id: "test-id-123"},
			&fixedTimeSource{now: fixedTime},
		)
	})

	Describe("ProcessDocument", func() {
		var (
			record *ExtractionRecord
			err    error
		)

		JustBeforeEach(func() {
			record, err = service.ProcessDocument(context.Background(), "bill.png", testPagePNG(), "image/png")
		})

		When("the document processes cleanly", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("uses the injected ID and time", func() {
				Expect(record.ID).To(Equal("test-id-123"))
				Expect(record.CreatedAt).To(Equal(fixedTime))
				Expect(record.UpdatedAt).To(Equal(fixedTime))
			})

			It("saves the record to the database", func() {
				saved, getErr := db.GetExtraction("test-id-123")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.PageCount).To(Equal(1))
			})

			It("builds a successful report", func() {
				Expect(record.Report.IsSuccess).To(BeTrue())
				Expect(record.Report.Data.TotalItemCount).To(Equal(1))
				Expect(record.Report.TokenUsage.TotalTokens).To(Equal(120))
			})

			It("stores the original upload under the record directory", func() {
				Expect(store.files).To(HaveKey("test-id-123/bill.png"))
			})

			It("stores the page and crop artifacts", func() {
				Expect(store.files).To(HaveKey("test-id-123/p1.png"))
				Expect(store.files).To(HaveKey("test-id-123/p1_full.png"))
			})
		})

		When("page extraction fails", func() {
			BeforeEach(func() {
				extractor.extractErr = errors.New("model unavailable")
			})

			It("does not fail the document", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("reports the page with an empty item list", func() {
				Expect(record.Report.IsSuccess).To(BeTrue())
				Expect(record.Report.Data.PagewiseLineItems).To(HaveLen(1))
				Expect(record.Report.Data.PagewiseLineItems[0].BillItems).To(BeEmpty())
				Expect(record.Report.Data.TotalItemCount).To(Equal(0))
			})
		})

		When("the database save fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("disk full")
			})

			It("returns the error", func() {
				Expect(err).To(HaveOccurred())
			})

			It("cleans up the stored artifacts", func() {
				Expect(store.files).To(BeEmpty())
			})
		})
	})

	Describe("ProcessDocument with undecodable data", func() {
		It("returns the error and cleans up", func() {
			_, err := service.ProcessDocument(context.Background(), "junk.png", []byte("junk"), "image/png")
			Expect(err).To(HaveOccurred())
			Expect(store.files).To(BeEmpty())
		})
	})

	Describe("GetExtraction", func() {
		It("returns a saved record", func() {
			db.records["abc"] = &ExtractionRecord{ID: "abc"}
			record, err := service.GetExtraction("abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(record.ID).To(Equal("abc"))
		})

		It("errors for an unknown ID", func() {
			_, err := service.GetExtraction("missing")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DeleteExtraction", func() {
		BeforeEach(func() {
			db.records["abc"] = &ExtractionRecord{ID: "abc", Filename: "abc/bill.png"}
			store.files["abc/bill.png"] = []byte("data")
			store.files["abc/p1.png"] = []byte("png")
		})

		It("removes the record and its artifacts", func() {
			Expect(service.DeleteExtraction("abc")).To(Succeed())
			Expect(db.records).NotTo(HaveKey("abc"))
			Expect(store.files).To(BeEmpty())
		})

		It("errors for an unknown ID", func() {
			Expect(service.DeleteExtraction("missing")).NotTo(Succeed())
		})
	})

	Describe("sanitizeFilename", func() {
		It("strips special characters and keeps the extension", func() {
			Expect(sanitizeFilename("IMG_2024!!@(1).pdf")).To(Equal("IMG_20241.pdf"))
		})

		It("collapses whitespace", func() {
			Expect(sanitizeFilename("my    bill   scan.png")).To(Equal("my bill scan.png"))
		})

		It("falls back to a default for empty names", func() {
			Expect(sanitizeFilename("!!!.pdf")).To(Equal("bill.pdf"))
		})
	})
})
