package bill

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hgupta/billscan/internal/extraction"
	"github.com/hgupta/billscan/internal/pipeline"
)

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		store     *mockStorage
		extractor *mockExtractor
		server    *Server
	)

	newTestService := func() *Service {
		cfg := pipeline.Config{
			DeskewMinAngle:  0.5,
			ContrastFactor:  1,
			MarginThreshold: 128,
			ColumnCounts:    []int{2},
			WindowWidth:     40,
			WindowHeight:    20,
			OverlapRatio:    0.2,
		}
		return NewService(db, extractor, store, cfg, 2)
	}

	BeforeEach(func() {
		db = newMockDB()
		store = newMockStorage()
		extractor = &mockExtractor{
			items: []extraction.BillItem{
				{ItemName: "Consultation", ItemAmount: fptr(500.0)},
			},
		}
		server = NewServer(newTestService(), BasicAuth{})
	})

	Describe("GET /health", func() {
		It("responds without auth", func() {
			server = NewServer(newTestService(), BasicAuth{Username: "u", Password: "p"})
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			server = NewServer(newTestService(), BasicAuth{Username: "user", Password: "pass"})
		})

		It("rejects requests without credentials", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/extractions", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req := httptest.NewRequest("GET", "/api/extractions", nil)
			req.SetBasicAuth("user", "pass")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects wrong credentials", func() {
			req := httptest.NewRequest("GET", "/api/extractions", nil)
			req.SetBasicAuth("user", "wrong")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("POST /api/extractions", func() {
		It("processes an uploaded document and returns the record", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			part, err := writer.CreateFormFile("file", "bill.png")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(testPagePNG())
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())

			req := httptest.NewRequest("POST", "/api/extractions", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))

			var record ExtractionRecord
			Expect(json.Unmarshal(rec.Body.Bytes(), &record)).To(Succeed())
			Expect(record.Report.IsSuccess).To(BeTrue())
			Expect(record.Report.Data.TotalItemCount).To(Equal(1))
		})

		It("rejects a request without a file", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.Close()).To(Succeed())

			req := httptest.NewRequest("POST", "/api/extractions", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/extractions/{id}", func() {
		It("returns a saved record", func() {
			db.records["abc"] = &ExtractionRecord{ID: "abc", Filename: "abc/bill.png"}
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/extractions/abc", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var record ExtractionRecord
			Expect(json.Unmarshal(rec.Body.Bytes(), &record)).To(Succeed())
			Expect(record.ID).To(Equal("abc"))
		})

		It("returns 404 for an unknown ID", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/extractions/missing", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/extractions/{id}/report", func() {
		It("returns just the report with the wire field names", func() {
			db.records["abc"] = &ExtractionRecord{
				ID: "abc",
				Report: Reconcile([]extraction.PageExtraction{
					{PageNo: "1", PageType: "Pharmacy", BillItems: []extraction.BillItem{
						item("A", fptr(10)),
					}},
				}, nil, extraction.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}),
			}
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/api/extractions/abc/report", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var decoded any
			Expect(json.Unmarshal(rec.Body.Bytes(), &decoded)).To(Succeed())
			Expect(ValidReportShape(decoded)).To(BeTrue())
		})
	})

	Describe("DELETE /api/extractions/{id}", func() {
		It("deletes the record", func() {
			db.records["abc"] = &ExtractionRecord{ID: "abc", Filename: "abc/bill.png"}
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/extractions/abc", nil))

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(db.records).NotTo(HaveKey("abc"))
		})
	})
})
