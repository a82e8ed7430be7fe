package bill

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hgupta/billscan/internal/extraction"
	"github.com/hgupta/billscan/internal/pipeline"
)

// IDGenerator generates unique IDs for extraction records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles document extraction operations
type Service struct {
	db          DB
	extractor   extraction.Extractor
	storage     Storage
	processor   *pipeline.PageProcessor
	idGenerator IDGenerator
	timeSource  TimeSource
	workers     int
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor extraction.Extractor, storage Storage, cfg pipeline.Config, workers int) *Service {
	return NewServiceWithDeps(db, extractor, storage, cfg, workers, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor extraction.Extractor, storage Storage, cfg pipeline.Config, workers int, idGen IDGenerator, timeSrc TimeSource) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		processor:   pipeline.NewPageProcessor(cfg),
		idGenerator: idGen,
		timeSource:  timeSrc,
		workers:     workers,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "bill"
	}

	return base + ext
}

// ProcessDocument runs the full pipeline for one uploaded document: decode
// and preprocess the pages, save the crop artifacts, extract line items per
// page, reconcile, and persist the record. One failed page never blocks the
// others; it contributes an empty item list and the report stays successful.
func (s *Service) ProcessDocument(ctx context.Context, filename string, data []byte, contentType string) (*ExtractionRecord, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(filepath.Join(id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	pages, err := s.processor.ProcessDocument(ctx, data, contentType, s.workers)
	if err != nil {
		slog.Error("Failed to preprocess document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.DeleteAll(id)
		return nil, fmt.Errorf("preprocessing document: %w", err)
	}

	if err := s.saveArtifacts(id, pages); err != nil {
		slog.Warn("Failed to save crop artifacts", "id", id, "error", err)
	}

	extractions, usage := s.extractPages(ctx, pages)

	report := Reconcile(extractions, nil, usage)
	if !reportContractHolds(report) {
		s.storage.DeleteAll(id)
		return nil, fmt.Errorf("reconciled report failed schema validation")
	}

	record := &ExtractionRecord{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		PageCount:   len(pages),
		Report:      report,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveExtraction(record); err != nil {
		s.storage.DeleteAll(id)
		return nil, fmt.Errorf("saving extraction to database: %w", err)
	}

	return record, nil
}

// extractPages fans extraction out across pages, bounded by the worker
// count, and collects the per-page results in page order. A page whose
// extraction fails yields an empty item list rather than failing the
// document.
func (s *Service) extractPages(ctx context.Context, pages []pipeline.PageMetadata) ([]extraction.PageExtraction, extraction.TokenUsage) {
	results := make([]extraction.PageExtraction, len(pages))
	usages := make([]extraction.TokenUsage, len(pages))
	sem := make(chan struct{}, s.workers)

	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(i int, page pipeline.PageMetadata) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, usage, err := s.extractor.ExtractPage(ctx, page, "")
			usages[i] = usage
			if err != nil {
				slog.Error("Page extraction failed, continuing with empty items",
					"page_no", page.PageNo,
					"error", err,
				)
				results[i] = extraction.PageExtraction{
					PageNo:    strconv.Itoa(page.PageNo),
					PageType:  "Other",
					BillItems: []extraction.BillItem{},
				}
				return
			}
			results[i] = *result
		}(i, page)
	}
	wg.Wait()

	var total extraction.TokenUsage
	for _, u := range usages {
		total.Add(u)
	}
	return results, total
}

// saveArtifacts writes the normalized page and each crop as PNG under the
// record's directory.
func (s *Service) saveArtifacts(id string, pages []pipeline.PageMetadata) error {
	for _, page := range pages {
		pagePNG, err := pipeline.EncodePNG(page.FullImage)
		if err != nil {
			return fmt.Errorf("encoding page %d: %w", page.PageNo, err)
		}
		name := filepath.Join(id, fmt.Sprintf("p%d.png", page.PageNo))
		if _, err := s.storage.Save(name, pagePNG); err != nil {
			return fmt.Errorf("saving page %d: %w", page.PageNo, err)
		}

		for _, crop := range page.Crops {
			cropPNG, err := pipeline.EncodePNG(crop.Image)
			if err != nil {
				return fmt.Errorf("encoding crop %s: %w", crop.ID, err)
			}
			name := filepath.Join(id, crop.ID+".png")
			if _, err := s.storage.Save(name, cropPNG); err != nil {
				return fmt.Errorf("saving crop %s: %w", crop.ID, err)
			}
		}
	}
	return nil
}

// GetExtraction retrieves an extraction record by ID
func (s *Service) GetExtraction(id string) (*ExtractionRecord, error) {
	record, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return record, nil
}

// ListExtractions returns all extraction records
func (s *Service) ListExtractions() ([]*ExtractionRecord, error) {
	records, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	return records, nil
}

// DeleteExtraction removes an extraction record and its stored artifacts
func (s *Service) DeleteExtraction(id string) error {
	if _, err := s.db.GetExtraction(id); err != nil {
		return fmt.Errorf("getting extraction for deletion: %w", err)
	}

	if err := s.storage.DeleteAll(id); err != nil {
		slog.Warn("Failed to delete artifacts", "id", id, "error", err)
	}

	if err := s.db.DeleteExtraction(id); err != nil {
		return fmt.Errorf("deleting extraction from database: %w", err)
	}
	return nil
}

// GetDocumentFile retrieves the original uploaded file for a record
func (s *Service) GetDocumentFile(id string) ([]byte, string, error) {
	record, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting extraction: %w", err)
	}

	data, err := s.storage.Get(record.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}

	return data, record.ContentType, nil
}
