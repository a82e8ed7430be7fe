package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// PageProcessor composes the Normalizer and CropGenerator for one page. It
// has no logic of its own; it exists as the unit that is convenient to fan
// out across pages.
type PageProcessor struct {
	normalizer *Normalizer
	generator  *CropGenerator
}

// NewPageProcessor creates a PageProcessor with the given configuration.
func NewPageProcessor(cfg Config) *PageProcessor {
	return &PageProcessor{
		normalizer: NewNormalizer(cfg),
		generator:  NewCropGenerator(cfg),
	}
}

// Process normalizes one raw page image and generates its crop set. The
// page number is 1-based.
func (p *PageProcessor) Process(raw image.Image, pageNo int) (PageMetadata, error) {
	b := raw.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return PageMetadata{}, fmt.Errorf("page %d: zero-size image", pageNo)
	}
	normalized := p.normalizer.Normalize(raw)
	return p.generator.Generate(normalized, pageNo), nil
}

// ProcessDocument decodes a document into pages and processes each one.
// Pages share no state, so they are processed concurrently up to `workers`
// at a time (full-resolution pages are large; the bound keeps memory flat).
// Results are returned in page order regardless of completion order.
func (p *PageProcessor) ProcessDocument(ctx context.Context, data []byte, contentType string, workers int) ([]PageMetadata, error) {
	pages, err := DecodePages(data, contentType)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]PageMetadata, len(pages))
	errs := make([]error, len(pages))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, raw := range pages {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		wg.Add(1)
		go func(i int, raw image.Image) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i], errs[i] = p.Process(raw, i+1)
		}(i, raw)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
