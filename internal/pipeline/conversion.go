package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// pdfPages renders every page of a PDF at the rasterizer's default DPI.
func pdfPages(pdfData []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

// decodeImage decodes a single raster image. HEIC/HEIF (common on iPhones)
// is handled with a dedicated decoder since Go's standard image package does
// not support it.
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// DecodePages turns an uploaded document into one decoded image per page.
// PDFs are rasterized page by page; everything else is a single-page image.
func DecodePages(data []byte, contentType string) ([]image.Image, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}

	if mimeType == "application/pdf" || isPDFData(data) {
		pages, err := pdfPages(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to images: %w", err)
		}
		return pages, nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

// EncodePNG serializes an image as PNG bytes for storage or for the
// extractor request payload.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isPDFData checks for the PDF magic header.
func isPDFData(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "%PDF"
}

// isHEICFormat checks if the image data is in HEIC/HEIF format.
// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format.
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
