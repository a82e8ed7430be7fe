package pipeline

import (
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// BBox is an axis-aligned rectangle in pixel coordinates of the crop's
// source image, with 0 <= X1 < X2 <= W and 0 <= Y1 < Y2 <= H. Deskew happens
// before cropping, so no rotation is ever recorded here.
type BBox struct {
	X1, Y1, X2, Y2 int
}

// MarshalJSON emits the box as the [x1, y1, x2, y2] array consumers expect.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON accepts the [x1, y1, x2, y2] array form.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var arr [4]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	b.X1, b.Y1, b.X2, b.Y2 = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Crop is a rectangular sub-image of a normalized page, tagged with a stable
// identifier that encodes how it was generated. Crops are created once per
// page and never mutated afterwards.
type Crop struct {
	ID    string       `json:"crop_id"`
	BBox  BBox         `json:"bbox"`
	Image *image.NRGBA `json:"-"`
}

// PageMetadata is the preprocessing output for one page: the normalized
// full image plus the ordered crop set. Crops[0] is always the full-page
// crop spanning (0, 0, W, H).
type PageMetadata struct {
	PageNo    int          `json:"page_no"`
	FullImage *image.NRGBA `json:"-"`
	Crops     []Crop       `json:"crops"`
}

// CropGenerator produces the full-page crop, the 2/3/4-column partitions,
// and the overlapping sliding-window crops for a normalized page.
type CropGenerator struct {
	cfg Config
}

// NewCropGenerator creates a CropGenerator with the given configuration.
func NewCropGenerator(cfg Config) *CropGenerator {
	return &CropGenerator{cfg: cfg.normalized()}
}

// Generate builds the crop set for one page. Output is deterministic for a
// given image size and configuration, in the fixed order: full page, then
// column splits in ascending column count, then sliding windows row-major.
// Consumers rely on that order when selecting a prefix of the crops.
func (g *CropGenerator) Generate(img *image.NRGBA, pageNo int) PageMetadata {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	crops := []Crop{{
		ID:    fmt.Sprintf("p%d_full", pageNo),
		BBox:  BBox{0, 0, w, h},
		Image: img,
	}}

	for _, cols := range g.cfg.ColumnCounts {
		crops = append(crops, g.columnCrops(img, pageNo, cols)...)
	}
	crops = append(crops, g.slidingWindowCrops(img, pageNo)...)

	return PageMetadata{
		PageNo:    pageNo,
		FullImage: img,
		Crops:     crops,
	}
}

// columnCrops partitions the page width into cols contiguous full-height
// strips. The last strip absorbs the integer-division remainder so the
// strips tile the page exactly, with no gap and no overlap.
func (g *CropGenerator) columnCrops(img *image.NRGBA, pageNo, cols int) []Crop {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if cols < 1 {
		return nil
	}

	width := w / cols
	crops := make([]Crop, 0, cols)
	for i := 0; i < cols; i++ {
		start := i * width
		end := start + width
		if i == cols-1 {
			end = w
		}
		if end <= start {
			continue
		}
		crops = append(crops, Crop{
			ID:    fmt.Sprintf("p%d_col%d_%d", pageNo, cols, i+1),
			BBox:  BBox{start, 0, end, h},
			Image: imaging.Crop(img, image.Rect(start, 0, end, h)),
		})
	}
	return crops
}

// slidingWindowCrops tiles the page with overlapping windows. The nominal
// window is first downscaled by a single uniform factor so it never exceeds
// the page; the step leaves OverlapRatio of each window shared with its
// neighbor. Windows at the right/bottom edge are clipped, not padded.
// Traversal is row-major with a per-page sequence number, so the ordering is
// reproducible for a given page size and configuration.
func (g *CropGenerator) slidingWindowCrops(img *image.NRGBA, pageNo int) []Crop {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := min(
		1.0,
		float64(w)/float64(g.cfg.WindowWidth),
		float64(h)/float64(g.cfg.WindowHeight),
	)
	winW := int(float64(g.cfg.WindowWidth) * scale)
	winH := int(float64(g.cfg.WindowHeight) * scale)
	if winW < 1 {
		winW = 1
	}
	if winH < 1 {
		winH = 1
	}

	// OverlapRatio is clamped below 1 by config normalization; the extra
	// floor at 1px keeps the loops finite for tiny windows. Rounding before
	// the int conversion keeps 1-overlap products like 50*0.1 from
	// truncating to one pixel short.
	stepX := max(1, int(math.Round(float64(winW)*(1-g.cfg.OverlapRatio))))
	stepY := max(1, int(math.Round(float64(winH)*(1-g.cfg.OverlapRatio))))

	var crops []Crop
	seq := 1
	for y := 0; y < h; y += stepY {
		for x := 0; x < w; x += stepX {
			xEnd := min(x+winW, w)
			yEnd := min(y+winH, h)
			crops = append(crops, Crop{
				ID:    fmt.Sprintf("p%d_slide_%d", pageNo, seq),
				BBox:  BBox{x, y, xEnd, yEnd},
				Image: imaging.Crop(img, image.Rect(x, y, xEnd, yEnd)),
			})
			seq++
		}
	}
	return crops
}
