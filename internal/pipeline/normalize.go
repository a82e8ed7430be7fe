package pipeline

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Normalizer straightens, cleans up, and trims a single decoded page image.
type Normalizer struct {
	cfg Config
}

// NewNormalizer creates a Normalizer with the given configuration.
func NewNormalizer(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg.normalized()}
}

// Normalize runs deskew, denoise, contrast boost, and margin auto-crop in
// that order. The result never has a larger bounding region than the input.
// A zero-size input image is a caller contract violation.
func (n *Normalizer) Normalize(src image.Image) *image.NRGBA {
	img := imaging.Clone(src)

	img = n.deskew(img)

	if n.cfg.DenoiseSigma > 0 {
		img = imaging.Blur(img, n.cfg.DenoiseSigma)
	}
	if n.cfg.ContrastFactor != 1 {
		img = imaging.AdjustContrast(img, (n.cfg.ContrastFactor-1)*100)
	}

	return n.autoCropMargins(img)
}

// deskew estimates the page skew from the minimum-area bounding rectangle of
// the foreground pixels and rotates the image back level. Pages already
// within DeskewMinAngle of horizontal are returned untouched.
func (n *Normalizer) deskew(img *image.NRGBA) *image.NRGBA {
	pts := foregroundPoints(img)
	if len(pts) == 0 {
		return img
	}

	raw := minAreaAngle(pts)
	var corrected float64
	if raw < -45 {
		corrected = -(90 + raw)
	} else {
		corrected = -raw
	}

	if math.Abs(corrected) < n.cfg.DeskewMinAngle {
		return img
	}
	return rotateAboutCenter(img, corrected)
}

// autoCropMargins trims the white scanner-bed border: it finds the tight box
// of all pixels darker than MarginThreshold, pads it by MarginPx, clamps to
// the image, and crops. A page with no dark pixel at all is returned as-is
// rather than collapsing to a zero-area crop.
func (n *Normalizer) autoCropMargins(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			if luma(p[0], p[1], p[2]) < n.cfg.MarginThreshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < 0 {
		// Blank page.
		return img
	}

	m := n.cfg.MarginPx
	rect := image.Rect(
		max(0, minX-m),
		max(0, minY-m),
		min(w, maxX+1+m),
		min(h, maxY+1+m),
	)
	return imaging.Crop(img, rect)
}
