package pipeline

import (
	"image"
	"math"
	"sort"
)

// luma returns the brightness of an NRGBA pixel using the usual Rec. 601
// weights.
func luma(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

// foregroundPoints binarizes the inverted grayscale image with an Otsu
// threshold and returns the coordinates of every foreground (dark) pixel.
func foregroundPoints(img *image.NRGBA) []image.Point {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var hist [256]int
	inv := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			v := 255 - luma(p[0], p[1], p[2])
			inv[y*w+x] = v
			hist[v]++
		}
	}

	t := otsuThreshold(hist, w*h)

	var pts []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if inv[y*w+x] > t {
				pts = append(pts, image.Pt(x, y))
			}
		}
	}
	return pts
}

// otsuThreshold picks the threshold maximizing between-class variance over
// the given 256-bin histogram.
func otsuThreshold(hist [256]int, total int) uint8 {
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var (
		sumB, wB  float64
		best      float64
		threshold uint8
	)
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(i)
		}
	}
	return threshold
}

// convexHull returns the convex hull of pts in counterclockwise order
// (Andrew's monotone chain).
func convexHull(pts []image.Point) []image.Point {
	if len(pts) < 3 {
		return pts
	}

	sorted := make([]image.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]image.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// minAreaAngle estimates the orientation of the minimum-area bounding
// rectangle of pts via rotating calipers over the convex hull. The angle is
// reported in the [-90, 0) convention so callers can apply the usual
// deskew mapping rule.
func minAreaAngle(pts []image.Point) float64 {
	hull := convexHull(pts)
	if len(hull) < 2 {
		return -90
	}

	bestArea := math.Inf(1)
	bestTheta := 0.0
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		ex := float64(b.X - a.X)
		ey := float64(b.Y - a.Y)
		length := math.Hypot(ex, ey)
		if length == 0 {
			continue
		}
		cos := ex / length
		sin := ey / length

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := float64(p.X)*cos + float64(p.Y)*sin
			v := -float64(p.X)*sin + float64(p.Y)*cos
			minU = math.Min(minU, u)
			maxU = math.Max(maxU, u)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}

		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			bestTheta = math.Atan2(ey, ex)
		}
	}

	deg := bestTheta * 180 / math.Pi
	deg = math.Mod(deg, 90)
	if deg < 0 {
		deg += 90
	}
	return deg - 90
}

// rotateAboutCenter rotates src by deg degrees about its center, keeping the
// original dimensions. Samples falling outside the source are clamped to the
// nearest edge pixel so no synthetic border appears.
func rotateAboutCenter(src *image.NRGBA, deg float64) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx := float64(w-1) / 2
	cy := float64(h-1) / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := cx + dx*cos + dy*sin
			sy := cy - dx*sin + dy*cos
			r, g, bb, a := bilinearClamped(src, sx, sy)
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = bb
			dst.Pix[i+3] = a
		}
	}
	return dst
}

// bilinearClamped samples src at a fractional position, replicating edge
// pixels for coordinates outside the image.
func bilinearClamped(src *image.NRGBA, x, y float64) (uint8, uint8, uint8, uint8) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}

	x0 := clamp(int(math.Floor(x)), w-1)
	y0 := clamp(int(math.Floor(y)), h-1)
	x1 := clamp(x0+1, w-1)
	y1 := clamp(y0+1, h-1)

	fx := x - math.Floor(x)
	fy := y - math.Floor(y)
	if fx < 0 {
		fx = 0
	}
	if fy < 0 {
		fy = 0
	}

	at := func(px, py int) []uint8 {
		return src.Pix[src.PixOffset(px, py):]
	}
	p00 := at(x0, y0)
	p10 := at(x1, y0)
	p01 := at(x0, y1)
	p11 := at(x1, y1)

	mix := func(c int) uint8 {
		top := float64(p00[c])*(1-fx) + float64(p10[c])*fx
		bot := float64(p01[c])*(1-fx) + float64(p11[c])*fx
		return uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return mix(0), mix(1), mix(2), mix(3)
}
