package pipeline

// maxOverlapRatio is the largest usable window overlap. Anything closer to
// 1.0 would shrink the tiling step toward zero and the sliding-window loops
// would never advance.
const maxOverlapRatio = 0.9

// Config holds the tunables for page normalization and crop generation.
type Config struct {
	// DeskewMinAngle is the smallest skew (degrees) worth correcting.
	// Rotations below it are skipped to avoid interpolation artifacts on
	// pages that are already straight.
	DeskewMinAngle float64

	// ContrastFactor multiplies pixel deviation from mid-gray.
	ContrastFactor float64

	// DenoiseSigma is the radius of the pre-contrast smoothing pass.
	DenoiseSigma float64

	// MarginThreshold is the brightness (0-255) below which a pixel counts
	// as content when trimming scanner-bed margins.
	MarginThreshold uint8

	// MarginPx is the padding kept around the detected content box.
	MarginPx int

	// ColumnCounts lists the vertical partitions generated per page.
	ColumnCounts []int

	// WindowWidth and WindowHeight are the nominal sliding-window size in
	// pixels; both are scaled down uniformly on pages smaller than the
	// window.
	WindowWidth  int
	WindowHeight int

	// OverlapRatio is the fraction of a window shared with its neighbor.
	OverlapRatio float64
}

// DefaultConfig returns the settings used in production.
func DefaultConfig() Config {
	return Config{
		DeskewMinAngle:  0.5,
		ContrastFactor:  1.5,
		DenoiseSigma:    0.6,
		MarginThreshold: 240,
		MarginPx:        10,
		ColumnCounts:    []int{2, 3, 4},
		WindowWidth:     3000,
		WindowHeight:    800,
		OverlapRatio:    0.2,
	}
}

// normalized returns a copy of the config with degenerate values clamped so
// every downstream loop terminates.
func (c Config) normalized() Config {
	if c.OverlapRatio < 0 {
		c.OverlapRatio = 0
	}
	if c.OverlapRatio > maxOverlapRatio {
		c.OverlapRatio = maxOverlapRatio
	}
	if c.WindowWidth < 1 {
		c.WindowWidth = 1
	}
	if c.WindowHeight < 1 {
		c.WindowHeight = 1
	}
	if c.MarginPx < 0 {
		c.MarginPx = 0
	}
	return c
}
