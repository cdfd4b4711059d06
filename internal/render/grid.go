package render

import "math"

const (
	gridStroke  = "#CCCCCC"
	gridOpacity = "0.5"
	// maxGridLines caps the lines drawn per axis; denser grids are skipped.
	maxGridLines = 500
	// GlyphGrid marks grid lines in Raster output.
	GlyphGrid = '.'
)

// gridLines returns the multiples of size that fall within [lo, lo+span].
func gridLines(lo, span, size float64) []float64 {
	if size <= 0 || span <= 0 || span/size > maxGridLines {
		return nil
	}
	var out []float64
	first := math.Ceil(lo / size)
	for i := 0.0; ; i++ {
		v := (first + i) * size
		if v > lo+span {
			return out
		}
		out = append(out, v)
	}
}
