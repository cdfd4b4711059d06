// Package render draws panel frames: SVG markup for export and a character
// raster for the terminal canvas.
package render

import "fmt"

const (
	// PanDivisor scales pointer motion to viewbox units: a move of
	// PanDivisor cells pans one full viewbox width.
	PanDivisor = 400
	// ZoomInFactor and ZoomOutFactor scale the viewbox size per step.
	ZoomInFactor  = 0.8
	ZoomOutFactor = 1.2
	// MaxZoomRatio bounds zoom in either direction relative to the home view.
	MaxZoomRatio = 10
)

// Viewport is an SVG viewbox.
type Viewport struct {
	X, Y, W, H float64
}

// Home returns the viewbox centred on the origin with the given width and
// height/width ratio.
func Home(width, aspect float64) Viewport {
	h := width * aspect
	return Viewport{X: -width / 2, Y: -h / 2, W: width, H: h}
}

// FromArray converts the [x y w h] form frames carry.
func FromArray(v [4]float64) Viewport {
	return Viewport{X: v[0], Y: v[1], W: v[2], H: v[3]}
}

// Pan moves the viewport opposite to a pointer drag of (dx, dy).
func (v Viewport) Pan(dx, dy float64) Viewport {
	v.X -= dx * v.W / PanDivisor
	v.Y -= dy * v.H / PanDivisor
	return v
}

// Zoom scales the viewport about its centre, clamped to MaxZoomRatio of
// home in either direction.
func (v Viewport) Zoom(in bool, home Viewport) Viewport {
	scale := ZoomOutFactor
	if in {
		scale = ZoomInFactor
	}
	cx, cy := v.X+v.W/2, v.Y+v.H/2
	w := clamp(v.W*scale, home.W/MaxZoomRatio, home.W*MaxZoomRatio)
	h := clamp(v.H*scale, home.H/MaxZoomRatio, home.H*MaxZoomRatio)
	return Viewport{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// Ratio is the zoom level relative to home; above 1 is zoomed in.
func (v Viewport) Ratio(home Viewport) float64 {
	if v.W == 0 {
		return 1
	}
	return home.W / v.W
}

func (v Viewport) String() string {
	return fmt.Sprintf("%s %s %s %s", num(v.X), num(v.Y), num(v.W), num(v.H))
}

func clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}
