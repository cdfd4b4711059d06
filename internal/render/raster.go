package render

import (
	"math"

	"github.com/daviddao/crane_viewer/internal/panel"
	"github.com/daviddao/crane_viewer/internal/wire"
)

// Glyphs used by Raster.
const (
	glyphCircle  = 'o'
	glyphLine    = '*'
	glyphRect    = '#'
	glyphPolygon = '+'
)

type grid struct {
	cells      [][]rune
	vp         Viewport
	cols, rows int
}

// Raster draws the structured shapes of f into a cols x rows character
// grid covering vp, layers in path order. Raw SVG fragments are not
// rasterized. With f.ShowGrid, dotted grid lines sit beneath the shapes.
func Raster(f *panel.Frame, vp Viewport, cols, rows int) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	g := &grid{vp: vp, cols: cols, rows: rows, cells: make([][]rune, rows)}
	for r := range g.cells {
		g.cells[r] = make([]rune, cols)
		for c := range g.cells[r] {
			g.cells[r][c] = ' '
		}
	}
	if vp.W > 0 && vp.H > 0 {
		if f.ShowGrid {
			g.dots(f.GridSize)
		}
		for _, path := range f.Paths {
			for _, p := range f.Layers[path] {
				if p.Kind == wire.KindShape && p.Shape != nil {
					g.shape(p.Shape)
				}
			}
		}
	}
	out := make([]string, rows)
	for r, row := range g.cells {
		out[r] = string(row)
	}
	return out
}

// cell maps viewbox coordinates to fractional grid coordinates.
func (g *grid) cell(x, y float64) (float64, float64) {
	return (x - g.vp.X) / g.vp.W * float64(g.cols), (y - g.vp.Y) / g.vp.H * float64(g.rows)
}

func (g *grid) plot(c, r float64, ch rune) {
	ci, ri := int(math.Floor(c)), int(math.Floor(r))
	if ci < 0 || ri < 0 || ci >= g.cols || ri >= g.rows {
		return
	}
	g.cells[ri][ci] = ch
}

func (g *grid) segment(x1, y1, x2, y2 float64, ch rune) {
	c1, r1 := g.cell(x1, y1)
	c2, r2 := g.cell(x2, y2)
	steps := int(math.Ceil(max(math.Abs(c2-c1), math.Abs(r2-r1))))
	// Segments far outside the grid are clipped by plot; cap the walk.
	steps = min(steps, 4*(g.cols+g.rows))
	if steps == 0 {
		g.plot(c1, r1, ch)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		g.plot(c1+(c2-c1)*t, r1+(r2-r1)*t, ch)
	}
}

// dots marks every other cell along each grid line. Lines closer than
// two cells apart would fill the canvas and are left out.
func (g *grid) dots(size float64) {
	if size/g.vp.W*float64(g.cols) >= 2 {
		for _, x := range gridLines(g.vp.X, g.vp.W, size) {
			c, _ := g.cell(x, 0)
			for r := 0; r < g.rows; r += 2 {
				g.plot(c, float64(r), GlyphGrid)
			}
		}
	}
	if size/g.vp.H*float64(g.rows) >= 2 {
		for _, y := range gridLines(g.vp.Y, g.vp.H, size) {
			_, r := g.cell(0, y)
			for c := 0; c < g.cols; c += 2 {
				g.plot(float64(c), r, GlyphGrid)
			}
		}
	}
}

func (g *grid) shape(s *wire.Shape) {
	ps := s.Params
	switch s.Type {
	case wire.ShapeCircle:
		if len(ps) < 3 {
			return
		}
		cx, cy, radius := ps[0], ps[1], ps[2]
		rc := radius / g.vp.W * float64(g.cols)
		rr := radius / g.vp.H * float64(g.rows)
		n := int(math.Ceil(2 * math.Pi * max(rc, rr)))
		n = max(8, min(n, 4*(g.cols+g.rows)))
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			c, r := g.cell(cx+radius*math.Cos(a), cy+radius*math.Sin(a))
			g.plot(c, r, glyphCircle)
		}
		c, r := g.cell(cx, cy)
		g.plot(c, r, glyphCircle)
	case wire.ShapeLine:
		if len(ps) < 4 {
			return
		}
		g.segment(ps[0], ps[1], ps[2], ps[3], glyphLine)
	case wire.ShapeRectangle:
		if len(ps) < 4 {
			return
		}
		x, y, w, h := ps[0], ps[1], ps[2], ps[3]
		g.segment(x, y, x+w, y, glyphRect)
		g.segment(x+w, y, x+w, y+h, glyphRect)
		g.segment(x+w, y+h, x, y+h, glyphRect)
		g.segment(x, y+h, x, y, glyphRect)
	case wire.ShapeText:
		if len(ps) < 2 {
			return
		}
		c, r := g.cell(ps[0], ps[1])
		for i, ch := range []rune(s.Text) {
			g.plot(c+float64(i), r, ch)
		}
	case wire.ShapePolygon:
		n := len(ps) / 2
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			g.segment(ps[2*i], ps[2*i+1], ps[2*j], ps[2*j+1], glyphPolygon)
		}
	}
}
