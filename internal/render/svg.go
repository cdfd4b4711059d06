package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/daviddao/crane_viewer/internal/panel"
	"github.com/daviddao/crane_viewer/internal/wire"
)

const defaultColor = "black"

// SVG writes f as a standalone SVG document viewed through vp. Each visible
// layer becomes a <g> in path order; raw fragments are written verbatim.
func SVG(w io.Writer, f *panel.Frame, vp Viewport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s">`+"\n", vp)
	fmt.Fprintf(bw, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`+"\n",
		num(vp.X), num(vp.Y), num(vp.W), num(vp.H), attr(f.Background))
	if f.ShowGrid {
		writeGrid(bw, vp, f.GridSize)
	}
	for _, path := range f.Paths {
		fmt.Fprintf(bw, `<g data-layer="%s">`+"\n", attr(path))
		for _, p := range f.Layers[path] {
			bw.WriteString(Primitive(p))
			bw.WriteByte('\n')
		}
		bw.WriteString("</g>\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// writeGrid draws vertical and horizontal lines every size units across vp.
func writeGrid(bw *bufio.Writer, vp Viewport, size float64) {
	const line = `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="` + gridStroke + `" stroke-width="1" opacity="` + gridOpacity + `"/>` + "\n"
	for _, x := range gridLines(vp.X, vp.W, size) {
		fmt.Fprintf(bw, line, num(x), num(vp.Y), num(x), num(vp.Y+vp.H))
	}
	for _, y := range gridLines(vp.Y, vp.H, size) {
		fmt.Fprintf(bw, line, num(vp.X), num(y), num(vp.X+vp.W), num(y))
	}
}

// Primitive returns the SVG markup for one payload. Structured shapes with
// too few parameters render as nothing.
func Primitive(p wire.Payload) string {
	if p.Kind == wire.KindSVG {
		return p.SVG
	}
	s := p.Shape
	if s == nil {
		return ""
	}
	color := s.Color
	if color == "" {
		color = defaultColor
	}
	ps := s.Params
	switch s.Type {
	case wire.ShapeCircle:
		if len(ps) < 3 {
			return ""
		}
		return fmt.Sprintf(`<circle%s cx="%s" cy="%s" r="%s" fill="%s"/>`,
			idAttr(s.ID), num(ps[0]), num(ps[1]), num(ps[2]), attr(color))
	case wire.ShapeLine:
		if len(ps) < 4 {
			return ""
		}
		return fmt.Sprintf(`<line%s x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="2"/>`,
			idAttr(s.ID), num(ps[0]), num(ps[1]), num(ps[2]), num(ps[3]), attr(color))
	case wire.ShapeRectangle:
		if len(ps) < 4 {
			return ""
		}
		return fmt.Sprintf(`<rect%s x="%s" y="%s" width="%s" height="%s" stroke="%s" fill="none" stroke-width="2"/>`,
			idAttr(s.ID), num(ps[0]), num(ps[1]), num(ps[2]), num(ps[3]), attr(color))
	case wire.ShapeText:
		if len(ps) < 2 {
			return ""
		}
		return fmt.Sprintf(`<text%s x="%s" y="%s" fill="%s" font-size="12">%s</text>`,
			idAttr(s.ID), num(ps[0]), num(ps[1]), attr(color), attr(s.Text))
	case wire.ShapePolygon:
		if len(ps) < 2 {
			return ""
		}
		points := make([]string, 0, len(ps)/2)
		for i := 0; i+1 < len(ps); i += 2 {
			points = append(points, num(ps[i])+","+num(ps[i+1]))
		}
		return fmt.Sprintf(`<polygon%s points="%s" fill="%s"/>`,
			idAttr(s.ID), strings.Join(points, " "), attr(color))
	}
	return ""
}

func idAttr(id int) string {
	return ` id="` + strconv.Itoa(id) + `"`
}

func attr(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
