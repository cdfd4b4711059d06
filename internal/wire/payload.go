// Package wire normalizes inbound telemetry messages into the canonical
// shapes the panel core works with.
//
// Messages arrive as loosely-typed JSON in several historical layouts. Every
// layout is recognized here, at the boundary, and converted to one tagged
// representation; nothing past this package branches on message shape.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags the variant held by a Payload.
type Kind uint8

const (
	// KindSVG is a pre-serialized SVG fragment.
	KindSVG Kind = iota
	// KindShape is a structured shape descriptor.
	KindShape
)

func (k Kind) String() string {
	switch k {
	case KindSVG:
		return "svg"
	case KindShape:
		return "shape"
	}
	return "?"
}

// ShapeType enumerates structured shape descriptors.
type ShapeType int

const (
	ShapeCircle ShapeType = iota
	ShapeLine
	ShapeRectangle
	ShapeText
	ShapePolygon
)

func (t ShapeType) String() string {
	switch t {
	case ShapeCircle:
		return "circle"
	case ShapeLine:
		return "line"
	case ShapeRectangle:
		return "rect"
	case ShapeText:
		return "text"
	case ShapePolygon:
		return "polygon"
	}
	return fmt.Sprintf("shape(%d)", int(t))
}

// Shape is a structured drawing primitive.
//
// Params layout depends on Type: circle [cx cy r], line [x1 y1 x2 y2],
// rectangle [x y w h], text [x y], polygon [x0 y0 x1 y1 ...].
type Shape struct {
	ID       int       `json:"id"`
	Type     ShapeType `json:"type"`
	Lifetime float64   `json:"lifetime,omitempty"`
	Params   []float64 `json:"params"`
	Color    string    `json:"color"`
	Text     string    `json:"text,omitempty"`
}

// Payload is one opaque renderable unit. Exactly one of SVG or Shape is
// meaningful, selected by Kind.
type Payload struct {
	Kind  Kind
	SVG   string
	Shape *Shape
}

// SVGPayload wraps a raw SVG fragment.
func SVGPayload(s string) Payload { return Payload{Kind: KindSVG, SVG: s} }

// ShapePayload wraps a structured shape.
func ShapePayload(s Shape) Payload { return Payload{Kind: KindShape, Shape: &s} }

// Equal reports whether two payloads carry the same content.
func (p Payload) Equal(o Payload) bool {
	if p.Kind != o.Kind {
		return false
	}
	if p.Kind == KindSVG {
		return p.SVG == o.SVG
	}
	if p.Shape == nil || o.Shape == nil {
		return p.Shape == o.Shape
	}
	a, b := p.Shape, o.Shape
	if a.ID != b.ID || a.Type != b.Type || a.Lifetime != b.Lifetime ||
		a.Color != b.Color || a.Text != b.Text || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

// String returns a short human-readable summary.
func (p Payload) String() string {
	switch p.Kind {
	case KindSVG:
		return p.SVG
	case KindShape:
		if p.Shape == nil {
			return "shape(nil)"
		}
		return fmt.Sprintf("%s#%d %v", p.Shape.Type, p.Shape.ID, p.Shape.Params)
	}
	return "?"
}

// MarshalJSON encodes SVG payloads as JSON strings and shapes as objects,
// the same layouts DecodePayload accepts.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Kind == KindShape && p.Shape != nil {
		return json.Marshal(p.Shape)
	}
	return json.Marshal(p.SVG)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	v, err := DecodePayload(data)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

var errBadPayload = errors.New("primitive is neither a string nor a shape object")

// DecodePayload decodes a single primitive: a JSON string becomes an SVG
// payload, a JSON object becomes a shape.
func DecodePayload(data json.RawMessage) (Payload, error) {
	switch firstByte(data) {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Payload{}, err
		}
		return SVGPayload(s), nil
	case '{':
		var sh Shape
		if err := json.Unmarshal(data, &sh); err != nil {
			return Payload{}, fmt.Errorf("shape: %w", err)
		}
		return ShapePayload(sh), nil
	}
	return Payload{}, errBadPayload
}

// firstByte returns the first non-whitespace byte of data, or 0.
func firstByte(data []byte) byte {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
