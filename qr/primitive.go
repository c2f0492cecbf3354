package qr

import "encoding/json"

// Kind distinguishes the two primitive shapes.
type Kind string

const (
	KindBlock Kind = "block"
	KindDot   Kind = "dot"
)

// Primitive is one drawable shape. Blocks use X, Y, Width, Height and the
// corner radii; dots use CenterX, CenterY and Radius. Primitives are plain
// values so two layouts can be compared with ==.
type Primitive struct {
	Kind Kind

	X, Y          float64
	Width, Height float64
	RadiusX       float64
	RadiusY       float64

	CenterX, CenterY float64
	Radius           float64

	Fill string
}

// Block returns a rounded rectangle primitive.
func Block(x, y, w, h, rx, ry float64, fill string) Primitive {
	return Primitive{Kind: KindBlock, X: x, Y: y, Width: w, Height: h, RadiusX: rx, RadiusY: ry, Fill: fill}
}

// Dot returns a filled circle primitive.
func Dot(cx, cy, r float64, fill string) Primitive {
	return Primitive{Kind: KindDot, CenterX: cx, CenterY: cy, Radius: r, Fill: fill}
}

type blockJSON struct {
	Kind          Kind    `json:"kind"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	CornerRadiusX float64 `json:"cornerRadiusX"`
	CornerRadiusY float64 `json:"cornerRadiusY"`
	FillColor     string  `json:"fillColor"`
}

type dotJSON struct {
	Kind      Kind    `json:"kind"`
	CenterX   float64 `json:"centerX"`
	CenterY   float64 `json:"centerY"`
	Radius    float64 `json:"radius"`
	FillColor string  `json:"fillColor"`
}

// MarshalJSON emits only the fields that belong to the primitive's kind.
func (p Primitive) MarshalJSON() ([]byte, error) {
	if p.Kind == KindDot {
		return json.Marshal(dotJSON{Kind: p.Kind, CenterX: p.CenterX, CenterY: p.CenterY, Radius: p.Radius, FillColor: p.Fill})
	}
	return json.Marshal(blockJSON{
		Kind: KindBlock, X: p.X, Y: p.Y, Width: p.Width, Height: p.Height,
		CornerRadiusX: p.RadiusX, CornerRadiusY: p.RadiusY, FillColor: p.Fill,
	})
}

// Count returns the number of blocks and dots in prims.
func Count(prims []Primitive) (blocks, dots int) {
	for _, p := range prims {
		switch p.Kind {
		case KindBlock:
			blocks++
		case KindDot:
			dots++
		}
	}
	return blocks, dots
}
