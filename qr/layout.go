package qr

import "fmt"

// Default colours used when LayoutOptions leaves them empty.
const (
	DefaultForeground = "#000000"
	DefaultBackground = "#ffffff"
)

// finderRadii are the corner radii, in pixels, of the outer, middle and
// inner finder layers.
var finderRadii = [3]float64{12, 8, 3}

// LayoutOptions control the clear area and colours of a layout.
type LayoutOptions struct {
	// ReserveCenter leaves the clear window free of dots.
	ReserveCenter bool

	// OverlaySize is the overlay edge in pixels. Zero means DefaultOverlaySize.
	OverlaySize float64

	Foreground string
	Background string
}

func (o LayoutOptions) colors() (fg, bg string) {
	fg, bg = o.Foreground, o.Background
	if fg == "" {
		fg = DefaultForeground
	}
	if bg == "" {
		bg = DefaultBackground
	}
	return fg, bg
}

// Layout converts m into the primitives for a renderSize x renderSize
// drawing: nine finder blocks (three layers for each of the three finder
// corners, outer first) followed by one dot per visible data module in
// row-major order. Equal inputs always yield equal output.
func Layout(m Matrix, renderSize float64, opts LayoutOptions) ([]Primitive, error) {
	if err := checkRenderSize(renderSize); err != nil {
		return nil, err
	}
	if !m.Square() {
		return nil, fmt.Errorf("%w: matrix is not square", ErrInvalidGeometry)
	}

	g, err := NewGeometry(m.Size(), renderSize, opts.ReserveCenter, opts.OverlaySize)
	if err != nil {
		return nil, err
	}
	fg, bg := opts.colors()

	prims := make([]Primitive, 0, len(FinderCorners)*len(finderRadii)+m.Size()*m.Size()/2)
	prims = appendFinders(prims, g, fg, bg)

	for i, row := range m {
		for j, set := range row {
			if !set || !DotVisible(i, j, g) {
				continue
			}
			prims = append(prims, Dot(
				float64(j)*g.CellSize+g.CellSize/2,
				float64(i)*g.CellSize+g.CellSize/2,
				g.CellSize/3,
				fg,
			))
		}
	}

	return prims, nil
}

// DotVisible reports whether a filled module at (row, col) is drawn as a
// dot: it must lie outside the finder corners and, when g reserves the
// centre, outside the clear window.
func DotVisible(row, col int, g Geometry) bool {
	if InFinderCorner(row, col, g.Size) {
		return false
	}
	return !g.Reserve || !InClearArea(row, col, g)
}

func appendFinders(prims []Primitive, g Geometry, fg, bg string) []Primitive {
	far := float64(g.Size-FinderSize) * g.CellSize
	for _, c := range FinderCorners {
		x0 := far * float64(c.X)
		y0 := far * float64(c.Y)
		for i, r := range finderRadii {
			fill := fg
			if i%2 != 0 {
				fill = bg
			}
			side := g.CellSize * float64(FinderSize-i*2)
			offset := g.CellSize * float64(i)
			prims = append(prims, Block(x0+offset, y0+offset, side, side, r, r, fill))
		}
	}
	return prims
}
