package qr

import "math"

// PlaceholderLabel is shown under the loading indicator of a placeholder.
const PlaceholderLabel = "Generating QR code..."

// PlaceholderModules is the number of pattern cells per side of a
// placeholder, chosen to resemble a version 3 symbol.
const PlaceholderModules = 29

const (
	// placeholderDotRatio is the pattern dot radius relative to its pitch.
	placeholderDotRatio = 0.29
)

// Placeholder lays out the stand-in drawn while no matrix is available: a
// repeating dot pattern, a solid square in each finder corner and a cleared
// centre square, in that order.
func Placeholder(renderSize float64, fg, bg string) ([]Primitive, error) {
	g, err := NewGeometry(PlaceholderModules, renderSize, true, 0)
	if err != nil {
		return nil, err
	}
	fg, bg = LayoutOptions{Foreground: fg, Background: bg}.colors()

	prims := make([]Primitive, 0, PlaceholderModules*PlaceholderModules)
	r := g.CellSize * placeholderDotRatio
	for i := 0; i < g.Size; i++ {
		for j := 0; j < g.Size; j++ {
			if !DotVisible(i, j, g) {
				continue
			}
			prims = append(prims, Dot(
				float64(j)*g.CellSize+g.CellSize/2,
				float64(i)*g.CellSize+g.CellSize/2,
				r,
				fg,
			))
		}
	}

	far := float64(g.Size-FinderSize) * g.CellSize
	side := float64(FinderSize) * g.CellSize
	for _, c := range FinderCorners {
		x, y := far*float64(c.X), far*float64(c.Y)
		prims = append(prims, Block(x, y, side, side, finderRadii[0], finderRadii[0], fg))
	}

	center := math.Min(float64(g.ClearSpan)*g.CellSize, renderSize)
	origin := (renderSize - center) / 2
	prims = append(prims, Block(origin, origin, center, center, finderRadii[0], finderRadii[0], bg))

	return prims, nil
}
