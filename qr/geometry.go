package qr

import (
	"fmt"
	"math"
)

const (
	// FinderSize is the side length, in modules, of a finder pattern.
	FinderSize = 7

	// MinMatrixSize is the side length of a version 1 symbol.
	MinMatrixSize = 21

	// DefaultOverlaySize is the overlay edge, in pixels, assumed when a clear
	// area is requested without an explicit overlay size.
	DefaultOverlaySize = 76.0

	// ClearMargin is added around the overlay when sizing the clear window.
	ClearMargin = 25.0
)

// Corner selects a finder corner: X and Y are 0 for the near edge and 1 for
// the far edge.
type Corner struct {
	X, Y int
}

// FinderCorners are the three corners that carry finder patterns. The
// bottom-right corner is never reserved.
var FinderCorners = [3]Corner{
	{X: 0, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
}

// Geometry holds the layout parameters derived from a matrix side length,
// a render size and the clear-area request.
type Geometry struct {
	Size      int     `json:"size"`
	CellSize  float64 `json:"cell_size"`
	Reserve   bool    `json:"reserve_center"`
	ClearSpan int     `json:"clear_span"`

	// Clear window bounds in module units. A module is inside when its row
	// and column are both strictly between ClearStart and ClearEnd.
	ClearStart float64 `json:"clear_start"`
	ClearEnd   float64 `json:"clear_end"`
}

// NewGeometry derives the layout parameters for a matrix of side size drawn
// into a square of renderSize pixels. A zero overlaySize means
// DefaultOverlaySize.
func NewGeometry(size int, renderSize float64, reserve bool, overlaySize float64) (Geometry, error) {
	if err := checkRenderSize(renderSize); err != nil {
		return Geometry{}, err
	}
	if size <= 0 {
		return Geometry{}, fmt.Errorf("%w: matrix side %d", ErrInvalidGeometry, size)
	}
	if overlaySize < 0 || math.IsNaN(overlaySize) || math.IsInf(overlaySize, 0) {
		return Geometry{}, fmt.Errorf("%w: overlay size %v", ErrInvalidGeometry, overlaySize)
	}
	if overlaySize == 0 {
		overlaySize = DefaultOverlaySize
	}

	cell := renderSize / float64(size)
	span := int(math.Floor((overlaySize + ClearMargin) / cell))
	mid := float64(size) / 2

	return Geometry{
		Size:       size,
		CellSize:   cell,
		Reserve:    reserve,
		ClearSpan:  span,
		ClearStart: mid - float64(span)/2,
		ClearEnd:   mid + float64(span)/2 - 1,
	}, nil
}

// InFinderCorner reports whether module (row, col) lies under one of the
// three finder patterns of a matrix with side size.
func InFinderCorner(row, col, size int) bool {
	last := size - FinderSize - 1
	return (row < FinderSize && col < FinderSize) ||
		(row > last && col < FinderSize) ||
		(row < FinderSize && col > last)
}

// InClearArea reports whether module (row, col) lies strictly inside the
// clear window of g. It ignores g.Reserve.
func InClearArea(row, col int, g Geometry) bool {
	r, c := float64(row), float64(col)
	return r > g.ClearStart && r < g.ClearEnd &&
		c > g.ClearStart && c < g.ClearEnd
}

func checkRenderSize(renderSize float64) error {
	if renderSize <= 0 || math.IsNaN(renderSize) || math.IsInf(renderSize, 0) {
		return fmt.Errorf("%w: render size %v must be positive", ErrInvalidGeometry, renderSize)
	}
	return nil
}
