package render

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/qrkit/qr"
)

// quietZone is the number of background modules added on each side of a
// terminal rendering so that phone cameras can lock on.
const quietZone = 2

var halfBlocks = [4]rune{' ', '▀', '▄', '█'}

// Grid samples scene onto one cell per module, replaying the primitives in
// order: a block paints every module whose centre it covers, a dot paints
// the module under its centre. A cell is true when its final colour is the
// scene foreground.
func Grid(scene *qr.Scene) [][]bool {
	n := scene.Modules
	if n <= 0 {
		return nil
	}
	cell := scene.Size / float64(n)

	fills := make([][]string, n)
	for i := range fills {
		fills[i] = make([]string, n)
	}

	for _, p := range scene.Primitives {
		switch p.Kind {
		case qr.KindBlock:
			r0, r1 := coveredRange(p.Y, p.Height, cell, n)
			c0, c1 := coveredRange(p.X, p.Width, cell, n)
			for r := r0; r < r1; r++ {
				for c := c0; c < c1; c++ {
					fills[r][c] = p.Fill
				}
			}
		case qr.KindDot:
			r, c := int(p.CenterY/cell), int(p.CenterX/cell)
			if r >= 0 && r < n && c >= 0 && c < n {
				fills[r][c] = p.Fill
			}
		}
	}

	grid := make([][]bool, n)
	for i, row := range fills {
		grid[i] = make([]bool, n)
		for j, fill := range row {
			grid[i][j] = fill == scene.Foreground
		}
	}
	return grid
}

// coveredRange returns the half-open range of module indexes whose centres
// fall inside [start, start+length).
func coveredRange(start, length, cell float64, n int) (int, int) {
	lo := int(math.Ceil(start/cell - 0.5))
	hi := int(math.Ceil((start+length)/cell - 0.5))
	return max(lo, 0), min(hi, n)
}

// Terminal renders scene with half-block characters, two module rows per
// text line, coloured with the scene foreground and background.
func Terminal(scene *qr.Scene) string {
	grid := Grid(scene)
	if grid == nil {
		return ""
	}

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(scene.Foreground)).
		Background(lipgloss.Color(scene.Background))

	size := len(grid) + 2*quietZone
	on := func(y, x int) bool {
		y, x = y-quietZone, x-quietZone
		return y >= 0 && y < len(grid) && x >= 0 && x < len(grid) && grid[y][x]
	}

	var out strings.Builder
	for y := 0; y < size; y += 2 {
		var line strings.Builder
		for x := 0; x < size; x++ {
			var idx int
			if on(y, x) {
				idx |= 1
			}
			if on(y+1, x) {
				idx |= 2
			}
			line.WriteRune(halfBlocks[idx])
		}
		out.WriteString(style.Render(line.String()))
		out.WriteByte('\n')
	}
	if scene.Placeholder && scene.Label != "" {
		out.WriteString(style.Faint(true).Render(scene.Label))
		out.WriteByte('\n')
	}
	return out.String()
}
