package qr_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/qrkit/qr"
)

const connectURI = "wc:7f6e504bfad60b485450578e05678ed3e8e8c4751d3c6160be17160d63ec90f9@2?relay-protocol=irn&symKey=587d5484ce2a2a6ee3ba1962fdd7e8588e06200c46823bd18fbd67def96ad303"

func moduleOf(p qr.Primitive, cell float64) (row, col int) {
	return int(p.CenterY / cell), int(p.CenterX / cell)
}

func TestLayout_HelloScenario(t *testing.T) {
	t.Parallel()

	m, err := qr.GenerateMatrix("hello", qr.LevelMedium)
	require.NoError(t, err)
	require.GreaterOrEqual(t, m.Size(), qr.MinMatrixSize)

	first, err := qr.Layout(m, 280, qr.LayoutOptions{})
	require.NoError(t, err)

	blocks, dots := qr.Count(first)
	assert.Equal(t, 9, blocks)
	assert.GreaterOrEqual(t, dots, 1)

	second, err := qr.Layout(m, 280, qr.LayoutOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLayout_DeterministicAcrossFreshMatrices(t *testing.T) {
	t.Parallel()

	for _, level := range allLevels {
		m1, err := qr.GenerateMatrix(connectURI, level)
		require.NoError(t, err)
		m2, err := qr.GenerateMatrix(connectURI, level)
		require.NoError(t, err)

		opts := qr.LayoutOptions{ReserveCenter: true, Foreground: "#111111"}
		p1, err := qr.Layout(m1, 240, opts)
		require.NoError(t, err)
		p2, err := qr.Layout(m2, 240, opts)
		require.NoError(t, err)
		assert.Equal(t, p1, p2, "level %s", level)
	}
}

func TestLayout_FinderBlocks(t *testing.T) {
	t.Parallel()

	m, err := qr.GenerateMatrix("hello", qr.LevelMedium)
	require.NoError(t, err)

	prims, err := qr.Layout(m, 210, qr.LayoutOptions{Foreground: "#123456", Background: "#fafafa"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(prims), 9)

	cell := 210 / float64(m.Size())
	far := float64(m.Size()-qr.FinderSize) * cell
	origins := [][2]float64{{0, 0}, {far, 0}, {0, far}}
	radii := []float64{12, 8, 3}
	fills := []string{"#123456", "#fafafa", "#123456"}

	for c, origin := range origins {
		for i := 0; i < 3; i++ {
			p := prims[c*3+i]
			assert.Equal(t, qr.KindBlock, p.Kind)
			assert.InDelta(t, origin[0]+float64(i)*cell, p.X, 1e-9)
			assert.InDelta(t, origin[1]+float64(i)*cell, p.Y, 1e-9)
			assert.InDelta(t, float64(7-2*i)*cell, p.Width, 1e-9)
			assert.Equal(t, p.Width, p.Height)
			assert.Equal(t, radii[i], p.RadiusX)
			assert.Equal(t, radii[i], p.RadiusY)
			assert.Equal(t, fills[i], p.Fill)
		}
	}

	for _, p := range prims[9:] {
		assert.Equal(t, qr.KindDot, p.Kind)
	}
}

func TestLayout_NoDotsUnderFinders(t *testing.T) {
	t.Parallel()

	for _, level := range allLevels {
		m, err := qr.GenerateMatrix(connectURI, level)
		require.NoError(t, err)

		prims, err := qr.Layout(m, 280, qr.LayoutOptions{})
		require.NoError(t, err)

		cell := 280 / float64(m.Size())
		edge := float64(qr.FinderSize) * cell
		far := float64(m.Size()-qr.FinderSize) * cell
		for _, p := range prims {
			if p.Kind != qr.KindDot {
				continue
			}
			assert.False(t, p.CenterX < edge && p.CenterY < edge, "top-left")
			assert.False(t, p.CenterX > far && p.CenterY < edge, "top-right")
			assert.False(t, p.CenterX < edge && p.CenterY > far, "bottom-left")
			assert.InDelta(t, cell/3, p.Radius, 1e-9)
		}
	}
}

func TestLayout_BottomRightKeepsDots(t *testing.T) {
	t.Parallel()

	// From version 2 on, the last alignment pattern is centred on
	// (S-7, S-7), which is inside the bottom-right 7x7 corner.
	m, err := qr.GenerateMatrix(connectURI, qr.LevelMedium)
	require.NoError(t, err)
	require.Greater(t, m.Size(), qr.MinMatrixSize)

	prims, err := qr.Layout(m, 280, qr.LayoutOptions{})
	require.NoError(t, err)

	cell := 280 / float64(m.Size())
	want := m.Size() - qr.FinderSize
	found := false
	for _, p := range prims {
		if p.Kind != qr.KindDot {
			continue
		}
		if row, col := moduleOf(p, cell); row == want && col == want {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLayout_ReserveCenter(t *testing.T) {
	t.Parallel()

	m, err := qr.GenerateMatrix(connectURI, qr.LevelMedium)
	require.NoError(t, err)

	g, err := qr.NewGeometry(m.Size(), 280, true, 0)
	require.NoError(t, err)

	plain, err := qr.Layout(m, 280, qr.LayoutOptions{})
	require.NoError(t, err)
	reserved, err := qr.Layout(m, 280, qr.LayoutOptions{ReserveCenter: true})
	require.NoError(t, err)

	for _, p := range reserved {
		if p.Kind != qr.KindDot {
			continue
		}
		row, col := moduleOf(p, g.CellSize)
		assert.False(t, qr.InClearArea(row, col, g), "dot at (%d, %d)", row, col)
	}

	hidden := 0
	for i, row := range m {
		for j, set := range row {
			if set && !qr.InFinderCorner(i, j, m.Size()) && qr.InClearArea(i, j, g) {
				hidden++
			}
		}
	}
	_, plainDots := qr.Count(plain)
	_, reservedDots := qr.Count(reserved)
	assert.Positive(t, hidden)
	assert.Equal(t, plainDots-hidden, reservedDots)
}

func TestGeometry_ClearWindowIsStrict(t *testing.T) {
	t.Parallel()

	// 21 modules at 280px: cell 13.33, span floor(101/13.33) = 7,
	// window bounds 7 and 13, exclusive.
	g, err := qr.NewGeometry(21, 280, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, g.ClearSpan)
	assert.InDelta(t, 7.0, g.ClearStart, 1e-9)
	assert.InDelta(t, 13.0, g.ClearEnd, 1e-9)

	assert.True(t, qr.InClearArea(8, 8, g))
	assert.True(t, qr.InClearArea(12, 12, g))
	assert.False(t, qr.InClearArea(7, 8, g))
	assert.False(t, qr.InClearArea(8, 13, g))
	assert.False(t, qr.InClearArea(13, 13, g))
}

func TestGeometry_OverlaySize(t *testing.T) {
	t.Parallel()

	small, err := qr.NewGeometry(33, 330, true, 20)
	require.NoError(t, err)
	large, err := qr.NewGeometry(33, 330, true, 120)
	require.NoError(t, err)

	assert.Equal(t, 4, small.ClearSpan)
	assert.Equal(t, 14, large.ClearSpan)

	_, err = qr.NewGeometry(33, 330, true, -1)
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)
}

func TestInFinderCorner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		row, col int
		want     bool
	}{
		{0, 0, true},
		{6, 6, true},
		{7, 0, false},
		{0, 7, false},
		{13, 0, false},
		{14, 0, true},
		{20, 6, true},
		{0, 14, true},
		{6, 20, true},
		{14, 14, false},
		{20, 20, false},
		{10, 10, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qr.InFinderCorner(tt.row, tt.col, 21), "(%d, %d)", tt.row, tt.col)
	}
}

func TestLayout_InvalidGeometry(t *testing.T) {
	t.Parallel()

	m, err := qr.GenerateMatrix("hello", qr.LevelMedium)
	require.NoError(t, err)

	for _, size := range []float64{0, -10} {
		_, err := qr.Layout(m, size, qr.LayoutOptions{})
		assert.ErrorIs(t, err, qr.ErrInvalidGeometry)
	}

	ragged := qr.Matrix{{true, false}, {true}}
	_, err = qr.Layout(ragged, 100, qr.LayoutOptions{})
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)

	_, err = qr.Layout(nil, 100, qr.LayoutOptions{})
	assert.ErrorIs(t, err, qr.ErrInvalidGeometry)
}

func TestPrimitive_MarshalJSON(t *testing.T) {
	t.Parallel()

	block, err := json.Marshal(qr.Block(0, 10, 70, 70, 12, 12, "#000000"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"block","x":0,"y":10,"width":70,"height":70,"cornerRadiusX":12,"cornerRadiusY":12,"fillColor":"#000000"}`, string(block))

	dot, err := json.Marshal(qr.Dot(5, 15, 3, "#000000"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"dot","centerX":5,"centerY":15,"radius":3,"fillColor":"#000000"}`, string(dot))
}
