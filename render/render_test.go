package render_test

import (
	"bytes"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/qrkit/qr"
	"github.com/openclaw/qrkit/render"
)

func renderScene(t *testing.T, opts qr.Options) *qr.Scene {
	t.Helper()
	r := qr.NewRenderer(nil, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
	scene, err := r.Render(opts)
	require.NoError(t, err)
	return scene
}

func TestSVG_Scene(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Payload: "hello", Level: qr.LevelMedium, Size: 280})
	out := render.SVG(scene, render.SVGOptions{Padding: 10})

	assert.True(t, strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 300 300" width="300" height="300">`))
	assert.True(t, strings.HasSuffix(out, `</g></svg>`))
	assert.Contains(t, out, `<g transform="translate(10 10)">`)

	_, dots := qr.Count(scene.Primitives)
	assert.Equal(t, dots, strings.Count(out, "<circle"))
	// Background plus nine finder layers.
	assert.Equal(t, 10, strings.Count(out, "<rect"))
	assert.NotContains(t, out, "<text")
	assert.NotContains(t, out, "<path")
}

func TestSVG_Deterministic(t *testing.T) {
	t.Parallel()

	opts := qr.Options{Payload: "hello", Level: qr.LevelMedium, Size: 280}
	a := render.SVG(renderScene(t, opts), render.SVGOptions{})
	b := render.SVG(renderScene(t, opts), render.SVGOptions{})
	assert.Equal(t, a, b)
}

func TestSVG_PlaceholderAndFrame(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Level: qr.LevelMedium, Size: 240})
	require.True(t, scene.Placeholder)

	out := render.SVG(scene, render.SVGOptions{Frame: true})
	assert.Contains(t, out, qr.PlaceholderLabel)
	assert.Contains(t, out, `fill="#2D2D2D" fill-opacity="0.01"`)

	errOut := render.SVG(scene, render.SVGOptions{Frame: true, Error: true})
	assert.Contains(t, errOut, `fill="#FF0000" fill-opacity="0.56"`)
}

func TestSVG_OverlayBackdrop(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Payload: "hello", Level: qr.LevelHigh, Size: 200, Overlay: true})
	out := render.SVG(scene, render.SVGOptions{OverlayBackground: "#abcdef"})
	assert.Contains(t, out, `<rect x="72" y="72" width="56" height="56" rx="12" ry="12" fill="#abcdef"/>`)
}

func TestSVG_EscapesColours(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Payload: "hello", Level: qr.LevelMedium, Size: 100, Foreground: `"><script>`})
	out := render.SVG(scene, render.SVGOptions{})
	assert.NotContains(t, out, "<script>")
}

func TestWritePNG(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Payload: "hello", Level: qr.LevelMedium, Size: 280})

	var buf bytes.Buffer
	require.NoError(t, render.WritePNG(&buf, scene, 10))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	cell := 280 / float64(scene.Modules)
	r, g, b, _ := img.At(int(10+3.5*cell), int(10+3.5*cell)).RGBA()
	assert.Zero(t, r|g|b, "finder core is dark")

	r, g, b, _ = img.At(2, 2).RGBA()
	assert.Equal(t, uint32(0xffff), r&g&b, "padding is light")
}

func TestGrid_ReproducesMatrix(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Payload: "hello", Level: qr.LevelMedium, Size: 280})
	require.NotNil(t, scene.Matrix)

	assert.Equal(t, [][]bool(scene.Matrix), render.Grid(scene))
}

func TestGrid_ClearAreaIsBlank(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{
		Payload:   "solana:7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU?amount=1&label=qrkit",
		Level:     qr.LevelHigh,
		Size:      280,
		ClearArea: true,
	})
	require.NotNil(t, scene.Geometry)

	grid := render.Grid(scene)
	for i, row := range grid {
		for j, on := range row {
			if qr.InClearArea(i, j, *scene.Geometry) {
				assert.False(t, on, "(%d, %d)", i, j)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	scene := renderScene(t, qr.Options{Payload: "hello", Level: qr.LevelMedium, Size: 280})
	out := render.Terminal(scene)

	lines := (scene.Modules + 4 + 1) / 2
	assert.Equal(t, lines, strings.Count(out, "\n"))
	assert.Contains(t, out, "█")

	placeholder := renderScene(t, qr.Options{Level: qr.LevelMedium, Size: 280, Loading: true})
	assert.Contains(t, render.Terminal(placeholder), qr.PlaceholderLabel)
}
