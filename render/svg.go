// Package render draws qr.Scene primitives onto concrete surfaces: SVG
// documents, PNG images and ANSI terminals.
package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/openclaw/qrkit/qr"
)

// Frame colours of the viewfinder brackets.
const (
	FrameColor      = "#2D2D2D"
	FrameErrorColor = "#FF0000"
	frameOpacity    = 0.01
	frameErrOpacity = 0.56
)

// DefaultPadding is the margin, in pixels, kept around the symbol.
const DefaultPadding = 10.0

// overlayRatio is the share of the symbol covered by the overlay backdrop.
const overlayRatio = 0.28

// viewfinderPath outlines the four corner brackets in a 283x283 box.
const viewfinderPath = "M3.5 264.06C3.5 272.587 10.4127 279.5 18.9399 279.5H32.8799C33.7083 279.5 34.3799 280.172 34.3799 281V281C34.3799 281.828 33.7083 282.5 32.8799 282.5H17.4399C8.08427 282.5 0.5 274.916 0.5 265.56V250.12C0.5 249.292 1.17157 248.62 2 248.62V248.62C2.82843 248.62 3.5 249.292 3.5 250.12V264.06ZM282.5 266.058C282.5 275.139 275.139 282.5 266.058 282.5H251.116C250.288 282.5 249.616 281.828 249.616 281V281C249.616 280.172 250.288 279.5 251.116 279.5H264.558C272.81 279.5 279.5 272.81 279.5 264.558V250.12C279.5 249.292 280.172 248.62 281 248.62V248.62C281.828 248.62 282.5 249.292 282.5 250.12V266.058ZM34.3799 2C34.3799 2.82843 33.7083 3.5 32.8799 3.5H18.9399C10.4127 3.5 3.5 10.4127 3.5 18.9399V32.8799C3.5 33.7083 2.82843 34.3799 2 34.3799V34.3799C1.17157 34.3799 0.5 33.7083 0.5 32.8799V17.4399C0.5 8.08427 8.08427 0.5 17.4399 0.5H32.8799C33.7083 0.5 34.3799 1.17157 34.3799 2V2ZM282.5 32.8799C282.5 33.7083 281.828 34.3799 281 34.3799V34.3799C280.172 34.3799 279.5 33.7083 279.5 32.8799V18.4419C279.5 10.1897 272.81 3.5 264.558 3.5H251.116C250.288 3.5 249.616 2.82843 249.616 2V2C249.616 1.17157 250.288 0.5 251.116 0.5H266.058C275.139 0.5 282.5 7.86129 282.5 16.9419V32.8799Z"

// SVGOptions control the decorations drawn around a scene.
type SVGOptions struct {
	// Padding around the symbol in pixels. Negative values are treated as zero.
	Padding float64

	// Frame draws the viewfinder corner brackets. Error switches them to the
	// error colour.
	Frame      bool
	Error      bool
	FrameColor string

	// OverlayBackground fills the centre backdrop of scenes with an overlay.
	// Empty means the scene background.
	OverlayBackground string
}

// WriteSVG writes scene as a standalone SVG document.
func WriteSVG(w io.Writer, scene *qr.Scene, opts SVGOptions) error {
	if scene == nil {
		return fmt.Errorf("write svg: nil scene")
	}
	_, err := io.WriteString(w, SVG(scene, opts))
	if err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// SVG returns scene as a standalone SVG document.
func SVG(scene *qr.Scene, opts SVGOptions) string {
	pad := math.Max(opts.Padding, 0)
	total := scene.Size + 2*pad

	var sb strings.Builder
	fmt.Fprintf(&sb,
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%s" height="%s">`,
		num(total), num(total), num(total), num(total),
	)
	fmt.Fprintf(&sb, `<rect width="%s" height="%s" fill="%s"/>`, num(total), num(total), attr(scene.Background))

	if opts.Frame {
		color, opacity := frameStyle(opts)
		fmt.Fprintf(&sb,
			`<svg width="%s" height="%s" viewBox="0 0 283 283" fill="none"><path d="%s" fill="%s" fill-opacity="%s"/></svg>`,
			num(total), num(total), viewfinderPath, attr(color), num(opacity),
		)
	}

	fmt.Fprintf(&sb, `<g transform="translate(%s %s)">`, num(pad), num(pad))
	for _, p := range scene.Primitives {
		writePrimitive(&sb, p)
	}
	if scene.Overlay && !scene.Placeholder {
		side := scene.Size * overlayRatio
		origin := (scene.Size - side) / 2
		bg := opts.OverlayBackground
		if bg == "" {
			bg = scene.Background
		}
		fmt.Fprintf(&sb, `<rect x="%s" y="%s" width="%s" height="%s" rx="12" ry="12" fill="%s"/>`,
			num(origin), num(origin), num(side), num(side), attr(bg))
	}
	if scene.Placeholder {
		writeLoading(&sb, scene)
	}
	sb.WriteString(`</g></svg>`)

	return sb.String()
}

func writePrimitive(sb *strings.Builder, p qr.Primitive) {
	switch p.Kind {
	case qr.KindBlock:
		fmt.Fprintf(sb, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s" ry="%s" fill="%s"/>`,
			num(p.X), num(p.Y), num(p.Width), num(p.Height), num(p.RadiusX), num(p.RadiusY), attr(p.Fill))
	case qr.KindDot:
		fmt.Fprintf(sb, `<circle cx="%s" cy="%s" r="%s" fill="%s"/>`,
			num(p.CenterX), num(p.CenterY), num(p.Radius), attr(p.Fill))
	}
}

// writeLoading draws the spinner ring and label over the placeholder centre.
func writeLoading(sb *strings.Builder, scene *qr.Scene) {
	mid := scene.Size / 2
	r := scene.Size / 20
	fmt.Fprintf(sb,
		`<circle cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-opacity="0.25" stroke-width="3" stroke-dasharray="%s %s"/>`,
		num(mid), num(mid-r), num(r), attr(scene.Foreground), num(r*4), num(r*2.3),
	)
	fmt.Fprintf(sb,
		`<text x="%s" y="%s" text-anchor="middle" font-family="sans-serif" font-size="%s" fill="%s" fill-opacity="0.44">%s</text>`,
		num(mid), num(mid+r*1.8), num(math.Max(scene.Size/24, 8)), attr(scene.Foreground), html.EscapeString(scene.Label),
	)
}

func frameStyle(opts SVGOptions) (string, float64) {
	if opts.Error {
		return FrameErrorColor, frameErrOpacity
	}
	if opts.FrameColor != "" {
		return opts.FrameColor, frameOpacity
	}
	return FrameColor, frameOpacity
}

// num formats v with at most two decimals and no trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func attr(s string) string {
	return html.EscapeString(s)
}
