package qr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Reasons a Scene can be a placeholder.
const (
	ReasonLoading  = "loading"
	ReasonEmpty    = "empty"
	ReasonCapacity = "capacity"
)

// Options describe one render request.
type Options struct {
	Payload string
	Level   Level

	// Size is the edge of the drawing in pixels.
	Size float64

	// ClearArea reserves the centre window. Overlay implies it.
	ClearArea   bool
	Overlay     bool
	OverlaySize float64

	Foreground string
	Background string

	// Loading forces the placeholder even when a payload is present.
	Loading bool
}

// ReserveCenter reports whether the centre window is kept free of dots.
func (o Options) ReserveCenter() bool {
	return o.ClearArea || o.Overlay
}

// Scene is the result of a render: either a laid-out matrix or a placeholder.
type Scene struct {
	Size        float64     `json:"size"`
	Modules     int         `json:"modules"`
	Level       Level       `json:"level"`
	Primitives  []Primitive `json:"primitives"`
	Placeholder bool        `json:"placeholder"`
	Reason      string      `json:"reason,omitempty"`
	Label       string      `json:"label,omitempty"`
	Foreground  string      `json:"foreground"`
	Background  string      `json:"background"`
	Overlay     bool        `json:"overlay,omitempty"`

	// Matrix and Geometry are nil/zero for placeholders.
	Matrix   Matrix    `json:"-"`
	Geometry *Geometry `json:"geometry,omitempty"`
}

// Renderer turns Options into Scenes. Matrices are cached in a Memo; a
// Renderer is safe for concurrent use.
type Renderer struct {
	memo *Memo
	log  *slog.Logger
}

// NewRenderer returns a Renderer that encodes through a Memo of the given
// capacity around encoder. A nil encoder selects GoQRCodeEncoder.
func NewRenderer(encoder Encoder, memoCapacity int, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		memo: NewMemo(encoder, memoCapacity),
		log:  log,
	}
}

// Render validates opts, encodes the payload and lays it out. Invalid sizes
// and levels fail before any encoding. A missing payload, a loading flag or
// a payload that exceeds capacity produce a placeholder Scene, not an error.
func (r *Renderer) Render(opts Options) (*Scene, error) {
	if err := checkRenderSize(opts.Size); err != nil {
		return nil, err
	}
	if !opts.Level.Valid() {
		return nil, fmt.Errorf("%w: unknown error-correction level %d", ErrInvalidGeometry, int(opts.Level))
	}
	fg, bg := LayoutOptions{Foreground: opts.Foreground, Background: opts.Background}.colors()

	switch {
	case opts.Loading:
		return r.placeholder(opts, fg, bg, ReasonLoading)
	case opts.Payload == "":
		return r.placeholder(opts, fg, bg, ReasonEmpty)
	}

	matrix, err := r.memo.Matrix(opts.Payload, opts.Level)
	if errors.Is(err, ErrCapacityExceeded) {
		r.log.Warn("QR capacity exceeded, rendering placeholder",
			"bytes", len(opts.Payload), "level", opts.Level.String())
		return r.placeholder(opts, fg, bg, ReasonCapacity)
	}
	if err != nil {
		return nil, fmt.Errorf("generate matrix: %w", err)
	}

	layoutOpts := LayoutOptions{
		ReserveCenter: opts.ReserveCenter(),
		OverlaySize:   opts.OverlaySize,
		Foreground:    fg,
		Background:    bg,
	}
	prims, err := Layout(matrix, opts.Size, layoutOpts)
	if err != nil {
		return nil, fmt.Errorf("layout matrix: %w", err)
	}
	g, err := NewGeometry(matrix.Size(), opts.Size, layoutOpts.ReserveCenter, opts.OverlaySize)
	if err != nil {
		return nil, fmt.Errorf("layout matrix: %w", err)
	}

	r.log.Debug("rendered QR scene", "modules", matrix.Size(), "primitives", len(prims))

	return &Scene{
		Size:       opts.Size,
		Modules:    matrix.Size(),
		Level:      opts.Level,
		Primitives: prims,
		Foreground: fg,
		Background: bg,
		Overlay:    opts.Overlay,
		Matrix:     matrix,
		Geometry:   &g,
	}, nil
}

// MemoStats exposes the hit and miss counters of the matrix cache.
func (r *Renderer) MemoStats() (hits, misses uint64) {
	return r.memo.Stats()
}

func (r *Renderer) placeholder(opts Options, fg, bg, reason string) (*Scene, error) {
	prims, err := Placeholder(opts.Size, fg, bg)
	if err != nil {
		return nil, fmt.Errorf("layout placeholder: %w", err)
	}
	return &Scene{
		Size:        opts.Size,
		Modules:     PlaceholderModules,
		Level:       opts.Level,
		Primitives:  prims,
		Placeholder: true,
		Reason:      reason,
		Label:       PlaceholderLabel,
		Foreground:  fg,
		Background:  bg,
	}, nil
}
