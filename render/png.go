package render

import (
	"fmt"
	"io"
	"math"

	"github.com/gogpu/gg"

	"github.com/openclaw/qrkit/qr"
)

// WritePNG rasterises scene with the gg software renderer and writes it as
// PNG. The image edge is scene.Size plus padding on both sides, rounded up.
func WritePNG(w io.Writer, scene *qr.Scene, padding float64) error {
	if scene == nil {
		return fmt.Errorf("write png: nil scene")
	}
	pad := math.Max(padding, 0)
	side := int(math.Ceil(scene.Size + 2*pad))

	dc := gg.NewContext(side, side)
	defer dc.Close()

	dc.SetHexColor(scene.Background)
	dc.DrawRectangle(0, 0, float64(side), float64(side))
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("fill background: %w", err)
	}

	for i, p := range scene.Primitives {
		dc.SetHexColor(p.Fill)
		switch p.Kind {
		case qr.KindBlock:
			dc.DrawRoundedRectangle(pad+p.X, pad+p.Y, p.Width, p.Height, p.RadiusX)
		case qr.KindDot:
			dc.DrawCircle(pad+p.CenterX, pad+p.CenterY, p.Radius)
		default:
			continue
		}
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("fill primitive %d (%s): %w", i, p.Kind, err)
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
