package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	rscqr "rsc.io/qr"
)

// Matrix is a square grid of QR modules indexed as m[row][column]. A true
// value marks a filled module. A Matrix is never modified after it has been
// generated, so it is safe to share between concurrent layouts.
type Matrix [][]bool

// Size returns the side length of the matrix.
func (m Matrix) Size() int {
	return len(m)
}

// Square reports whether m is non-empty and every row is as long as the
// matrix is tall.
func (m Matrix) Square() bool {
	if len(m) == 0 {
		return false
	}
	for _, row := range m {
		if len(row) != len(m) {
			return false
		}
	}
	return true
}

// Encoder produces the module matrix for a payload. Implementations return
// an error wrapping ErrCapacityExceeded when the payload is too large for
// the level.
type Encoder interface {
	Encode(payload string, level Level) (Matrix, error)
}

// Encoder names accepted by NewEncoder.
const (
	EncoderGoQRCode = "go-qrcode"
	EncoderRSC      = "rsc"
)

// NewEncoder returns the encoder registered under name. An empty name selects
// the go-qrcode encoder.
func NewEncoder(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case "", EncoderGoQRCode:
		return GoQRCodeEncoder{}, nil
	case EncoderRSC:
		return RSCEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown encoder %q", name)
}

// GenerateMatrix encodes payload at level with the default encoder. The
// empty payload is valid and yields the smallest (21x21) symbol.
func GenerateMatrix(payload string, level Level) (Matrix, error) {
	return GoQRCodeEncoder{}.Encode(payload, level)
}

// GoQRCodeEncoder encodes with github.com/skip2/go-qrcode, which picks the
// smallest version and the data mask with the lowest penalty score.
type GoQRCodeEncoder struct{}

// Encode implements Encoder.
func (GoQRCodeEncoder) Encode(payload string, level Level) (Matrix, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown error-correction level %d", ErrInvalidGeometry, int(level))
	}
	// go-qrcode rejects empty content outright.
	if payload == "" {
		return RSCEncoder{}.Encode(payload, level)
	}

	q, err := qrcode.New(payload, level.recovery())
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes at level %s: %v", ErrCapacityExceeded, len(payload), level, err)
	}
	q.DisableBorder = true

	// Bitmap may only be called once per QRCode: it appends terminator bits.
	return Matrix(q.Bitmap()), nil
}

// RSCEncoder encodes with rsc.io/qr. It uses a single encoding mode per
// payload and a fixed data mask, so its symbols can differ from go-qrcode's
// for the same input.
type RSCEncoder struct{}

// Encode implements Encoder.
func (RSCEncoder) Encode(payload string, level Level) (Matrix, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown error-correction level %d", ErrInvalidGeometry, int(level))
	}

	code, err := rscqr.Encode(payload, level.rsc())
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes at level %s: %v", ErrCapacityExceeded, len(payload), level, err)
	}

	m := make(Matrix, code.Size)
	for y := range m {
		row := make([]bool, code.Size)
		for x := range row {
			row[x] = code.Black(x, y)
		}
		m[y] = row
	}
	return m, nil
}
