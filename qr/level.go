package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	rscqr "rsc.io/qr"
)

// Level is a QR error-correction level. Higher levels tolerate more damaged
// modules at the cost of capacity.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelQuartile
	LevelHigh
)

// ParseLevel accepts the single-letter names L, M, Q and H (any case) as well
// as the long names low, medium, quartile and high.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "low":
		return LevelLow, nil
	case "m", "medium":
		return LevelMedium, nil
	case "q", "quartile":
		return LevelQuartile, nil
	case "h", "high":
		return LevelHigh, nil
	}
	return 0, fmt.Errorf("%w: unknown error-correction level %q", ErrInvalidGeometry, s)
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= LevelLow && l <= LevelHigh
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "L"
	case LevelMedium:
		return "M"
	case LevelQuartile:
		return "Q"
	case LevelHigh:
		return "H"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: unknown error-correction level %d", ErrInvalidGeometry, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// go-qrcode names the four levels Low, Medium, High and Highest.
func (l Level) recovery() qrcode.RecoveryLevel {
	switch l {
	case LevelLow:
		return qrcode.Low
	case LevelQuartile:
		return qrcode.High
	case LevelHigh:
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

func (l Level) rsc() rscqr.Level {
	switch l {
	case LevelLow:
		return rscqr.L
	case LevelQuartile:
		return rscqr.Q
	case LevelHigh:
		return rscqr.H
	default:
		return rscqr.M
	}
}
