package qr

import "errors"

var (
	// ErrCapacityExceeded is returned when a payload does not fit in the
	// largest QR version at the requested error-correction level.
	ErrCapacityExceeded = errors.New("qr: payload exceeds encoding capacity")

	// ErrInvalidGeometry is returned for caller-contract violations: a
	// non-positive render size, an unknown error-correction level or a
	// matrix that is not square.
	ErrInvalidGeometry = errors.New("qr: invalid geometry")
)
