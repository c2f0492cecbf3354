// Package qr turns a text payload into a QR module matrix and lays the matrix
// out as an ordered list of draw primitives: three rounded finder targets
// followed by one circular dot per filled data module.
//
// The finder targets always sit in the top-left, top-right and bottom-left
// corners. Modules under those corners are never emitted as dots, and when a
// centre overlay is requested the modules inside the clear window are skipped
// as well.
//
// Matrix generation and layout are pure functions. A Renderer combines them
// with a Memo and falls back to a placeholder scene when no payload is
// available or the payload does not fit the requested error-correction level.
package qr
