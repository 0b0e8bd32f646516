package ingest

import (
	"errors"
	"io"
)

// ErrNoCurveDecoder is returned when a curve container is loaded without a
// decoder configured.
var ErrNoCurveDecoder = errors.New("no decoder configured for binary curve containers")

// Curve is an xy-curve block decoded from a binary curve container.
type Curve struct {
	X      []float64
	Y      []float64
	XTitle string
	YTitle string
	Title  string
}

// CurveDecoder extracts the first xy-curve block from a container.
type CurveDecoder interface {
	Decode(r io.Reader) (Curve, error)
}
