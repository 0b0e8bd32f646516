// Package fit implements range selection and exponential decay fitting.
package fit

import (
	"math"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Normalize orders the rect corners so that X0 <= X1 and Y0 <= Y1.
func Normalize(r model.Rect) model.Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

// sameExact reports bit-for-bit equality of two rects as observed.
func sameExact(a, b model.Rect) bool {
	return math.Float64bits(a.X0) == math.Float64bits(b.X0) &&
		math.Float64bits(a.X1) == math.Float64bits(b.X1) &&
		math.Float64bits(a.Y0) == math.Float64bits(b.Y0) &&
		math.Float64bits(a.Y1) == math.Float64bits(b.Y1)
}

// sameTruncated compares the integer parts of all four bounds.
func sameTruncated(a, b model.Rect) bool {
	return math.Trunc(a.X0) == math.Trunc(b.X0) &&
		math.Trunc(a.X1) == math.Trunc(b.X1) &&
		math.Trunc(a.Y0) == math.Trunc(b.Y0) &&
		math.Trunc(a.Y1) == math.Trunc(b.Y1)
}
