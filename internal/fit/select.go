package fit

import "github.com/verte-zerg/tuifit/internal/model"

// Select returns the samples inside r, bounds inclusive, in series order.
// r must already be normalized. NaN coordinates never match.
func Select(s model.Series, r model.Rect) []model.Sample {
	var out []model.Sample
	for i := 0; i < s.Len(); i++ {
		x, y := s.X[i], s.Y[i]
		if !(x >= r.X0 && x <= r.X1) {
			continue
		}
		if !(y >= r.Y0 && y <= r.Y1) {
			continue
		}
		out = append(out, model.Sample{X: x, Y: y})
	}
	return out
}
