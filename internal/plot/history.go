package plot

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/tuifit/internal/model"
)

// PlotTau renders the fitted time constants of records as a line plot, oldest
// first. Width and height are in cells; zero picks defaults.
func PlotTau(w io.Writer, records []model.FitRecord, width, height int, forceColor bool) error {
	values := make([]float64, 0, len(records))
	for _, rec := range records {
		if math.IsNaN(rec.Tau) || math.IsInf(rec.Tau, 0) {
			continue
		}
		values = append(values, rec.Tau)
	}
	if len(values) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight / 2
	}

	minVal, maxVal := minMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		minVal--
		maxVal++
	}
	labels := yLabels(model.Rect{Y0: minVal, Y1: maxVal}, height)
	lw := labelWidth(labels)
	if width <= 0 {
		width = WidthFor(TerminalWidth(), lw+len([]rune(axisSeparator)))
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	c := newCanvas(width, height)
	points := resample(values, c.dotsWide())
	prevX, prevY := -1, -1
	for x, v := range points {
		y := scale(v, minVal, maxVal, c.dotsTall(), true)
		if prevX >= 0 {
			c.line(prevX, prevY, x, y, 0)
		} else {
			c.set(x, y, 0)
		}
		prevX, prevY = x, y
	}

	useColor := UseColor(w, forceColor)
	if _, err := fmt.Fprintf(w, "tau over %d fits: min=%.4f max=%.4f\n", len(values), minVal, maxVal); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		if _, err := fmt.Fprintln(w, padLeft(labels[y], lw)+axisSeparator+c.row(y, useColor)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, strings.Repeat(" ", lw)+" └"+strings.Repeat("─", width+1))
	return err
}

// resample stretches or averages values to exactly width points.
func resample(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	if len(values) == 1 || width == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(math.Floor(pos))
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
