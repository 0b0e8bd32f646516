package plot

import (
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/tuifit/internal/model"
)

const axisSeparator = " │ "

// Overlay is a curve drawn over the scatter within Domain.
type Overlay struct {
	Eval   func(x float64) float64
	Domain model.Span
}

// Scatter renders samples that fall inside View as braille dots.
type Scatter struct {
	Title  string
	XTitle string
	YTitle string
	View   model.Rect
	// Width and Height are in terminal cells, excluding the axes.
	Width  int
	Height int
	Color  bool
}

// AxisWidth returns the columns taken by the y axis labels and separator.
func (s Scatter) AxisWidth() int {
	view := widen(s.View)
	return labelWidth(yLabels(view, s.height())) + len([]rune(axisSeparator))
}

// Render returns the plot as lines ready to print.
func (s Scatter) Render(samples []model.Sample, overlay *Overlay) []string {
	view := widen(s.View)
	width := s.Width
	if width < minPlotWidth {
		width = minPlotWidth
	}
	height := s.height()
	c := newCanvas(width, height)

	for _, pt := range samples {
		if !(pt.X >= view.X0 && pt.X <= view.X1 && pt.Y >= view.Y0 && pt.Y <= view.Y1) {
			continue
		}
		c.set(scale(pt.X, view.X0, view.X1, c.dotsWide(), false), scale(pt.Y, view.Y0, view.Y1, c.dotsTall(), true), 0)
	}
	if overlay != nil && overlay.Eval != nil {
		drawOverlay(c, view, *overlay)
	}

	labels := yLabels(view, height)
	lw := labelWidth(labels)
	pad := strings.Repeat(" ", lw)

	lines := make([]string, 0, height+5)
	if s.Title != "" {
		lines = append(lines, s.Title)
	}
	if s.YTitle != "" {
		lines = append(lines, s.YTitle)
	}
	for y := 0; y < height; y++ {
		lines = append(lines, padLeft(labels[y], lw)+axisSeparator+c.row(y, s.Color))
	}
	lines = append(lines, pad+" └"+strings.Repeat("─", width+1))

	left, right := formatTick(view.X0), formatTick(view.X1)
	gap := width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	lines = append(lines, pad+"   "+left+strings.Repeat(" ", gap)+right)
	if s.XTitle != "" {
		lines = append(lines, pad+"   "+s.XTitle)
	}
	return lines
}

func (s Scatter) height() int {
	if s.Height <= 0 {
		return defaultPlotHeight
	}
	return s.Height
}

func drawOverlay(c *canvas, view model.Rect, overlay Overlay) {
	prevX, prevY := -1, -1
	n := c.dotsWide()
	for px := 0; px < n; px++ {
		x := view.X0 + (view.X1-view.X0)*float64(px)/float64(n-1)
		if x < overlay.Domain.Min || x > overlay.Domain.Max {
			prevX = -1
			continue
		}
		y := overlay.Eval(x)
		if math.IsNaN(y) || math.IsInf(y, 0) || y < view.Y0 || y > view.Y1 {
			prevX = -1
			continue
		}
		py := scale(y, view.Y0, view.Y1, c.dotsTall(), true)
		if prevX >= 0 {
			c.line(prevX, prevY, px, py, 1)
		} else {
			c.set(px, py, 1)
		}
		prevX, prevY = px, py
	}
}

// widen orders the corners and gives zero-size extents a unit span.
func widen(r model.Rect) model.Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	if math.Abs(r.X1-r.X0) < 1e-12 {
		r.X0--
		r.X1++
	}
	if math.Abs(r.Y1-r.Y0) < 1e-12 {
		r.Y0--
		r.Y1++
	}
	return r
}

func yLabels(view model.Rect, height int) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = formatTick(view.Y1)
	if height > 2 {
		labels[height/2] = formatTick(view.Y1 - (view.Y1-view.Y0)*float64(height/2)/float64(height-1))
	}
	if height > 1 {
		labels[height-1] = formatTick(view.Y0)
	}
	return labels
}

func labelWidth(labels []string) int {
	w := 0
	for _, l := range labels {
		if n := len(l); n > w {
			w = n
		}
	}
	return w
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
