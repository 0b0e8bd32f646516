package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Default PNG size in pixels.
const (
	DefaultPNGWidth  = 960
	DefaultPNGHeight = 540
)

// Chart describes a PNG export of a scatter and its fitted curve.
type Chart struct {
	Title  string
	XTitle string
	YTitle string
	View   model.Rect
	Width  int
	Height int
	// Caption is drawn in the bottom-left corner, e.g. the fitted constants.
	Caption string
}

func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    3,
		DotColor:    col,
	}
}

// RenderPNG writes the chart as PNG. line is drawn as a continuous series over
// the samples when it has at least two points.
func (c Chart) RenderPNG(w io.Writer, samples, line []model.Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to render")
	}
	view := widen(c.View)
	width, height := c.Width, c.Height
	if width <= 0 {
		width = DefaultPNGWidth
	}
	if height <= 0 {
		height = DefaultPNGHeight
	}

	xs, ys := split(samples)
	series := []chart.Series{
		chart.ContinuousSeries{Name: "data", XValues: xs, YValues: ys, Style: pointStyle(chart.ColorBlue)},
	}
	if len(line) >= 2 {
		lx, ly := split(line)
		series = append(series, chart.ContinuousSeries{
			Name:    "fit",
			XValues: lx,
			YValues: ly,
			Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2},
		})
	}

	padBottom := 20
	if c.Caption != "" {
		padBottom += 18
	}
	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: padBottom}},
		XAxis:      chart.XAxis{Name: c.XTitle, Range: &chart.ContinuousRange{Min: view.X0, Max: view.X1}},
		YAxis:      chart.YAxis{Name: c.YTitle, Range: &chart.ContinuousRange{Min: view.Y0, Max: view.Y1}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return fmt.Errorf("failed to decode chart: %w", err)
	}
	if c.Caption != "" {
		img = drawCaption(img, c.Caption)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func split(samples []model.Sample) ([]float64, []float64) {
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.X
		ys[i] = s.Y
	}
	return xs, ys
}

// drawCaption draws text on a dark band near the bottom-left of img.
func drawCaption(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)

	pad := 6
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: rgba, Src: image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}), Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Min.X + 8
	y := b.Max.Y - 6
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 200})
	rect := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}
