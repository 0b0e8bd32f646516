// Package model defines shared data structures.
package model

import (
	"fmt"
	"math"
	"time"
)

// Default plot titles used when a source carries none.
const (
	DefaultXTitle = "Time[s]"
	DefaultYTitle = "Data / particles"
	DefaultTitle  = "Graph"
)

// Sample is a single (x, y) observation.
type Sample struct {
	X float64
	Y float64
}

// Series holds a loaded data set as index-aligned x and y values.
type Series struct {
	X      []float64
	Y      []float64
	XTitle string
	YTitle string
	Title  string
}

// NewSeries builds a Series, rejecting mismatched lengths. Empty titles fall
// back to the defaults.
func NewSeries(x, y []float64, xTitle, yTitle, title string) (Series, error) {
	if len(x) != len(y) {
		return Series{}, fmt.Errorf("series length mismatch: %d x values, %d y values", len(x), len(y))
	}
	if xTitle == "" {
		xTitle = DefaultXTitle
	}
	if yTitle == "" {
		yTitle = DefaultYTitle
	}
	if title == "" {
		title = DefaultTitle
	}
	return Series{X: x, Y: y, XTitle: xTitle, YTitle: yTitle, Title: title}, nil
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.X)
}

// At returns the i-th sample.
func (s Series) At(i int) Sample {
	return Sample{X: s.X[i], Y: s.Y[i]}
}

// Bounds returns the smallest rect covering every sample. The second return
// value is false for an empty series.
func (s Series) Bounds() (Rect, bool) {
	if s.Len() == 0 {
		return Rect{}, false
	}
	r := Rect{X0: math.Inf(1), X1: math.Inf(-1), Y0: math.Inf(1), Y1: math.Inf(-1)}
	for i := range s.X {
		r.X0 = math.Min(r.X0, s.X[i])
		r.X1 = math.Max(r.X1, s.X[i])
		r.Y0 = math.Min(r.Y0, s.Y[i])
		r.Y1 = math.Max(r.Y1, s.Y[i])
	}
	return r, true
}

// Rect is a selection rectangle. Corners may arrive swapped; see fit.Normalize.
type Rect struct {
	X0 float64
	X1 float64
	Y0 float64
	Y1 float64
}

// Span is a closed interval used to clamp a plot axis.
type Span struct {
	Min float64
	Max float64
}

// Trigger names the interaction that requested a fit.
type Trigger string

// Fit triggers.
const (
	TriggerManual Trigger = "manual"
	TriggerReset  Trigger = "reset"
)

// FitRecord is a persisted fit result.
type FitRecord struct {
	ID        int64
	SessionID string
	Source    string
	Trigger   Trigger
	CreatedAt time.Time
	Rect      Rect
	Points    int
	Amplitude float64
	Tau       float64
	Offset    float64
	HasOffset bool
	Status    string
	Converged bool
	SSR       float64
}

// HistoryFilter narrows ListFits results.
type HistoryFilter struct {
	Source string
	Since  *time.Time
	Last   int
}
