package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Controller errors surfaced to the user.
var (
	ErrNoSelection    = errors.New("please select a certain range of data first")
	ErrEmptySelection = errors.New("please select an area containing some valid data")
)

// Outcome describes what a trigger did.
type Outcome int

// Trigger outcomes.
const (
	// OutcomeFitted means a new Publication was produced.
	OutcomeFitted Outcome = iota
	// OutcomeUnchanged means the rect matched the previous one; nothing ran.
	OutcomeUnchanged
	// OutcomeEmpty means the reset trigger found no points and did nothing.
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFitted:
		return "fitted"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeEmpty:
		return "empty"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Publication is everything the presentation layer shows after a fit.
type Publication struct {
	Trigger     model.Trigger
	Rect        model.Rect
	Points      []model.Sample
	Result      Result
	Tau         string
	HalfLife    string
	Rate        string
	ShowWarning bool
	// Line is the fitted curve evaluated at the selected x values.
	Line []model.Sample
	// XRange and YRange clamp the plot axes; nil leaves them free.
	XRange *model.Span
	YRange *model.Span
}

// Controller decides when a selection needs refitting and publishes results.
// It is not safe for concurrent use; callers drive it from one goroutine.
type Controller struct {
	series   model.Series
	fitter   *Fitter
	current  *model.Rect
	previous *model.Rect
	last     *Publication
}

// NewController returns a Controller over series. A nil fitter uses the
// default optimizer.
func NewController(series model.Series, fitter *Fitter) *Controller {
	if fitter == nil {
		fitter = NewFitter(nil)
	}
	return &Controller{series: series, fitter: fitter}
}

// Series returns the loaded data.
func (c *Controller) Series() model.Series {
	return c.series
}

// Load replaces the data and forgets every selection and result.
func (c *Controller) Load(series model.Series) {
	c.series = series
	c.current = nil
	c.previous = nil
	c.last = nil
}

// Observe records the selection rect most recently reported by the plot.
func (c *Controller) Observe(r model.Rect) {
	c.current = &r
}

// Selection returns the last observed rect.
func (c *Controller) Selection() (model.Rect, bool) {
	if c.current == nil {
		return model.Rect{}, false
	}
	return *c.current, true
}

// Last returns the most recent publication.
func (c *Controller) Last() (Publication, bool) {
	if c.last == nil {
		return Publication{}, false
	}
	return *c.last, true
}

// FitManual fits the observed selection without an offset term. An
// identical (bit-for-bit) rect to the previous fit is a no-op; an empty
// selection returns ErrEmptySelection and leaves the state untouched.
func (c *Controller) FitManual() (Publication, Outcome, error) {
	if c.current == nil {
		return Publication{}, OutcomeUnchanged, ErrNoSelection
	}
	rect := *c.current
	if c.previous != nil && sameExact(*c.previous, rect) {
		pub, _ := c.Last()
		return pub, OutcomeUnchanged, nil
	}
	norm := Normalize(rect)
	points := Select(c.series, norm)
	if len(points) == 0 {
		return Publication{}, OutcomeUnchanged, ErrEmptySelection
	}
	c.previous = &rect
	res, err := c.fitter.Fit(points, InitialGuess(points, false))
	if err != nil {
		return Publication{}, OutcomeUnchanged, err
	}
	pub := publish(model.TriggerManual, norm, points, res)
	pub.XRange = &model.Span{Min: norm.X0, Max: norm.X1}
	pub.YRange = &model.Span{Min: norm.Y0, Max: norm.Y1}
	c.last = &pub
	return pub, OutcomeFitted, nil
}

// FitReset refits over view, the plot bounds after a view reset, including
// an offset term. Bounds equal to the previous rect after truncation to
// integers are a no-op, as is a view that holds no points.
func (c *Controller) FitReset(view model.Rect) (Publication, Outcome, error) {
	if c.current == nil {
		return Publication{}, OutcomeUnchanged, ErrNoSelection
	}
	c.current = &view
	if c.previous != nil && sameTruncated(*c.previous, view) {
		pub, _ := c.Last()
		return pub, OutcomeUnchanged, nil
	}
	norm := Normalize(view)
	points := Select(c.series, norm)
	if len(points) == 0 {
		return Publication{}, OutcomeEmpty, nil
	}
	c.previous = &view
	res, err := c.fitter.Fit(points, InitialGuess(points, true))
	if err != nil {
		return Publication{}, OutcomeUnchanged, err
	}
	pub := publish(model.TriggerReset, norm, points, res)
	c.last = &pub
	return pub, OutcomeFitted, nil
}

func publish(trigger model.Trigger, rect model.Rect, points []model.Sample, res Result) Publication {
	line := make([]model.Sample, len(points))
	for i, pt := range points {
		line[i] = model.Sample{X: pt.X, Y: res.Eval(pt.X)}
	}
	return Publication{
		Trigger:     trigger,
		Rect:        rect,
		Points:      points,
		Result:      res,
		Tau:         FormatConstant(res.Tau),
		HalfLife:    FormatConstant(res.Tau * math.Ln2),
		Rate:        FormatConstant(1 / res.Tau),
		ShowWarning: !res.Converged(),
		Line:        line,
	}
}

// FormatConstant renders a derived constant with four decimals.
func FormatConstant(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
