package fit

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/verte-zerg/tuifit/internal/model"
)

// countingOptimizer wraps Levenberg-Marquardt and counts invocations.
type countingOptimizer struct {
	calls int
}

func (o *countingOptimizer) Optimize(c Curve, points []model.Sample, initial []float64) (OptimizeResult, error) {
	o.calls++
	return LevenbergMarquardt{}.Optimize(c, points, initial)
}

func longDecaySeries(t *testing.T) model.Series {
	t.Helper()
	x := make([]float64, 61)
	y := make([]float64, 61)
	for i := range x {
		x[i] = float64(i)
		y[i] = 100 * math.Exp(-x[i]/20)
	}
	s, err := model.NewSeries(x, y, "", "", "")
	if err != nil {
		t.Fatalf("new series: %v", err)
	}
	return s
}

func TestManualFitFullRange(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	c.Observe(model.Rect{X0: 5, X1: 0, Y0: 100, Y1: 0})
	pub, outcome, err := c.FitManual()
	if err != nil {
		t.Fatalf("fit manual: %v", err)
	}
	if outcome != OutcomeFitted {
		t.Fatalf("expected fitted, got %s", outcome)
	}
	if pub.ShowWarning {
		t.Fatalf("expected no convergence warning, status %s", pub.Result.Status)
	}
	if pub.Tau != "1.9832" {
		t.Fatalf("expected tau 1.9832, got %s", pub.Tau)
	}
	if pub.HalfLife != FormatConstant(pub.Result.Tau*math.Ln2) {
		t.Fatalf("half-life %s does not match tau·ln2", pub.HalfLife)
	}
	if pub.Rate != FormatConstant(1/pub.Result.Tau) {
		t.Fatalf("rate %s does not match 1/tau", pub.Rate)
	}
	if len(pub.Line) != 6 || pub.Line[0].X != 0 {
		t.Fatalf("expected overlay over the 6 selected points, got %+v", pub.Line)
	}
	if pub.XRange == nil || pub.XRange.Min != 0 || pub.XRange.Max != 5 {
		t.Fatalf("expected x clamp to the normalized selection, got %+v", pub.XRange)
	}
	if pub.YRange == nil || pub.YRange.Min != 0 || pub.YRange.Max != 100 {
		t.Fatalf("expected y clamp to the normalized selection, got %+v", pub.YRange)
	}
}

func TestManualFitSkipsIdenticalRect(t *testing.T) {
	opt := &countingOptimizer{}
	c := NewController(decaySeries(t), NewFitter(opt))
	rect := model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100}
	c.Observe(rect)
	first, _, err := c.FitManual()
	if err != nil {
		t.Fatalf("first fit: %v", err)
	}
	c.Observe(rect)
	second, outcome, err := c.FitManual()
	if err != nil {
		t.Fatalf("second fit: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", outcome)
	}
	if opt.calls != 1 {
		t.Fatalf("expected one optimizer call, got %d", opt.calls)
	}
	if second.Tau != first.Tau || second.HalfLife != first.HalfLife || second.Rate != first.Rate {
		t.Fatalf("expected prior publication, got %+v", second)
	}

	c.Observe(model.Rect{X0: 0, X1: 5.0000001, Y0: 0, Y1: 100})
	if _, outcome, err := c.FitManual(); err != nil || outcome != OutcomeFitted {
		t.Fatalf("expected refit on a tiny change, got %s, %v", outcome, err)
	}
	if opt.calls != 2 {
		t.Fatalf("expected two optimizer calls, got %d", opt.calls)
	}
}

func TestManualFitWithoutSelection(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	if _, _, err := c.FitManual(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestManualFitEmptySelectionKeepsState(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	c.Observe(model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100})
	before, _, err := c.FitManual()
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	c.Observe(model.Rect{X0: 0, X1: 5, Y0: 1000, Y1: 2000})
	if _, _, err := c.FitManual(); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	last, ok := c.Last()
	if !ok || last.Tau != before.Tau {
		t.Fatalf("expected published tau %s to survive, got %+v", before.Tau, last)
	}

	// The empty rect was not stored, so the original rect is still "previous".
	c.Observe(model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100})
	if _, outcome, err := c.FitManual(); err != nil || outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged after returning to the previous rect, got %s, %v", outcome, err)
	}
}

func TestManualFitPropagatesFitError(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	c.Observe(model.Rect{X0: 2, X1: 2, Y0: 0, Y1: 100})
	_, _, err := c.FitManual()
	var fitErr *FitError
	if !errors.As(err, &fitErr) || !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected FitError with ErrTooFewPoints, got %v", err)
	}
}

func TestResetFitToleratesSubUnitJitter(t *testing.T) {
	opt := &countingOptimizer{}
	c := NewController(longDecaySeries(t), NewFitter(opt))
	c.Observe(model.Rect{X0: 0, X1: 60, Y0: 0, Y1: 100})

	first, outcome, err := c.FitReset(model.Rect{X0: 10.1, X1: 50.2, Y0: 0, Y1: 100})
	if err != nil || outcome != OutcomeFitted {
		t.Fatalf("expected first reset to fit, got %s, %v", outcome, err)
	}
	if !first.Result.HasOffset {
		t.Fatalf("expected the offset model on reset")
	}
	if first.XRange != nil || first.YRange != nil {
		t.Fatalf("expected no axis clamp on reset")
	}
	if math.Abs(first.Result.Tau-20) > 0.01 {
		t.Fatalf("expected tau near 20, got %.6f", first.Result.Tau)
	}

	second, outcome, err := c.FitReset(model.Rect{X0: 10.4, X1: 50.9, Y0: 0, Y1: 100})
	if err != nil || outcome != OutcomeUnchanged {
		t.Fatalf("expected jitter to be ignored, got %s, %v", outcome, err)
	}
	if second.Tau != first.Tau {
		t.Fatalf("expected prior publication, got %+v", second)
	}
	if opt.calls != 1 {
		t.Fatalf("expected one optimizer call, got %d", opt.calls)
	}
}

func TestResetFitEmptyIsSilent(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	c.Observe(model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100})
	if _, _, err := c.FitManual(); err != nil {
		t.Fatalf("fit: %v", err)
	}
	_, outcome, err := c.FitReset(model.Rect{X0: 100, X1: 200, Y0: 0, Y1: 100})
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if outcome != OutcomeEmpty {
		t.Fatalf("expected empty outcome, got %s", outcome)
	}
	last, ok := c.Last()
	if !ok || last.Trigger != model.TriggerManual {
		t.Fatalf("expected the manual publication to remain, got %+v", last)
	}
}

func TestResetFitWithoutSelection(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	if _, _, err := c.FitReset(model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestLoadClearsState(t *testing.T) {
	c := NewController(decaySeries(t), nil)
	c.Observe(model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100})
	if _, _, err := c.FitManual(); err != nil {
		t.Fatalf("fit: %v", err)
	}
	c.Load(longDecaySeries(t))
	if _, ok := c.Last(); ok {
		t.Fatalf("expected no publication after load")
	}
	if _, _, err := c.FitManual(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection after load, got %v", err)
	}
}

func TestSessionRecord(t *testing.T) {
	s := NewSession("decay.csv", decaySeries(t), nil)
	if s.ID == "" {
		t.Fatalf("expected session id")
	}
	s.Observe(model.Rect{X0: 0, X1: 5, Y0: 0, Y1: 100})
	pub, _, err := s.FitManual()
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	now := time.Unix(1700000000, 0)
	rec := s.Record(pub, now)
	if rec.SessionID != s.ID || rec.Source != "decay.csv" || rec.Trigger != model.TriggerManual {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if rec.Points != 6 || !rec.Converged || rec.HasOffset || !rec.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record contents: %+v", rec)
	}
}
