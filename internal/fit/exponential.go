package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Exponential is the decay model A·exp(−x/τ), plus C when Offset is set.
// Parameters are ordered [A, τ] or [A, τ, C].
type Exponential struct {
	Offset bool
}

// NumParams implements Curve.
func (e Exponential) NumParams() int {
	if e.Offset {
		return 3
	}
	return 2
}

// Eval implements Curve.
func (e Exponential) Eval(x float64, p []float64) float64 {
	y := p[0] * math.Exp(-x/p[1])
	if e.Offset {
		y += p[2]
	}
	return y
}

// Gradient implements Curve.
func (e Exponential) Gradient(dst []float64, x float64, p []float64) {
	ex := math.Exp(-x / p[1])
	dst[0] = ex
	dst[1] = p[0] * ex * x / (p[1] * p[1])
	if e.Offset {
		dst[2] = 1
	}
}

// InitialGuess derives starting parameters from a non-empty selection:
// A from the first point's y, τ from the x distance between the last and
// first points and, with an offset, C from the smallest y.
func InitialGuess(points []model.Sample, withOffset bool) []float64 {
	first, last := points[0], points[len(points)-1]
	guess := []float64{first.Y, last.X - first.X}
	if !withOffset {
		return guess
	}
	minY := first.Y
	for _, pt := range points[1:] {
		if pt.Y < minY {
			minY = pt.Y
		}
	}
	return append(guess, minY)
}

// Result is a finished exponential fit.
type Result struct {
	Amplitude   float64
	Tau         float64
	Offset      float64
	HasOffset   bool
	Covariance  *mat.SymDense
	Status      Status
	SSR         float64
	Evaluations int
}

// Converged reports whether the optimizer signalled success.
func (r Result) Converged() bool {
	return r.Status.Success()
}

// HalfLife returns τ·ln2.
func (r Result) HalfLife() float64 {
	return r.Tau * math.Ln2
}

// Rate returns 1/τ.
func (r Result) Rate() float64 {
	return 1 / r.Tau
}

// Eval evaluates the fitted curve at x.
func (r Result) Eval(x float64) float64 {
	return r.curve().Eval(x, r.params())
}

// StdErrs returns the one-sigma parameter errors from the covariance diagonal.
func (r Result) StdErrs() []float64 {
	if r.Covariance == nil {
		return nil
	}
	k := r.Covariance.SymmetricDim()
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		out[i] = math.Sqrt(r.Covariance.At(i, i))
	}
	return out
}

func (r Result) curve() Exponential {
	return Exponential{Offset: r.HasOffset}
}

func (r Result) params() []float64 {
	if r.HasOffset {
		return []float64{r.Amplitude, r.Tau, r.Offset}
	}
	return []float64{r.Amplitude, r.Tau}
}

// Fitter fits the exponential model through an Optimizer.
type Fitter struct {
	opt Optimizer
}

// NewFitter returns a Fitter using opt, or Levenberg-Marquardt when opt is nil.
func NewFitter(opt Optimizer) *Fitter {
	if opt == nil {
		opt = LevenbergMarquardt{}
	}
	return &Fitter{opt: opt}
}

// Fit estimates the model parameters. The model variant follows the guess
// length: two values fit without offset, three with. Failing to converge is
// reported through Result.Status, not as an error.
func (f *Fitter) Fit(points []model.Sample, guess []float64) (Result, error) {
	if len(guess) != 2 && len(guess) != 3 {
		return Result{}, &FitError{Err: ErrParamMismatch}
	}
	curve := Exponential{Offset: len(guess) == 3}
	out, err := f.opt.Optimize(curve, points, guess)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Amplitude:   out.Params[0],
		Tau:         out.Params[1],
		HasOffset:   curve.Offset,
		Covariance:  out.Covariance,
		Status:      out.Status,
		SSR:         out.SSR,
		Evaluations: out.Evaluations,
	}
	if curve.Offset {
		res.Offset = out.Params[2]
	}
	return res, nil
}
