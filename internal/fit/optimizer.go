package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Curve is a parametric model y = f(x; p) with analytic partial derivatives.
type Curve interface {
	NumParams() int
	Eval(x float64, p []float64) float64
	// Gradient writes df/dp_i at x into dst.
	Gradient(dst []float64, x float64, p []float64)
}

// Optimizer minimizes the sum of squared residuals of a curve over points.
type Optimizer interface {
	Optimize(c Curve, points []model.Sample, initial []float64) (OptimizeResult, error)
}

// OptimizeResult is the raw optimizer output.
type OptimizeResult struct {
	Params      []float64
	Covariance  *mat.SymDense
	Status      Status
	SSR         float64
	Evaluations int
}

// Status is the optimizer's termination code.
type Status int

// Termination codes. The first three mean a solution was found.
const (
	StatusConverged Status = iota + 1
	StatusStepTolerance
	StatusGradientTolerance
	StatusIterationLimit
	StatusStalled
)

// Success reports whether the optimizer terminated on one of its tolerances.
func (s Status) Success() bool {
	switch s {
	case StatusConverged, StatusStepTolerance, StatusGradientTolerance:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusStepTolerance:
		return "step-tolerance"
	case StatusGradientTolerance:
		return "gradient-tolerance"
	case StatusIterationLimit:
		return "iteration-limit"
	case StatusStalled:
		return "stalled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus maps a stored status name back to a Status.
func ParseStatus(name string) Status {
	for s := StatusConverged; s <= StatusStalled; s++ {
		if s.String() == name {
			return s
		}
	}
	return 0
}

// Errors wrapped by FitError.
var (
	ErrEmptyInput    = errors.New("no points to fit")
	ErrParamMismatch = errors.New("initial guess does not match model parameters")
	ErrTooFewPoints  = errors.New("fewer points than model parameters")
	ErrNonFinite     = errors.New("residuals are not finite at the initial point")
)

// FitError reports that the optimizer could not run at all.
type FitError struct {
	Err error
}

func (e *FitError) Error() string {
	return "fit failed: " + e.Err.Error()
}

func (e *FitError) Unwrap() error {
	return e.Err
}

func validateInput(c Curve, points []model.Sample, initial []float64) error {
	if len(points) == 0 {
		return &FitError{Err: ErrEmptyInput}
	}
	if len(initial) != c.NumParams() {
		return &FitError{Err: fmt.Errorf("%w: got %d values, want %d", ErrParamMismatch, len(initial), c.NumParams())}
	}
	if len(points) < c.NumParams() {
		return &FitError{Err: fmt.Errorf("%w: %d points, %d parameters", ErrTooFewPoints, len(points), c.NumParams())}
	}
	if !isFinite(sumSquares(c, points, initial, nil)) {
		return &FitError{Err: ErrNonFinite}
	}
	return nil
}

// sumSquares returns the sum of squared residuals f(x)-y. When res is non-nil
// the residuals are written into it.
func sumSquares(c Curve, points []model.Sample, p []float64, res []float64) float64 {
	var sum float64
	for i, pt := range points {
		r := c.Eval(pt.X, p) - pt.Y
		if res != nil {
			res[i] = r
		}
		sum += r * r
	}
	return sum
}

func jacobian(c Curve, points []model.Sample, p []float64, dst *mat.Dense) {
	row := make([]float64, c.NumParams())
	for i, pt := range points {
		c.Gradient(row, pt.X, p)
		dst.SetRow(i, row)
	}
}

// covariance estimates the parameter covariance as s²·(JᵀJ)⁻¹ with
// s² = SSR/(n-k). It is filled with +Inf when it cannot be estimated.
func covariance(c Curve, points []model.Sample, p []float64, ssr float64) *mat.SymDense {
	n, k := len(points), c.NumParams()
	cov := mat.NewSymDense(k, nil)
	fill := func() *mat.SymDense {
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				cov.SetSym(i, j, math.Inf(1))
			}
		}
		return cov
	}
	if n <= k {
		return fill()
	}
	jac := mat.NewDense(n, k, nil)
	jacobian(c, points, p, jac)
	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&jtj); !ok {
		return fill()
	}
	if err := chol.InverseTo(cov); err != nil {
		return fill()
	}
	cov.ScaleSym(ssr/float64(n-k), cov)
	return cov
}

// stationary reports whether a Gauss-Newton step from p predicts less than
// DefaultFTol of relative reduction in the sum of squares.
func stationary(c Curve, points []model.Sample, p []float64) bool {
	n, k := len(points), c.NumParams()
	res := make([]float64, n)
	cost := sumSquares(c, points, p, res)
	if !isFinite(cost) {
		return false
	}
	jac := mat.NewDense(n, k, nil)
	jacobian(c, points, p, jac)
	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())
	var grad mat.VecDense
	grad.MulVec(jac.T(), mat.NewVecDense(n, res))
	var step mat.VecDense
	if !dampedStep(&jtj, &grad, 0, &step) {
		return false
	}
	var jd mat.VecDense
	jd.MulVec(jac, &step)
	predicted := -(2*mat.Dot(&step, &grad) + mat.Dot(&jd, &jd))
	return predicted <= DefaultFTol*cost
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
