package fit

import (
	"errors"

	"gonum.org/v1/gonum/optimize"

	"github.com/verte-zerg/tuifit/internal/model"
)

// BFGS minimizes the sum of squares with gonum's quasi-Newton method. It is
// slower than LevenbergMarquardt on small problems but tolerates poor
// starting points better.
type BFGS struct {
	MaxIterations     int
	GradientThreshold float64
}

// Optimize implements Optimizer.
func (b BFGS) Optimize(c Curve, points []model.Sample, initial []float64) (OptimizeResult, error) {
	if err := validateInput(c, points, initial); err != nil {
		return OptimizeResult{}, err
	}
	k := c.NumParams()
	row := make([]float64, k)
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return sumSquares(c, points, p, nil)
		},
		Grad: func(grad, p []float64) {
			for i := range grad {
				grad[i] = 0
			}
			for _, pt := range points {
				r := c.Eval(pt.X, p) - pt.Y
				c.Gradient(row, pt.X, p)
				for i := range grad {
					grad[i] += 2 * r * row[i]
				}
			}
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   b.MaxIterations,
		GradientThreshold: b.GradientThreshold,
	}
	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if result == nil {
		return OptimizeResult{}, &FitError{Err: err}
	}
	p := append([]float64(nil), result.X...)
	status := bfgsStatus(result.Status)
	if err != nil {
		status = StatusStalled
		// A failed line search at a stationary point is a converged fit.
		if lineSearchFailed(err) && stationary(c, points, p) {
			status = StatusConverged
		}
	}
	return OptimizeResult{
		Params:      p,
		Covariance:  covariance(c, points, p, result.F),
		Status:      status,
		SSR:         result.F,
		Evaluations: result.Stats.FuncEvaluations,
	}, nil
}

func bfgsStatus(s optimize.Status) Status {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold:
		return StatusConverged
	case optimize.StepConvergence:
		return StatusStepTolerance
	case optimize.IterationLimit:
		return StatusIterationLimit
	default:
		return StatusStalled
	}
}

func lineSearchFailed(err error) bool {
	return errors.Is(err, optimize.ErrNoProgress) || errors.Is(err, optimize.ErrLinesearcherFailure)
}
