package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Default tolerances, matching the usual MINPACK settings.
const (
	DefaultFTol = 1.49012e-8
	DefaultXTol = 1.49012e-8
	// DefaultStepBound is the initial trust radius relative to the scaled
	// parameter norm.
	DefaultStepBound = 1.0

	lambdaStart = 1e-3
	lambdaMin   = 1e-12
	lambdaMax   = 1e16
	// A trial step is accepted when it achieves at least this fraction of
	// the predicted reduction.
	acceptRatio = 1e-4
)

// LevenbergMarquardt is a damped Gauss-Newton least-squares optimizer with a
// trust region on the step, scaled by the Jacobian column norms. Zero fields
// select defaults. MaxEvaluations defaults to 200*(k+1) for k parameters.
type LevenbergMarquardt struct {
	MaxEvaluations int
	FTol           float64
	XTol           float64
	GTol           float64
	StepBound      float64
}

// Optimize implements Optimizer.
func (lm LevenbergMarquardt) Optimize(c Curve, points []model.Sample, initial []float64) (OptimizeResult, error) {
	if err := validateInput(c, points, initial); err != nil {
		return OptimizeResult{}, err
	}
	n, k := len(points), c.NumParams()
	ftol, xtol := lm.FTol, lm.XTol
	if ftol <= 0 {
		ftol = DefaultFTol
	}
	if xtol <= 0 {
		xtol = DefaultXTol
	}
	bound := lm.StepBound
	if bound <= 0 {
		bound = DefaultStepBound
	}
	maxEval := lm.MaxEvaluations
	if maxEval <= 0 {
		maxEval = 200 * (k + 1)
	}

	p := append([]float64(nil), initial...)
	res := make([]float64, n)
	cost := sumSquares(c, points, p, res)
	evals := 1

	jac := mat.NewDense(n, k, nil)
	trial := make([]float64, k)
	scale := make([]float64, k)
	lambda := lambdaStart
	radius := 0.0
	status := StatusIterationLimit

iterate:
	for evals < maxEval {
		if cost == 0 {
			status = StatusConverged
			break
		}
		jacobian(c, points, p, jac)
		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(n, res))

		if lm.GTol > 0 && mat.Norm(&grad, math.Inf(1)) <= lm.GTol {
			status = StatusGradientTolerance
			break
		}
		for i := 0; i < k; i++ {
			scale[i] = math.Max(scale[i], math.Sqrt(jtj.At(i, i)))
		}
		if radius == 0 {
			if radius = bound * scaledNorm(scale, p); radius == 0 {
				radius = bound
			}
		}

		for {
			var step mat.VecDense
			stepNorm := 0.0
			// Raise the damping until the step fits inside the trust region.
			for {
				if !dampedStep(&jtj, &grad, lambda, &step) {
					if lambda *= 10; lambda > lambdaMax {
						status = StatusStalled
						break iterate
					}
					continue
				}
				stepNorm = scaledNorm(scale, step.RawVector().Data)
				if stepNorm <= radius*(1+1e-7) {
					break
				}
				if lambda *= 2; lambda > lambdaMax {
					status = StatusStalled
					break iterate
				}
			}

			for i := 0; i < k; i++ {
				trial[i] = p[i] + step.AtVec(i)
			}
			trialCost := sumSquares(c, points, trial, nil)
			evals++

			// Predicted reduction of the linearized model |r + Jδ|².
			var jd mat.VecDense
			jd.MulVec(jac, &step)
			predicted := -(2*mat.Dot(&step, &grad) + mat.Dot(&jd, &jd))
			actual := cost - trialCost
			if !isFinite(trialCost) {
				actual = math.Inf(-1)
			}
			ratio := 0.0
			if predicted > 0 {
				ratio = actual / predicted
			}
			switch {
			case ratio < 0.25:
				radius = 0.5 * math.Min(radius, stepNorm)
			case ratio > 0.75:
				radius = math.Max(radius, 2*stepNorm)
			}

			if math.Abs(actual) <= ftol*cost && predicted <= ftol*cost && actual <= 2*predicted {
				if actual > 0 {
					copy(p, trial)
					cost = sumSquares(c, points, p, res)
				}
				status = StatusConverged
				break iterate
			}
			if ratio > acceptRatio {
				copy(p, trial)
				cost = sumSquares(c, points, p, res)
				lambda = math.Max(lambda/10, lambdaMin)
				if stepNorm <= xtol*(scaledNorm(scale, p)+xtol) {
					status = StatusStepTolerance
					break iterate
				}
				break
			}
			if lambda *= 10; lambda > lambdaMax || radius == 0 {
				status = StatusStalled
				break iterate
			}
			if evals >= maxEval {
				break iterate
			}
		}
	}

	return OptimizeResult{
		Params:      p,
		Covariance:  covariance(c, points, p, cost),
		Status:      status,
		SSR:         cost,
		Evaluations: evals,
	}, nil
}

// dampedStep solves (JᵀJ + λ·diag(JᵀJ))δ = −Jᵀr into step.
func dampedStep(jtj *mat.SymDense, grad *mat.VecDense, lambda float64, step *mat.VecDense) bool {
	k := jtj.SymmetricDim()
	damped := mat.NewSymDense(k, nil)
	damped.CopySym(jtj)
	for i := 0; i < k; i++ {
		d := math.Max(jtj.At(i, i), lambdaMin)
		damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(damped); !ok {
		return false
	}
	if err := chol.SolveVecTo(step, grad); err != nil {
		return false
	}
	step.ScaleVec(-1, step)
	return true
}

func scaledNorm(scale, v []float64) float64 {
	var sum float64
	for i, x := range v {
		sum += scale[i] * scale[i] * x * x
	}
	return math.Sqrt(sum)
}
