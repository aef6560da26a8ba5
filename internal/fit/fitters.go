package fit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Fitter is the external-minimizer contract: given an initial vector and
// a cost function, return an improved vector. Failures and
// non-convergence propagate to the caller.
type Fitter interface {
	Name() string
	Minimize(ctx context.Context, initial []float64, cost func([]float64) float64) ([]float64, error)
}

// Gonum method names.
const (
	MethodNelderMead      = "nelder-mead"
	MethodLBFGS           = "lbfgs"
	MethodGradientDescent = "gradient-descent"
)

// GonumFitter minimizes through gonum's optimize package. Gradient-based
// methods fall back to finite-difference gradients since cost functions
// here expose values only.
type GonumFitter struct {
	Method         string
	MaxIterations  int
	MaxEvaluations int
}

func (f GonumFitter) Name() string {
	if f.Method == "" {
		return MethodNelderMead
	}
	return f.Method
}

func (f GonumFitter) Minimize(ctx context.Context, initial []float64, cost func([]float64) float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return nil, errors.New("initial vector is empty")
	}
	if cost == nil {
		return nil, errors.New("cost function is required")
	}

	method, err := f.method()
	if err != nil {
		return nil, err
	}

	problem := optimize.Problem{Func: cost}
	var settings *optimize.Settings
	if f.MaxIterations > 0 || f.MaxEvaluations > 0 {
		settings = &optimize.Settings{
			MajorIterations: f.MaxIterations,
			FuncEvaluations: f.MaxEvaluations,
		}
	}

	result, err := optimize.Minimize(problem, append([]float64(nil), initial...), settings, method)
	if err != nil {
		return nil, fmt.Errorf("minimize (%s): %w", f.Name(), err)
	}
	return result.X, nil
}

func (f GonumFitter) method() (optimize.Method, error) {
	switch f.Method {
	case "", MethodNelderMead:
		return &optimize.NelderMead{}, nil
	case MethodLBFGS:
		return &optimize.LBFGS{}, nil
	case MethodGradientDescent:
		return &optimize.GradientDescent{}, nil
	default:
		return nil, fmt.Errorf("unknown minimization method %q", f.Method)
	}
}

// CoordinateDescent perturbs one coordinate at a time, accepting the best
// improving step and shrinking the step size when a full sweep finds
// nothing better. Simple, derivative-free, and useful as a reference
// against the gonum methods.
type CoordinateDescent struct {
	StepSize      float64 // initial per-coordinate step, default 0.1
	StepShrink    float64 // multiplier applied after a failed sweep, default 0.5
	Tolerance     float64 // minimum step size before stopping, default 1e-7
	MaxIterations int     // sweep limit, default 1000
}

func (f CoordinateDescent) Name() string {
	return "coordinate-descent"
}

func (f CoordinateDescent) Minimize(ctx context.Context, initial []float64, cost func([]float64) float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return nil, errors.New("initial vector is empty")
	}
	if cost == nil {
		return nil, errors.New("cost function is required")
	}
	if f.StepSize < 0 || f.StepShrink < 0 || f.Tolerance < 0 || f.MaxIterations < 0 {
		return nil, errors.New("coordinate descent options must be >= 0")
	}

	step := f.StepSize
	if step == 0 {
		step = 0.1
	}
	shrink := f.StepShrink
	if shrink == 0 {
		shrink = 0.5
	}
	if shrink >= 1 {
		return nil, errors.New("step shrink must be < 1")
	}
	tolerance := f.Tolerance
	if tolerance == 0 {
		tolerance = 1e-7
	}
	maxIterations := f.MaxIterations
	if maxIterations == 0 {
		maxIterations = 1000
	}

	best := append([]float64(nil), initial...)
	bestErr := cost(best)
	if math.IsNaN(bestErr) {
		return nil, errors.New("cost of initial vector is NaN")
	}

	for iter := 0; iter < maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		improved := false
		for i := range best {
			for _, direction := range []float64{1, -1} {
				candidate := append([]float64(nil), best...)
				candidate[i] += direction * step
				candidateErr := cost(candidate)
				if !math.IsNaN(candidateErr) && candidateErr < bestErr {
					best = candidate
					bestErr = candidateErr
					improved = true
				}
			}
		}

		if !improved {
			step *= shrink
			if step < tolerance {
				break
			}
		}
	}

	return best, nil
}
