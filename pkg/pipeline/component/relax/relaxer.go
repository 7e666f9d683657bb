// Package relax performs force-field structure relaxation: an iterative
// steepest-descent walk over atomic positions driven by a Calculator, until
// the largest per-site force drops below a threshold or the step budget is
// spent. Running out of steps is a normal terminal state, not an error.
package relax

import (
	"context"
	"math"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "relax"

// Defaults for the relaxation loop.
const (
	// DefaultFmax is the convergence threshold on the largest per-site force
	// norm, in eV/angstrom.
	DefaultFmax = 0.1
	// DefaultMaxSteps bounds the number of optimizer steps.
	DefaultMaxSteps = 200
	// DefaultStepSize scales the steepest-descent displacement, in
	// angstrom^2/eV.
	DefaultStepSize = 0.05
)

// Config holds the relaxer settings. Zero values select the defaults.
type Config struct {
	Fmax     float64
	MaxSteps int
	StepSize float64
}

// ForceFieldRelaxer relaxes structures with steepest descent.
type ForceFieldRelaxer struct {
	calc     Calculator
	fmax     float64
	maxSteps int
	stepSize float64
}

// NewForceFieldRelaxer creates a relaxer over the given calculator.
func NewForceFieldRelaxer(calc Calculator, cfg Config) (*ForceFieldRelaxer, error) {
	if calc == nil {
		return nil, exception.NewPipelineError(moduleName, "calculator is required", nil, false, false)
	}
	if cfg.Fmax <= 0 {
		cfg.Fmax = DefaultFmax
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.StepSize <= 0 {
		cfg.StepSize = DefaultStepSize
	}
	return &ForceFieldRelaxer{
		calc:     calc,
		fmax:     cfg.Fmax,
		maxSteps: cfg.MaxSteps,
		stepSize: cfg.StepSize,
	}, nil
}

// Relax walks the structure downhill until forces converge or the step
// budget is exhausted. The input structure is never mutated; the result
// carries a fresh structure with updated coordinates. Only calculator
// failures are errors.
func (r *ForceFieldRelaxer) Relax(ctx context.Context, s *model.Structure) (*model.RelaxationResult, error) {
	inv, err := invert(s.Lattice)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName,
			"lattice of '%s' is singular", s.Name, true, false, err)
	}

	current := s.WithCoords(s.Coords)
	var (
		energy   float64
		maxForce float64
		steps    int
	)

	for steps = 0; steps <= r.maxSteps; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eval, err := r.calc.Compute(ctx, &current)
		if err != nil {
			return nil, err
		}
		energy = eval.Energy
		maxForce = largestForce(eval.Forces)

		if maxForce < r.fmax {
			logger.Debugf("Relaxation of '%s' converged after %d steps (max force %.4f eV/A).", s.Name, steps, maxForce)
			return &model.RelaxationResult{
				Structure:      current,
				ForceConverged: true,
				Energy:         energy,
				MaxForce:       maxForce,
				Steps:          steps,
			}, nil
		}
		if steps == r.maxSteps {
			break
		}
		current = descend(current, eval.Forces, inv, r.stepSize)
	}

	logger.Infof("Relaxation of '%s' did not converge within %d steps (max force %.4f eV/A).", s.Name, r.maxSteps, maxForce)
	return &model.RelaxationResult{
		Structure:      current,
		ForceConverged: false,
		Energy:         energy,
		MaxForce:       maxForce,
		Steps:          steps,
	}, nil
}

// descend applies one steepest-descent displacement. Forces are cartesian, so
// each displacement is mapped back to fractional space through the inverse
// lattice.
func descend(s model.Structure, forces [][3]float64, invLattice [3][3]float64, stepSize float64) model.Structure {
	coords := make([][3]float64, len(s.Coords))
	for i, frac := range s.Coords {
		var dispFrac [3]float64
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				dispFrac[j] += stepSize * forces[i][k] * invLattice[k][j]
			}
		}
		for j := 0; j < 3; j++ {
			coords[i][j] = wrap(frac[j] + dispFrac[j])
		}
	}
	return s.WithCoords(coords)
}

// largestForce returns the largest per-site force norm.
func largestForce(forces [][3]float64) float64 {
	max := 0.0
	for _, f := range forces {
		n := math.Sqrt(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])
		if n > max {
			max = n
		}
	}
	return max
}

// wrap folds a fractional coordinate into [0, 1).
func wrap(x float64) float64 {
	x = math.Mod(x, 1)
	if x < 0 {
		x++
	}
	return x
}

// invert computes the inverse of a 3x3 row-vector matrix.
func invert(m [3][3]float64) ([3][3]float64, error) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < 1e-12 {
		return [3][3]float64{}, exception.NewPipelineError(moduleName, "matrix determinant is zero", nil, false, false)
	}
	inv := [3][3]float64{
		{
			(m[1][1]*m[2][2] - m[1][2]*m[2][1]) / det,
			(m[0][2]*m[2][1] - m[0][1]*m[2][2]) / det,
			(m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det,
		},
		{
			(m[1][2]*m[2][0] - m[1][0]*m[2][2]) / det,
			(m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det,
			(m[0][2]*m[1][0] - m[0][0]*m[1][2]) / det,
		},
		{
			(m[1][0]*m[2][1] - m[1][1]*m[2][0]) / det,
			(m[0][1]*m[2][0] - m[0][0]*m[2][1]) / det,
			(m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det,
		},
	}
	return inv, nil
}
