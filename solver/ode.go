// Package solver implements ODE integration drivers used to advance the
// master-equation probability vector. Explicit adaptive Runge-Kutta
// methods are defined by their Butcher tableaus; implicit methods for
// stiff generators live in implicit.go. The right-hand side is supplied
// as a callback, so the (possibly huge, sparse) generator is never
// materialized as a dense Jacobian.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrIntegrationFailure is returned when the solver cannot reach the
// final requested time within its step budget. The solve is fatal: no
// partial time series is returned.
var ErrIntegrationFailure = errors.New("integration failure")

// Func computes the derivative dy/dt in place: it fills dy given time t
// and state y. Implementations must not retain either slice.
type Func func(t float64, y, dy []float64)

// Method is an explicit Runge-Kutta method given by its Butcher tableau.
type Method struct {
	Name  string
	Order int
	C     []float64   // nodes
	A     [][]float64 // stage coupling matrix
	B     []float64   // solution weights
	Bhat  []float64   // embedded error-estimate weights
}

// Options contains solver configuration parameters.
type Options struct {
	Dt       float64 // initial time step
	Dtmin    float64 // minimum time step
	Dtmax    float64 // maximum time step
	Abstol   float64 // absolute error tolerance
	Reltol   float64 // relative error tolerance
	Maxiters int     // maximum number of accepted steps per solve
	Adaptive bool    // use adaptive step size control
}

// DefaultOptions returns balanced settings suitable for most problems.
func DefaultOptions() *Options {
	return &Options{
		Dt:       0.01,
		Dtmin:    1e-6,
		Dtmax:    0.1,
		Abstol:   1e-8,
		Reltol:   1e-6,
		Maxiters: 100000,
		Adaptive: true,
	}
}

// FastOptions returns options optimized for speed over accuracy, for
// coarse parameter sweeps and interactive exploration.
func FastOptions() *Options {
	return &Options{
		Dt:       0.1,
		Dtmin:    1e-4,
		Dtmax:    1.0,
		Abstol:   1e-4,
		Reltol:   1e-3,
		Maxiters: 10000,
		Adaptive: true,
	}
}

// AccurateOptions returns options for high-precision solves, for
// validating against analytic distributions.
func AccurateOptions() *Options {
	return &Options{
		Dt:       0.001,
		Dtmin:    1e-8,
		Dtmax:    0.1,
		Abstol:   1e-10,
		Reltol:   1e-8,
		Maxiters: 1000000,
		Adaptive: true,
	}
}

// StiffOptions returns options for stiff generators, where propensities
// span widely separated magnitudes. Pair with ImplicitEuler or TRBDF2
// when explicit methods stall at Dtmin.
func StiffOptions() *Options {
	return &Options{
		Dt:       0.001,
		Dtmin:    1e-10,
		Dtmax:    0.01,
		Abstol:   1e-8,
		Reltol:   1e-5,
		Maxiters: 500000,
		Adaptive: true,
	}
}

// Solution holds the state at each requested output time.
type Solution struct {
	T []float64
	Y [][]float64
}

// Final returns the state at the last output time, or nil.
func (s *Solution) Final() []float64 {
	if len(s.Y) == 0 {
		return nil
	}
	return s.Y[len(s.Y)-1]
}

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return fmt.Errorf("%w: no output times requested", ErrIntegrationFailure)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("%w: output times must be strictly increasing", ErrIntegrationFailure)
		}
	}
	return nil
}

// Integrate advances y from times[0], where it equals y0, producing the
// state at every requested output time in increasing order. The step
// size is clamped so each output time is hit exactly; no interpolation
// is performed. Cancellation is honored between solver steps: on
// ctx cancellation no partial solution is returned.
func Integrate(ctx context.Context, f Func, y0 []float64, times []float64, m *Method, opts *Options) (*Solution, error) {
	if m == nil {
		m = Tsit5()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	n := len(y0)
	numStages := len(m.C)

	sol := &Solution{
		T: append([]float64(nil), times...),
		Y: make([][]float64, 0, len(times)),
	}
	sol.Y = append(sol.Y, append([]float64(nil), y0...))

	tcur := times[0]
	ycur := append([]float64(nil), y0...)
	dtcur := opts.Dt
	nsteps := 0

	k := make([][]float64, numStages)
	for i := range k {
		k[i] = make([]float64, n)
	}
	ystage := make([]float64, n)
	ynext := make([]float64, n)

	for out := 1; out < len(times); out++ {
		tout := times[out]

		for tcur < tout {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if nsteps >= opts.Maxiters {
				return nil, fmt.Errorf("%w: step budget of %d exhausted at t=%g (target %g)",
					ErrIntegrationFailure, opts.Maxiters, tcur, tout)
			}
			if !opts.Adaptive {
				dtcur = opts.Dt
			}
			if tcur+dtcur > tout {
				dtcur = tout - tcur
			}

			f(tcur, ycur, k[0])
			for stage := 1; stage < numStages; stage++ {
				tstage := tcur + m.C[stage]*dtcur
				copy(ystage, ycur)
				for j := 0; j < stage; j++ {
					aj := 0.0
					if len(m.A) > stage && len(m.A[stage]) > j {
						aj = m.A[stage][j]
					}
					if aj != 0 {
						scale := dtcur * aj
						for i := 0; i < n; i++ {
							ystage[i] += scale * k[j][i]
						}
					}
				}
				f(tstage, ystage, k[stage])
			}

			copy(ynext, ycur)
			for j := 0; j < len(m.B); j++ {
				if m.B[j] != 0 {
					scale := dtcur * m.B[j]
					for i := 0; i < n; i++ {
						ynext[i] += scale * k[j][i]
					}
				}
			}

			stepErr := 0.0
			if opts.Adaptive {
				for i := 0; i < n; i++ {
					errest := 0.0
					for j := 0; j < len(m.Bhat); j++ {
						errest += dtcur * m.Bhat[j] * k[j][i]
					}
					scale := opts.Abstol + opts.Reltol*math.Max(math.Abs(ycur[i]), math.Abs(ynext[i]))
					if scale == 0 {
						scale = opts.Abstol
					}
					val := math.Abs(errest) / scale
					if val > stepErr {
						stepErr = val
					}
				}
			}

			if !opts.Adaptive || stepErr <= 1.0 || dtcur <= opts.Dtmin {
				tcur += dtcur
				ycur, ynext = ynext, ycur
				nsteps++

				if opts.Adaptive && stepErr > 0 {
					factor := 0.9 * math.Pow(1.0/stepErr, 1.0/float64(m.Order+1))
					factor = math.Min(factor, 5.0)
					dtcur = math.Min(opts.Dtmax, math.Max(opts.Dtmin, dtcur*factor))
				}
			} else {
				factor := 0.9 * math.Pow(1.0/stepErr, 1.0/float64(m.Order+1))
				factor = math.Max(factor, 0.1)
				dtcur = math.Max(opts.Dtmin, dtcur*factor)
			}
		}

		sol.Y = append(sol.Y, append([]float64(nil), ycur...))
	}

	return sol, nil
}
