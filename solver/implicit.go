package solver

import (
	"context"
	"fmt"
	"math"
)

// ImplicitEuler integrates using the backward Euler method, an A-stable
// implicit method suitable for stiff generators. The implicit equation
// is solved by fixed-point iteration, which converges for step sizes
// small relative to the largest total outflow rate.
//
// For stiff master equations where explicit methods (Tsit5, RK45)
// require extremely small time steps, implicit methods can be much more
// efficient.
func ImplicitEuler(ctx context.Context, f Func, y0 []float64, times []float64, opts *Options) (*Solution, error) {
	if opts == nil {
		opts = StiffOptions()
	}
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	n := len(y0)
	maxFixedPoint := 50
	fixedPointTol := opts.Abstol * 10

	sol := &Solution{
		T: append([]float64(nil), times...),
		Y: make([][]float64, 0, len(times)),
	}
	sol.Y = append(sol.Y, append([]float64(nil), y0...))

	tcur := times[0]
	ycur := append([]float64(nil), y0...)
	du := make([]float64, n)
	ynext := make([]float64, n)
	ynew := make([]float64, n)
	nsteps := 0

	for out := 1; out < len(times); out++ {
		tout := times[out]

		for tcur < tout {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if nsteps >= opts.Maxiters {
				return nil, fmt.Errorf("%w: step budget of %d exhausted at t=%g",
					ErrIntegrationFailure, opts.Maxiters, tcur)
			}
			dtcur := opts.Dt
			if tcur+dtcur > tout {
				dtcur = tout - tcur
			}
			tnext := tcur + dtcur

			// Backward Euler: y_{n+1} = y_n + dt * f(t_{n+1}, y_{n+1})
			// Fixed-point iteration seeded with the explicit Euler guess.
			f(tcur, ycur, du)
			for i := 0; i < n; i++ {
				ynext[i] = ycur[i] + dtcur*du[i]
			}
			for iter := 0; iter < maxFixedPoint; iter++ {
				f(tnext, ynext, du)
				maxDiff := 0.0
				for i := 0; i < n; i++ {
					ynew[i] = ycur[i] + dtcur*du[i]
					if d := math.Abs(ynew[i] - ynext[i]); d > maxDiff {
						maxDiff = d
					}
				}
				copy(ynext, ynew)
				if maxDiff < fixedPointTol {
					break
				}
			}

			tcur = tnext
			copy(ycur, ynext)
			nsteps++
		}

		sol.Y = append(sol.Y, append([]float64(nil), ycur...))
	}

	return sol, nil
}

// TRBDF2 integrates using the TR-BDF2 method, a two-stage implicit
// scheme combining the trapezoidal rule with BDF2. It keeps 2nd order
// accuracy with better stability than backward Euler on stiff problems.
func TRBDF2(ctx context.Context, f Func, y0 []float64, times []float64, opts *Options) (*Solution, error) {
	if opts == nil {
		opts = StiffOptions()
	}
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	n := len(y0)
	gamma := 2.0 - math.Sqrt(2.0) // ~0.586
	maxFixedPoint := 50
	fixedPointTol := opts.Abstol * 10

	sol := &Solution{
		T: append([]float64(nil), times...),
		Y: make([][]float64, 0, len(times)),
	}
	sol.Y = append(sol.Y, append([]float64(nil), y0...))

	tcur := times[0]
	ycur := append([]float64(nil), y0...)
	du0 := make([]float64, n)
	dug := make([]float64, n)
	ygamma := make([]float64, n)
	ynext := make([]float64, n)
	ynew := make([]float64, n)
	nsteps := 0

	for out := 1; out < len(times); out++ {
		tout := times[out]

		for tcur < tout {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if nsteps >= opts.Maxiters {
				return nil, fmt.Errorf("%w: step budget of %d exhausted at t=%g",
					ErrIntegrationFailure, opts.Maxiters, tcur)
			}
			dtcur := opts.Dt
			if tcur+dtcur > tout {
				dtcur = tout - tcur
			}

			// Stage 1: trapezoidal rule from t to t + gamma*dt.
			tgamma := tcur + gamma*dtcur
			f(tcur, ycur, du0)
			for i := 0; i < n; i++ {
				ygamma[i] = ycur[i] + gamma*dtcur*du0[i]
			}
			for iter := 0; iter < maxFixedPoint; iter++ {
				f(tgamma, ygamma, dug)
				maxDiff := 0.0
				for i := 0; i < n; i++ {
					ynew[i] = ycur[i] + 0.5*gamma*dtcur*(du0[i]+dug[i])
					if d := math.Abs(ynew[i] - ygamma[i]); d > maxDiff {
						maxDiff = d
					}
				}
				copy(ygamma, ynew)
				if maxDiff < fixedPointTol {
					break
				}
			}

			// Stage 2: BDF2 step from t + gamma*dt to t + dt:
			// y_{n+1} = w1*y_gamma + w0*y_n + wf*dt*f(t_{n+1}, y_{n+1})
			tnext := tcur + dtcur
			w1 := 1.0 / (gamma * (2 - gamma))
			w0 := -((1 - gamma) * (1 - gamma)) / (gamma * (2 - gamma))
			wf := (1 - gamma) / (2 - gamma)

			f(tgamma, ygamma, dug)
			for i := 0; i < n; i++ {
				ynext[i] = ygamma[i] + (1-gamma)*dtcur*dug[i]
			}
			for iter := 0; iter < maxFixedPoint; iter++ {
				f(tnext, ynext, dug)
				maxDiff := 0.0
				for i := 0; i < n; i++ {
					ynew[i] = w1*ygamma[i] + w0*ycur[i] + wf*dtcur*dug[i]
					if d := math.Abs(ynew[i] - ynext[i]); d > maxDiff {
						maxDiff = d
					}
				}
				copy(ynext, ynew)
				if maxDiff < fixedPointTol {
					break
				}
			}

			tcur = tnext
			copy(ycur, ynext)
			nsteps++
		}

		sol.Y = append(sol.Y, append([]float64(nil), ycur...))
	}

	return sol, nil
}
