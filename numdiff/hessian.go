package numdiff

import "errors"

// HessianSpec estimates the dense Hessian of a scalar function by
// differencing its gradient. The raw difference Jacobian is not exactly
// symmetric, so the estimate is symmetrized as (J + Jᵀ)/2.
type HessianSpec struct {
	N int
	// Gradient of the function: the n-vector ∇f(x) is stored in g.
	Grad func(x, g []float64)
	// Lower and upper bounds on independent variables.
	// Use it to limit the range of gradient evaluation.
	Bounds []Bound
	spec   ApproxSpec
}

// Diff estimates the Hessian at x into the n×n column-major buffer h.
// The spec keeps private scratch between calls, so one HessianSpec must
// not be shared between goroutines.
func (hs *HessianSpec) Diff(x, h []float64) error {

	if hs.Grad == nil {
		return errors.New("gradient function is required")
	}
	if hs.spec.Object == nil {
		hs.spec = ApproxSpec{
			N: hs.N, M: hs.N,
			Object: hs.Grad,
			Method: Central,
			Bounds: hs.Bounds,
		}
	}

	if err := hs.spec.Diff(x, h); err != nil {
		return err
	}

	n := hs.N
	for j := 0; j < n; j++ {
		for i := j + 1; i < n; i++ {
			v := 0.5 * (h[i+j*n] + h[j+i*n])
			h[i+j*n], h[j+i*n] = v, v
		}
	}
	return nil
}
