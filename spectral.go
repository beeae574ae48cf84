package lfpanels

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// spectralError is sqrt(λmax(rᵀr)), the spectral norm of the residual r.
// Falls back to the Frobenius norm, an upper bound, when the symmetric
// eigendecomposition does not converge.
func spectralError(r mat.Matrix) float64 {
	_, c := r.Dims()
	ata := mat.NewSymDense(c, nil)
	ata.SymOuterK(1, r.T())

	var eig mat.EigenSym
	if ok := eig.Factorize(ata, false); !ok {
		return mat.Norm(r, 2)
	}
	top := 0.0
	for _, v := range eig.Values(nil) {
		top = max(top, v)
	}
	return math.Sqrt(top)
}

// tracker keeps the error trace and decides on early stopping.
type tracker struct {
	keep  bool
	stop  bool
	trace []float64
}

func newTracker(s Settings) *tracker {
	return &tracker{keep: s.SaveError, stop: s.EarlyStop}
}

func (t *tracker) enabled() bool { return t.keep || t.stop }

// push records e and reports whether the loop should end.
func (t *tracker) push(e float64) bool {
	t.trace = append(t.trace, e)
	n := len(t.trace)
	return t.stop && n >= 2 && math.Abs(t.trace[n-1]-t.trace[n-2]) < EarlyStopTolerance
}

func (t *tracker) result() []float64 {
	if !t.keep {
		return nil
	}
	return t.trace
}
