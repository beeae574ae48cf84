package lfpanels

import (
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/sparse"
)

// separable evaluates the update terms one viewpoint at a time and sums
// them, never materialising more than one viewpoint's ray grid per term.
type separable struct {
	m       *LFMatrices
	workers int

	// Per viewpoint, ry×rx.
	ct    []*mat.Dense // projected target, fixed for the whole solve
	pa    []*mat.Dense
	pb    []*mat.Dense
	upper []*mat.Dense
	lower []*mat.Dense

	numA, denA, tmpA *mat.Dense
	numB, denB, tmpB *mat.Dense
}

func newSeparable(m *LFMatrices, workers int) *separable {
	s := &separable{
		m:       m,
		workers: workers,
		numA:    mat.NewDense(m.A.Size.Height, m.A.Size.Width, nil),
		denA:    mat.NewDense(m.A.Size.Height, m.A.Size.Width, nil),
		tmpA:    mat.NewDense(m.A.Size.Height, m.A.Size.Width, nil),
		numB:    mat.NewDense(m.B.Size.Height, m.B.Size.Width, nil),
		denB:    mat.NewDense(m.B.Size.Height, m.B.Size.Width, nil),
		tmpB:    mat.NewDense(m.B.Size.Height, m.B.Size.Width, nil),
	}
	for v := range m.Viewpoints {
		ry, _ := m.T.Y[v].Dims()
		rx, _ := m.T.X[v].Dims()
		ct := mat.NewDense(ry, rx, nil)
		sparse.Sandwich(ct, m.T.Y[v], m.Target, m.T.X[v], workers)
		s.ct = append(s.ct, ct)
		s.pa = append(s.pa, mat.NewDense(ry, rx, nil))
		s.pb = append(s.pb, mat.NewDense(ry, rx, nil))
		s.upper = append(s.upper, mat.NewDense(ry, rx, nil))
		s.lower = append(s.lower, mat.NewDense(ry, rx, nil))
	}
	return s
}

// project stores Y[v]·c·X[v]ᵀ in dst.
func (s *separable) project(dst *mat.Dense, m CompleteMapping, v int, c *mat.Dense) {
	sparse.Sandwich(dst, m.Y[v], c, m.X[v], s.workers)
}

// gather adds Y[v]ᵀ·w·X[v] to acc, using tmp as scratch.
func (s *separable) gather(acc, tmp *mat.Dense, m CompleteMapping, v int, w *mat.Dense) {
	sparse.TSandwich(tmp, m.Y[v], w, m.X[v], s.workers)
	acc.Add(acc, tmp)
}

func (s *separable) updateA(ca, cb *mat.Dense) {
	s.numA.Zero()
	s.denA.Zero()
	for v := range s.m.Viewpoints {
		s.project(s.pb[v], s.m.B, v, cb)
		s.project(s.pa[v], s.m.A, v, ca)
		s.upper[v].MulElem(s.pb[v], s.ct[v])
		s.lower[v].MulElem(s.pa[v], s.pb[v])
		s.lower[v].MulElem(s.lower[v], s.pb[v])
		s.gather(s.numA, s.tmpA, s.m.A, v, s.upper[v])
		s.gather(s.denA, s.tmpA, s.m.A, v, s.lower[v])
	}
	multiplicativeUpdate(ca.RawMatrix().Data, s.numA.RawMatrix().Data, s.denA.RawMatrix().Data, epsA)
}

func (s *separable) updateB(ca, cb *mat.Dense) {
	s.numB.Zero()
	s.denB.Zero()
	for v := range s.m.Viewpoints {
		s.project(s.pa[v], s.m.A, v, ca)
		s.project(s.pb[v], s.m.B, v, cb)
		s.upper[v].MulElem(s.pa[v], s.ct[v])
		s.lower[v].MulElem(s.pb[v], s.pa[v])
		s.lower[v].MulElem(s.lower[v], s.pa[v])
		s.gather(s.numB, s.tmpB, s.m.B, v, s.upper[v])
		s.gather(s.denB, s.tmpB, s.m.B, v, s.lower[v])
	}
	multiplicativeUpdate(cb.RawMatrix().Data, s.numB.RawMatrix().Data, s.denB.RawMatrix().Data, epsB)
}

// residual is the largest per-viewpoint spectral norm of ct − pb⊙pa.
// pb still holds the projection of cb from updateA.
func (s *separable) residual(ca, cb *mat.Dense) float64 {
	worst := 0.0
	for v := range s.m.Viewpoints {
		s.project(s.pa[v], s.m.A, v, ca)
		r := s.upper[v]
		r.MulElem(s.pb[v], s.pa[v])
		r.Sub(s.ct[v], r)
		worst = max(worst, spectralError(r))
	}
	return worst
}
