package lfpanels

import (
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/sparse"
)

// stacked evaluates the same update as separable, but on operators stacked
// over all viewpoints, with one dense (ΣRy × ΣRx) workspace per term.
// Blocks pairing rays of two different viewpoints carry no observation and
// are zeroed, which keeps the result equal to the per-viewpoint sum.
// It trades memory for fewer, larger products.
type stacked struct {
	workers int

	ay, ax, by, bx *sparse.Matrix
	offY, offX     []int

	ct, pa, pb, upper, lower *mat.Dense

	numA, denA *mat.Dense
	numB, denB *mat.Dense
}

func newStacked(m *LFMatrices, workers int) *stacked {
	ty, offY := sparse.VStack(m.T.Y...)
	tx, offX := sparse.VStack(m.T.X...)
	ay, _ := sparse.VStack(m.A.Y...)
	ax, _ := sparse.VStack(m.A.X...)
	by, _ := sparse.VStack(m.B.Y...)
	bx, _ := sparse.VStack(m.B.X...)

	ry, rx := offY[len(offY)-1], offX[len(offX)-1]
	s := &stacked{
		workers: workers,
		ay:      ay,
		ax:      ax,
		by:      by,
		bx:      bx,
		offY:    offY,
		offX:    offX,
		ct:      mat.NewDense(ry, rx, nil),
		pa:      mat.NewDense(ry, rx, nil),
		pb:      mat.NewDense(ry, rx, nil),
		upper:   mat.NewDense(ry, rx, nil),
		lower:   mat.NewDense(ry, rx, nil),
		numA:    mat.NewDense(m.A.Size.Height, m.A.Size.Width, nil),
		denA:    mat.NewDense(m.A.Size.Height, m.A.Size.Width, nil),
		numB:    mat.NewDense(m.B.Size.Height, m.B.Size.Width, nil),
		denB:    mat.NewDense(m.B.Size.Height, m.B.Size.Width, nil),
	}
	sparse.Sandwich(s.ct, ty, m.Target, tx, workers)
	s.mask(s.ct)
	return s
}

// mask zeroes every entry outside the diagonal viewpoint blocks of d.
func (s *stacked) mask(d *mat.Dense) {
	raw := d.RawMatrix()
	for v := 0; v+1 < len(s.offY); v++ {
		lo, hi := s.offX[v], s.offX[v+1]
		for i := s.offY[v]; i < s.offY[v+1]; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
			clear(row[:lo])
			clear(row[hi:])
		}
	}
}

func (s *stacked) updateA(ca, cb *mat.Dense) {
	sparse.Sandwich(s.pb, s.by, cb, s.bx, s.workers)
	sparse.Sandwich(s.pa, s.ay, ca, s.ax, s.workers)
	s.upper.MulElem(s.pb, s.ct)
	s.lower.MulElem(s.pa, s.pb)
	s.lower.MulElem(s.lower, s.pb)
	s.mask(s.lower)
	sparse.TSandwich(s.numA, s.ay, s.upper, s.ax, s.workers)
	sparse.TSandwich(s.denA, s.ay, s.lower, s.ax, s.workers)
	multiplicativeUpdate(ca.RawMatrix().Data, s.numA.RawMatrix().Data, s.denA.RawMatrix().Data, epsA)
}

func (s *stacked) updateB(ca, cb *mat.Dense) {
	sparse.Sandwich(s.pa, s.ay, ca, s.ax, s.workers)
	sparse.Sandwich(s.pb, s.by, cb, s.bx, s.workers)
	s.upper.MulElem(s.pa, s.ct)
	s.lower.MulElem(s.pb, s.pa)
	s.lower.MulElem(s.lower, s.pa)
	s.mask(s.lower)
	sparse.TSandwich(s.numB, s.by, s.upper, s.bx, s.workers)
	sparse.TSandwich(s.denB, s.by, s.lower, s.bx, s.workers)
	multiplicativeUpdate(cb.RawMatrix().Data, s.numB.RawMatrix().Data, s.denB.RawMatrix().Data, epsB)
}

// residual is the spectral norm of the block-diagonal ct − pb⊙pa, which is
// the largest spectral norm among its blocks.
func (s *stacked) residual(ca, cb *mat.Dense) float64 {
	sparse.Sandwich(s.pa, s.ay, ca, s.ax, s.workers)
	r := s.upper
	r.MulElem(s.pb, s.pa)
	s.mask(r)
	r.Sub(s.ct, r)
	return spectralError(r)
}
