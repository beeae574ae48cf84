package lfpanels

import (
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/sparse"
)

// ZeroFilter sets to 1.0 (fully transparent) every entry of c that no ray of
// any viewpoint constrains: its row is hit by no Y[v], or its column by no
// X[v]. The update leaves such entries near their starting guess.
func ZeroFilter(c *mat.Dense, m CompleteMapping) {
	rows := unconstrained(m.Y, m.Size.Height)
	cols := unconstrained(m.X, m.Size.Width)
	r, cc := c.Dims()
	for i := range r {
		for j := range cc {
			if rows[i] || cols[j] {
				c.Set(i, j, 1)
			}
		}
	}
}

// ZeroFilterVec is ZeroFilter for a flattened panel vector: entry i is set
// to 1.0 when column i of m is empty.
func ZeroFilterVec(v *mat.VecDense, m *sparse.Matrix) {
	for i, empty := range m.EmptyColumns() {
		if empty {
			v.SetVec(i, 1)
		}
	}
}

// unconstrained reports, per panel index, whether the column is empty in
// every viewpoint's matrix.
func unconstrained(ms []*sparse.Matrix, n int) []bool {
	free := make([]bool, n)
	for i := range free {
		free[i] = true
	}
	for _, m := range ms {
		for i, empty := range m.EmptyColumns() {
			free[i] = free[i] && empty
		}
	}
	return free
}
