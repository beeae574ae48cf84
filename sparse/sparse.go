// Package sparse holds immutable CSR incidence matrices mapping rays to panel pixels,
// together with the sparse·dense kernels the panel factorizers are built on.
package sparse

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Triplet is one (row, col, value) entry of an incidence matrix.
type Triplet struct {
	Row, Col int
	Value    float64
}

// Matrix is a compressed sparse row matrix. It never changes after New returns,
// so it can be shared freely between goroutines.
type Matrix struct {
	rows, cols int
	indptr     []int
	ind        []int
	data       []float64

	// transpose in CSR form, so Sᵀ·B can be split by output rows as well.
	t *Matrix
}

var _ mat.Matrix = (*Matrix)(nil)

// New builds a rows×cols matrix from triplets. Triplets outside the declared
// bounds are dropped and counted; duplicates are summed.
func New(rows, cols int, triplets []Triplet) (*Matrix, int) {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("sparse: negative shape %dx%d", rows, cols))
	}
	kept := make([]Triplet, 0, len(triplets))
	dropped := 0
	for _, tr := range triplets {
		if tr.Row < 0 || tr.Row >= rows || tr.Col < 0 || tr.Col >= cols {
			dropped++
			continue
		}
		kept = append(kept, tr)
	}
	m := build(rows, cols, kept)
	m.t = m.transpose()
	m.t.t = m
	return m, dropped
}

func build(rows, cols int, ts []Triplet) *Matrix {
	slices.SortStableFunc(ts, func(a, b Triplet) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	m := &Matrix{
		rows:   rows,
		cols:   cols,
		indptr: make([]int, rows+1),
		ind:    make([]int, 0, len(ts)),
		data:   make([]float64, 0, len(ts)),
	}
	for i, tr := range ts {
		if i > 0 && ts[i-1].Row == tr.Row && ts[i-1].Col == tr.Col {
			m.data[len(m.data)-1] += tr.Value
			continue
		}
		m.ind = append(m.ind, tr.Col)
		m.data = append(m.data, tr.Value)
		m.indptr[tr.Row+1]++
	}
	for r := range rows {
		m.indptr[r+1] += m.indptr[r]
	}
	return m
}

func (m *Matrix) transpose() *Matrix {
	t := &Matrix{
		rows:   m.cols,
		cols:   m.rows,
		indptr: make([]int, m.cols+1),
		ind:    make([]int, len(m.ind)),
		data:   make([]float64, len(m.data)),
	}
	for _, c := range m.ind {
		t.indptr[c+1]++
	}
	for c := range m.cols {
		t.indptr[c+1] += t.indptr[c]
	}
	next := slices.Clone(t.indptr[:m.cols])
	for r := range m.rows {
		for k := m.indptr[r]; k < m.indptr[r+1]; k++ {
			c := m.ind[k]
			p := next[c]
			t.ind[p] = r
			t.data[p] = m.data[k]
			next[c]++
		}
	}
	return t
}

// Dims returns the declared shape.
func (m *Matrix) Dims() (r, c int) { return m.rows, m.cols }

// At returns the stored value at (i, j), or zero.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	row := m.ind[m.indptr[i]:m.indptr[i+1]]
	if k, ok := slices.BinarySearch(row, j); ok {
		return m.data[m.indptr[i]+k]
	}
	return 0
}

// T returns the transpose as a sparse matrix sharing storage with m.
func (m *Matrix) T() mat.Matrix { return m.t }

// Transpose is T with the concrete type.
func (m *Matrix) Transpose() *Matrix { return m.t }

// NNZ is the number of stored entries.
func (m *Matrix) NNZ() int { return len(m.data) }

// Triplets returns the stored entries in row-major order.
func (m *Matrix) Triplets() []Triplet {
	out := make([]Triplet, 0, len(m.data))
	for r := range m.rows {
		for k := m.indptr[r]; k < m.indptr[r+1]; k++ {
			out = append(out, Triplet{Row: r, Col: m.ind[k], Value: m.data[k]})
		}
	}
	return out
}

// EmptyColumns reports, per column, whether the column holds no nonzero entry.
func (m *Matrix) EmptyColumns() []bool {
	return m.t.EmptyRows()
}

// EmptyRows reports, per row, whether the row holds no nonzero entry.
func (m *Matrix) EmptyRows() []bool {
	out := make([]bool, m.rows)
	for r := range m.rows {
		out[r] = true
		for k := m.indptr[r]; k < m.indptr[r+1]; k++ {
			if m.data[k] != 0 {
				out[r] = false
				break
			}
		}
	}
	return out
}

// VStack stacks matrices with equal column counts on top of each other.
// It also returns the starting row of every block.
func VStack(ms ...*Matrix) (*Matrix, []int) {
	if len(ms) == 0 {
		panic("sparse: VStack of nothing")
	}
	cols := ms[0].cols
	offsets := make([]int, len(ms)+1)
	nnz := 0
	for i, m := range ms {
		if m.cols != cols {
			panic(fmt.Sprintf("sparse: VStack column mismatch %d != %d", m.cols, cols))
		}
		offsets[i+1] = offsets[i] + m.rows
		nnz += m.NNZ()
	}
	ts := make([]Triplet, 0, nnz)
	for i, m := range ms {
		for _, tr := range m.Triplets() {
			tr.Row += offsets[i]
			ts = append(ts, tr)
		}
	}
	out, _ := New(offsets[len(ms)], cols, ts)
	return out, offsets
}

// Identity returns the n×n identity incidence.
func Identity(n int) *Matrix {
	return Shift(n, n, 0)
}

// Shift maps ray i to pixel i+offset; rays landing outside the panel are left empty.
func Shift(rows, cols, offset int) *Matrix {
	ts := make([]Triplet, 0, rows)
	for i := range rows {
		ts = append(ts, Triplet{Row: i, Col: i + offset, Value: 1})
	}
	m, _ := New(rows, cols, ts)
	return m
}
