package sparse

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minRowsPerWorker keeps tiny products on the calling goroutine.
const minRowsPerWorker = 16

// parallelRows splits [0,n) into contiguous blocks and runs fn on each block.
// It returns once every block is done.
func parallelRows(n, workers int, fn func(lo, hi int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(1, n/minRowsPerWorker))
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

func checkShape(dst *mat.Dense, r, c int) {
	dr, dc := dst.Dims()
	if dr != r || dc != c {
		panic(mat.ErrShape)
	}
}

// MulDense stores s·b in dst.
func (s *Matrix) MulDense(dst, b *mat.Dense, workers int) {
	br, bc := b.Dims()
	if br != s.cols {
		panic(mat.ErrShape)
	}
	checkShape(dst, s.rows, bc)
	draw, braw := dst.RawMatrix(), b.RawMatrix()
	parallelRows(s.rows, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out := draw.Data[i*draw.Stride : i*draw.Stride+bc]
			clear(out)
			for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
				src := braw.Data[s.ind[k]*braw.Stride : s.ind[k]*braw.Stride+bc]
				floats.AddScaled(out, s.data[k], src)
			}
		}
	})
}

// TMulDense stores sᵀ·b in dst.
func (s *Matrix) TMulDense(dst, b *mat.Dense, workers int) {
	s.t.MulDense(dst, b, workers)
}

// DenseMul stores a·s in dst.
func (s *Matrix) DenseMul(dst, a *mat.Dense, workers int) {
	ar, ac := a.Dims()
	if ac != s.rows {
		panic(mat.ErrShape)
	}
	checkShape(dst, ar, s.cols)
	draw, araw := dst.RawMatrix(), a.RawMatrix()
	parallelRows(ar, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out := draw.Data[i*draw.Stride : i*draw.Stride+s.cols]
			clear(out)
			arow := araw.Data[i*araw.Stride : i*araw.Stride+ac]
			for r, av := range arow {
				if av == 0 {
					continue
				}
				for k := s.indptr[r]; k < s.indptr[r+1]; k++ {
					out[s.ind[k]] += av * s.data[k]
				}
			}
		}
	})
}

// DenseMulT stores a·sᵀ in dst.
func (s *Matrix) DenseMulT(dst, a *mat.Dense, workers int) {
	ar, ac := a.Dims()
	if ac != s.cols {
		panic(mat.ErrShape)
	}
	checkShape(dst, ar, s.rows)
	draw, araw := dst.RawMatrix(), a.RawMatrix()
	parallelRows(ar, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out := draw.Data[i*draw.Stride : i*draw.Stride+s.rows]
			arow := araw.Data[i*araw.Stride : i*araw.Stride+ac]
			for j := range s.rows {
				sum := 0.0
				for k := s.indptr[j]; k < s.indptr[j+1]; k++ {
					sum += arow[s.ind[k]] * s.data[k]
				}
				out[j] = sum
			}
		}
	})
}

// Sandwich stores y·m·xᵀ in dst, which must be y.rows × x.rows.
func Sandwich(dst *mat.Dense, y *Matrix, m *mat.Dense, x *Matrix, workers int) {
	_, mc := m.Dims()
	tmp := mat.NewDense(y.rows, mc, nil)
	y.MulDense(tmp, m, workers)
	x.DenseMulT(dst, tmp, workers)
}

// TSandwich stores yᵀ·m·x in dst, which must be y.cols × x.cols.
func TSandwich(dst *mat.Dense, y *Matrix, m *mat.Dense, x *Matrix, workers int) {
	_, mc := m.Dims()
	tmp := mat.NewDense(y.cols, mc, nil)
	y.TMulDense(tmp, m, workers)
	x.DenseMul(dst, tmp, workers)
}

// MulVec stores s·x in dst.
func (s *Matrix) MulVec(dst, x *mat.VecDense, workers int) {
	if x.Len() != s.cols || dst.Len() != s.rows {
		panic(mat.ErrShape)
	}
	draw, xraw := dst.RawVector(), x.RawVector()
	parallelRows(s.rows, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			sum := 0.0
			for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
				sum += s.data[k] * xraw.Data[s.ind[k]*xraw.Inc]
			}
			draw.Data[i*draw.Inc] = sum
		}
	})
}

// TMulVec stores sᵀ·x in dst.
func (s *Matrix) TMulVec(dst, x *mat.VecDense, workers int) {
	s.t.MulVec(dst, x, workers)
}
