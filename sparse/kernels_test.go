package sparse_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/sparse"
)

func randomIncidence(rnd *rand.Rand, rows, cols int) *sparse.Matrix {
	ts := make([]sparse.Triplet, 0, rows)
	for r := range rows {
		if rnd.IntN(5) == 0 {
			continue
		}
		ts = append(ts, sparse.Triplet{Row: r, Col: rnd.IntN(cols), Value: 1})
	}
	m, _ := sparse.New(rows, cols, ts)
	return m
}

func randomDense(rnd *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rnd.Float64()
	}
	return mat.NewDense(rows, cols, data)
}

func TestKernelsMatchDense(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for _, workers := range []int{1, 4} {
		s := randomIncidence(rnd, 70, 20)
		sd := mat.DenseCopyOf(s)

		b := randomDense(rnd, 20, 9)
		got := mat.NewDense(70, 9, nil)
		s.MulDense(got, b, workers)
		var want mat.Dense
		want.Mul(sd, b)
		require.True(t, mat.EqualApprox(got, &want, 1e-12), "MulDense workers=%d", workers)

		c := randomDense(rnd, 70, 5)
		got = mat.NewDense(20, 5, nil)
		s.TMulDense(got, c, workers)
		want.Reset()
		want.Mul(sd.T(), c)
		require.True(t, mat.EqualApprox(got, &want, 1e-12), "TMulDense workers=%d", workers)

		a := randomDense(rnd, 40, 70)
		got = mat.NewDense(40, 20, nil)
		s.DenseMul(got, a, workers)
		want.Reset()
		want.Mul(a, sd)
		require.True(t, mat.EqualApprox(got, &want, 1e-12), "DenseMul workers=%d", workers)

		a = randomDense(rnd, 40, 20)
		got = mat.NewDense(40, 70, nil)
		s.DenseMulT(got, a, workers)
		want.Reset()
		want.Mul(a, sd.T())
		require.True(t, mat.EqualApprox(got, &want, 1e-12), "DenseMulT workers=%d", workers)
	}
}

func TestSandwich(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	y := randomIncidence(rnd, 30, 6)
	x := randomIncidence(rnd, 25, 8)
	m := randomDense(rnd, 6, 8)

	got := mat.NewDense(30, 25, nil)
	sparse.Sandwich(got, y, m, x, 3)
	var tmp, want mat.Dense
	tmp.Mul(mat.DenseCopyOf(y), m)
	want.Mul(&tmp, mat.DenseCopyOf(x).T())
	require.True(t, mat.EqualApprox(got, &want, 1e-12))

	r := randomDense(rnd, 30, 25)
	back := mat.NewDense(6, 8, nil)
	sparse.TSandwich(back, y, r, x, 3)
	tmp.Reset()
	want.Reset()
	tmp.Mul(mat.DenseCopyOf(y).T(), r)
	want.Mul(&tmp, mat.DenseCopyOf(x))
	require.True(t, mat.EqualApprox(back, &want, 1e-12))
}

func TestMulVec(t *testing.T) {
	rnd := rand.New(rand.NewPCG(5, 6))
	s := randomIncidence(rnd, 50, 12)
	x := mat.NewVecDense(12, randomDense(rnd, 1, 12).RawMatrix().Data)
	got := mat.NewVecDense(50, nil)
	s.MulVec(got, x, 2)
	var want mat.VecDense
	want.MulVec(mat.DenseCopyOf(s), x)
	require.True(t, mat.EqualApprox(got, &want, 1e-12))

	l := mat.NewVecDense(50, randomDense(rnd, 1, 50).RawMatrix().Data)
	back := mat.NewVecDense(12, nil)
	s.TMulVec(back, l, 2)
	want.Reset()
	want.MulVec(mat.DenseCopyOf(s).T(), l)
	require.True(t, mat.EqualApprox(back, &want, 1e-12))
}

func TestShapeMismatchPanics(t *testing.T) {
	s := sparse.Identity(3)
	require.Panics(t, func() {
		s.MulDense(mat.NewDense(3, 2, nil), mat.NewDense(4, 2, nil), 1)
	})
	require.Panics(t, func() {
		s.MulDense(mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil), 1)
	})
}
