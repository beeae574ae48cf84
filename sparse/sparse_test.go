package sparse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/sparse"
)

func TestNew_DropsOutOfRange(t *testing.T) {
	m, dropped := sparse.New(3, 2, []sparse.Triplet{
		{Row: 0, Col: 0, Value: 1},
		{Row: 2, Col: 1, Value: 1},
		{Row: 3, Col: 0, Value: 1},
		{Row: 1, Col: 2, Value: 1},
		{Row: -1, Col: 0, Value: 1},
	})
	require.Equal(t, 3, dropped)
	require.Equal(t, 2, m.NNZ())
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(1, 1))
	assert.Equal(t, 1.0, m.At(2, 1))
}

func TestNew_SumsDuplicatesAndOrdersRowMajor(t *testing.T) {
	m, _ := sparse.New(2, 3, []sparse.Triplet{
		{Row: 1, Col: 2, Value: 1},
		{Row: 0, Col: 1, Value: 1},
		{Row: 1, Col: 2, Value: 0.5},
		{Row: 1, Col: 0, Value: 1},
	})
	want := []sparse.Triplet{
		{Row: 0, Col: 1, Value: 1},
		{Row: 1, Col: 0, Value: 1},
		{Row: 1, Col: 2, Value: 1.5},
	}
	require.Equal(t, want, m.Triplets())
}

func TestTranspose(t *testing.T) {
	m, _ := sparse.New(2, 3, []sparse.Triplet{{Row: 0, Col: 2, Value: 1}, {Row: 1, Col: 0, Value: 2}})
	require.True(t, mat.Equal(m.T(), mat.DenseCopyOf(m).T()))
	require.Same(t, m, m.Transpose().Transpose())
}

func TestEmptyRowsAndColumns(t *testing.T) {
	m, _ := sparse.New(3, 4, []sparse.Triplet{{Row: 0, Col: 1, Value: 1}, {Row: 2, Col: 3, Value: 1}})
	assert.Equal(t, []bool{false, true, false}, m.EmptyRows())
	assert.Equal(t, []bool{true, false, true, false}, m.EmptyColumns())
}

func TestVStack(t *testing.T) {
	a := sparse.Identity(2)
	b := sparse.Shift(3, 2, 1)
	s, offsets := sparse.VStack(a, b)
	require.Equal(t, []int{0, 2, 5}, offsets)
	r, c := s.Dims()
	require.Equal(t, 5, r)
	require.Equal(t, 2, c)
	want := mat.NewDense(5, 2, []float64{
		1, 0,
		0, 1,
		0, 1,
		0, 0,
		0, 0,
	})
	require.True(t, mat.Equal(want, s))
}

func TestShift_DropsRaysOffPanel(t *testing.T) {
	m := sparse.Shift(4, 4, 2)
	assert.Equal(t, 2, m.NNZ())
	assert.Equal(t, []bool{true, true, false, false}, m.EmptyColumns())
}
