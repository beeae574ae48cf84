package lfpanels

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/utils"
)

// solveStereo alternates between ray space (mA, mB, one entry per ray of
// every viewpoint) and panel space (vecA, vecB, one entry per pixel).
//
// No error trace is produced here, SaveError and EarlyStop notwithstanding.
func (s *Solver) solveStereo(ctx context.Context, m *StereoMatrix, set Settings) (*Result, error) {
	logger := s.logger()
	rnd := newRand(set)
	rays := m.L.Len()

	vecA := mat.NewVecDense(m.SizeA.Pixels(), nil)
	vecB := mat.NewVecDense(m.SizeB.Pixels(), nil)
	fill(vecA, set.StartingValues[0], set.RNG, rnd.Float64)
	fill(vecB, set.StartingValues[1], set.RNG, rnd.Float64)

	mA := mat.NewVecDense(rays, nil)
	mB := mat.NewVecDense(rays, nil)
	fill(mA, 1/float64(rays), false, nil)
	fill(mB, 1/float64(rays), false, nil)

	upper := mat.NewVecDense(rays, nil)
	lower := mat.NewVecDense(rays, nil)

	if set.SaveError && set.DebugPrints {
		logger.Printf("stereo: error trace is not tracked")
	}

	iterations := 0
	for it := 1; it <= set.IterCount; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		upper.MulElemVec(mB, m.L)
		lower.MulElemVec(mB, mB)
		lower.MulElemVec(lower, mA)
		multiplicativeUpdate(mA.RawVector().Data, upper.RawVector().Data, lower.RawVector().Data, epsA)
		m.A.TMulVec(vecA, mA, set.Workers)
		clampVec(vecA)
		m.A.MulVec(mA, vecA, set.Workers)

		upper.MulElemVec(mA, m.L)
		lower.MulElemVec(mB, mA)
		lower.MulElemVec(lower, mA)
		multiplicativeUpdate(mB.RawVector().Data, upper.RawVector().Data, lower.RawVector().Data, epsA)
		m.B.TMulVec(vecB, mB, set.Workers)
		clampVec(vecB)
		m.B.MulVec(mB, vecB, set.Workers)

		iterations = it
		if set.DebugPrints {
			logger.Printf("   stereo iter %d/%d", it, set.IterCount)
		}
		if s.OnIteration != nil {
			s.OnIteration(it, vecA, vecB)
		}
	}

	if set.Filter {
		ZeroFilterVec(vecA, m.A)
		ZeroFilterVec(vecB, m.B)
	}
	if err := utils.VerifyMatrix(vecA); err != nil {
		return nil, fmt.Errorf("panel A: %w", err)
	}
	if err := utils.VerifyMatrix(vecB); err != nil {
		return nil, fmt.Errorf("panel B: %w", err)
	}

	res := &Result{
		PanelA:     utils.VectorToImage(vecA, m.SizeA.Height, m.SizeA.Width),
		PanelB:     utils.VectorToImage(vecB, m.SizeB.Height, m.SizeB.Width),
		FactorA:    vecA,
		FactorB:    vecB,
		Iterations: iterations,
	}
	s.submit(PanelAFrame, res.PanelA)
	s.submit(PanelBFrame, res.PanelB)
	return res, nil
}

// fill sets every element of v to start, or to next() when random.
// The raw data of vectors built by mat.NewVecDense is contiguous.
func fill(v *mat.VecDense, start float64, random bool, next func() float64) {
	data := v.RawVector().Data
	for i := range data {
		if random {
			data[i] = next()
		} else {
			data[i] = start
		}
	}
}

func clampVec(v *mat.VecDense) {
	data := v.RawVector().Data
	for i := range data {
		data[i] = min(data[i], 1)
	}
}
