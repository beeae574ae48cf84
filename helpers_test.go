package lfpanels_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels"
	"github.com/setanarut/lfpanels/sparse"
)

// testTarget is a 4×4 luminance image with values in [0.2, 0.9].
func testTarget() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		0.20, 0.35, 0.50, 0.65,
		0.80, 0.90, 0.25, 0.40,
		0.55, 0.70, 0.85, 0.30,
		0.45, 0.60, 0.75, 0.90,
	})
}

// identityBundle maps every panel and the target 1:1 for each viewpoint.
func identityBundle(t *testing.T, viewpoints int) *lfpanels.LFMatrices {
	t.Helper()
	size := lfpanels.Size{Height: 4, Width: 4}
	m, err := lfpanels.NewLFMatrices(
		lfpanels.IdentityMapping(size, viewpoints),
		lfpanels.IdentityMapping(size, viewpoints),
		lfpanels.IdentityMapping(size, viewpoints),
		testTarget(),
	)
	require.NoError(t, err)
	return m
}

// parallaxBundle lets panel A slide one column per viewpoint across a panel
// of the given width, while B and the target stay put.
func parallaxBundle(t *testing.T, viewpoints, widthA int) *lfpanels.LFMatrices {
	t.Helper()
	rays := lfpanels.Size{Height: 4, Width: 4}
	m, err := lfpanels.NewLFMatrices(
		lfpanels.ShiftMapping(lfpanels.Size{Height: 4, Width: widthA}, rays, viewpoints, 1),
		lfpanels.ShiftMapping(rays, rays, viewpoints, 0),
		lfpanels.IdentityMapping(rays, viewpoints),
		testTarget(),
	)
	require.NoError(t, err)
	return m
}

// identityStereo is the flattened analogue of identityBundle(t, 1).
func identityStereo(t *testing.T) *lfpanels.StereoMatrix {
	t.Helper()
	size := lfpanels.Size{Height: 4, Width: 4}
	m := &lfpanels.StereoMatrix{
		A:          sparse.Identity(16),
		B:          sparse.Identity(16),
		L:          lfpanels.RayIntensities(sparse.Identity(16), testTarget(), 1),
		SizeA:      size,
		SizeB:      size,
		TargetSize: size,
		Viewpoints: 1,
	}
	require.NoError(t, m.Validate())
	return m
}

func testSettings() lfpanels.Settings {
	s := lfpanels.DefaultSettings()
	s.Workers = 2
	return s
}

func requireUnitRange(t *testing.T, m mat.Matrix) {
	t.Helper()
	r, c := m.Dims()
	for i := range r {
		for j := range c {
			v := m.At(i, j)
			require.GreaterOrEqual(t, v, 0.0, "(%d,%d)", i, j)
			require.LessOrEqual(t, v, 1.0, "(%d,%d)", i, j)
		}
	}
}

// recordSink keeps submitted frame names.
type recordSink struct{ names []string }

func (r *recordSink) Submit(name string, _ image.Image) { r.names = append(r.names, name) }
