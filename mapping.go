package lfpanels

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/sparse"
)

// Size is a pixel resolution.
type Size struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Pixels is Height*Width.
func (s Size) Pixels() int { return s.Height * s.Width }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Height, s.Width) }

// NewIncidence builds a rays×pixels incidence matrix, dropping triplets that
// fall outside it. The dropped count is logged.
func NewIncidence(rows, cols int, ts []sparse.Triplet, logger *log.Logger) *sparse.Matrix {
	m, dropped := sparse.New(rows, cols, ts)
	if dropped > 0 {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("incidence %dx%d: dropped %d of %d out-of-range entries", rows, cols, dropped, len(ts))
	}
	return m
}

// CompleteMapping is the separable ray incidence of one panel: for every
// viewpoint a row mapping Y (rays × Size.Height) and a column mapping
// X (rays × Size.Width). The 2-D incidence of viewpoint v is Y[v]·C·X[v]ᵀ.
type CompleteMapping struct {
	Y    []*sparse.Matrix
	X    []*sparse.Matrix
	Size Size
}

// Viewpoints is the number of per-viewpoint pairs held.
func (m CompleteMapping) Viewpoints() int { return len(m.Y) }

func (m CompleteMapping) validate(name string, viewpoints int) error {
	if m.Size.Height <= 0 || m.Size.Width <= 0 {
		return fmt.Errorf("%w: mapping %s has size %v", ErrShapeMismatch, name, m.Size)
	}
	if len(m.Y) != viewpoints || len(m.X) != viewpoints {
		return fmt.Errorf("%w: mapping %s has %d row and %d column matrices, want %d",
			ErrViewpoints, name, len(m.Y), len(m.X), viewpoints)
	}
	for v := range viewpoints {
		if m.Y[v] == nil || m.X[v] == nil {
			return fmt.Errorf("%w: mapping %s viewpoint %d is nil", ErrShapeMismatch, name, v)
		}
		if r, c := m.Y[v].Dims(); r == 0 || c != m.Size.Height {
			return fmt.Errorf("%w: mapping %s Y[%d] is %dx%d, panel height %d",
				ErrShapeMismatch, name, v, r, c, m.Size.Height)
		}
		if r, c := m.X[v].Dims(); r == 0 || c != m.Size.Width {
			return fmt.Errorf("%w: mapping %s X[%d] is %dx%d, panel width %d",
				ErrShapeMismatch, name, v, r, c, m.Size.Width)
		}
	}
	return nil
}

// IdentityMapping maps every ray straight onto the pixel with the same index,
// for every viewpoint.
func IdentityMapping(size Size, viewpoints int) CompleteMapping {
	return ShiftMapping(size, size, viewpoints, 0)
}

// ShiftMapping casts rays.Height×rays.Width rays per viewpoint; viewpoint v
// moves them step*v pixels along the width, modelling horizontal parallax.
// Rays that miss the panel leave their row empty.
func ShiftMapping(size, rays Size, viewpoints, step int) CompleteMapping {
	m := CompleteMapping{Size: size}
	for v := range viewpoints {
		m.Y = append(m.Y, sparse.Shift(rays.Height, size.Height, 0))
		m.X = append(m.X, sparse.Shift(rays.Width, size.Width, v*step))
	}
	return m
}

// LFMatrices bundles the separable mappings of panel A, panel B and the
// target T with the target luminance image.
type LFMatrices struct {
	A, B, T    CompleteMapping
	Target     *mat.Dense
	TargetSize Size
	Viewpoints int
}

// NewLFMatrices assembles and validates a bundle. The target size and the
// viewpoint count are taken from t.
func NewLFMatrices(a, b, t CompleteMapping, target *mat.Dense) (*LFMatrices, error) {
	m := &LFMatrices{
		A:          a,
		B:          b,
		T:          t,
		Target:     target,
		TargetSize: t.Size,
		Viewpoints: t.Viewpoints(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that every matrix agrees with the declared resolutions and
// that all three mappings cast the same rays per viewpoint.
func (m *LFMatrices) Validate() error {
	if m.Viewpoints <= 0 {
		return fmt.Errorf("%w: %d viewpoints", ErrViewpoints, m.Viewpoints)
	}
	for _, p := range []struct {
		name string
		m    CompleteMapping
	}{{"A", m.A}, {"B", m.B}, {"T", m.T}} {
		if err := p.m.validate(p.name, m.Viewpoints); err != nil {
			return err
		}
	}
	if m.T.Size != m.TargetSize {
		return fmt.Errorf("%w: target mapping size %v, target size %v", ErrShapeMismatch, m.T.Size, m.TargetSize)
	}
	if m.Target == nil {
		return fmt.Errorf("%w: no target image", ErrShapeMismatch)
	}
	if r, c := m.Target.Dims(); r != m.TargetSize.Height || c != m.TargetSize.Width {
		return fmt.Errorf("%w: target image %dx%d, target size %v", ErrShapeMismatch, r, c, m.TargetSize)
	}
	for v := range m.Viewpoints {
		ty, _ := m.T.Y[v].Dims()
		tx, _ := m.T.X[v].Dims()
		for _, p := range []struct {
			name string
			m    CompleteMapping
		}{{"A", m.A}, {"B", m.B}} {
			py, _ := p.m.Y[v].Dims()
			px, _ := p.m.X[v].Dims()
			if py != ty || px != tx {
				return fmt.Errorf("%w: viewpoint %d casts %dx%d rays on %s but %dx%d on T",
					ErrShapeMismatch, v, py, px, p.name, ty, tx)
			}
		}
	}
	return nil
}

// WithTarget returns a copy of m that shares the mappings but solves for a
// different target image.
func (m *LFMatrices) WithTarget(target *mat.Dense) (*LFMatrices, error) {
	out := *m
	out.Target = target
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// StereoMatrix is the flattened stereo formulation: A and B map every ray of
// every viewpoint (rows) to a panel pixel (columns), and L holds the target
// brightness of each ray.
type StereoMatrix struct {
	A, B       *sparse.Matrix
	L          *mat.VecDense
	SizeA      Size
	SizeB      Size
	TargetSize Size
	Viewpoints int
}

// Validate checks the ray and pixel counts of the stereo bundle.
func (m *StereoMatrix) Validate() error {
	if m.Viewpoints <= 0 {
		return fmt.Errorf("%w: %d viewpoints", ErrViewpoints, m.Viewpoints)
	}
	if m.A == nil || m.B == nil || m.L == nil {
		return fmt.Errorf("%w: stereo bundle is incomplete", ErrShapeMismatch)
	}
	ar, ac := m.A.Dims()
	br, bc := m.B.Dims()
	if ar == 0 || ar != br || ar != m.L.Len() {
		return fmt.Errorf("%w: stereo rays A=%d B=%d L=%d", ErrShapeMismatch, ar, br, m.L.Len())
	}
	if ac != m.SizeA.Pixels() || m.SizeA.Pixels() == 0 {
		return fmt.Errorf("%w: A has %d columns, panel A %v", ErrShapeMismatch, ac, m.SizeA)
	}
	if bc != m.SizeB.Pixels() || m.SizeB.Pixels() == 0 {
		return fmt.Errorf("%w: B has %d columns, panel B %v", ErrShapeMismatch, bc, m.SizeB)
	}
	return nil
}

// RayIntensities projects a target image onto rays: t maps rays to target
// pixels indexed row-major (y*width + x).
func RayIntensities(t *sparse.Matrix, target *mat.Dense, workers int) *mat.VecDense {
	h, w := target.Dims()
	flat := mat.NewVecDense(h*w, nil)
	for y := range h {
		for x := range w {
			flat.SetVec(y*w+x, target.At(y, x))
		}
	}
	rays, _ := t.Dims()
	out := mat.NewVecDense(rays, nil)
	t.MulVec(out, flat, workers)
	return out
}
