package lfpanels

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels/utils"
)

// Denominator guards of the multiplicative updates.
const (
	epsA = 1e-7
	epsB = 1e-9
)

// Names under which Solve submits frames to its Sink.
const (
	TargetFrame = "target.png"
	PanelAFrame = "panel_1.png"
	PanelBFrame = "panel_2.png"
)

// Kind selects one of the three factorizers.
type Kind int

const (
	// KindSeparable accumulates per-viewpoint sandwich products.
	KindSeparable Kind = iota
	// KindStacked multiplies viewpoint-stacked operators in one go.
	KindStacked
	// KindStereo factorizes flattened panel vectors.
	KindStereo
)

func (k Kind) String() string {
	switch k {
	case KindSeparable:
		return "separable"
	case KindStacked:
		return "stacked"
	case KindStereo:
		return "stereo"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "separable", "":
		return KindSeparable, nil
	case "stacked":
		return KindStacked, nil
	case "stereo":
		return KindStereo, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrProblem, s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Problem is the input of Solve. Separable and stacked kinds read Light,
// the stereo kind reads Stereo.
type Problem struct {
	Kind   Kind
	Light  *LFMatrices
	Stereo *StereoMatrix
}

// Sink receives rendered frames. Submit must not block for long;
// utils.AsyncWriter is the usual implementation.
type Sink interface {
	Submit(name string, img image.Image)
}

type Result struct {
	PanelA, PanelB *image.RGBA
	// *mat.Dense for separable and stacked kinds, *mat.VecDense for stereo.
	FactorA, FactorB mat.Matrix
	// Spectral error per iteration; nil unless Settings.SaveError.
	// Always nil for the stereo kind.
	Errors     []float64
	Iterations int
}

// Solver runs factorizations. The zero value logs to log.Default and
// discards frames.
type Solver struct {
	Logger *log.Logger
	Sink   Sink
	// OnIteration, when set, observes both factors after every completed
	// iteration. The matrices must not be modified or retained.
	OnIteration func(iter int, a, b mat.Matrix)
}

func NewSolver(logger *log.Logger, sink Sink) *Solver {
	return &Solver{Logger: logger, Sink: sink}
}

func (s *Solver) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s *Solver) submit(name string, img image.Image) {
	if s.Sink != nil {
		s.Sink.Submit(name, img)
	}
}

// Solve validates settings and input, then runs the factorizer p.Kind names.
// Cancelling ctx stops the run between iterations with ctx.Err().
func (s *Solver) Solve(ctx context.Context, p Problem, set Settings) (*Result, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindSeparable, KindStacked:
		if p.Light == nil {
			return nil, fmt.Errorf("%w: %v needs LFMatrices", ErrProblem, p.Kind)
		}
		if err := p.Light.Validate(); err != nil {
			return nil, err
		}
		var proj projector
		if p.Kind == KindSeparable {
			proj = newSeparable(p.Light, set.Workers)
		} else {
			proj = newStacked(p.Light, set.Workers)
		}
		return s.solveLight(ctx, p.Kind, p.Light, proj, set)
	case KindStereo:
		if p.Stereo == nil {
			return nil, fmt.Errorf("%w: stereo needs StereoMatrix", ErrProblem)
		}
		if err := p.Stereo.Validate(); err != nil {
			return nil, err
		}
		return s.solveStereo(ctx, p.Stereo, set)
	}
	return nil, fmt.Errorf("%w: unknown kind %v", ErrProblem, p.Kind)
}

// projector is one way of evaluating the separable update terms.
type projector interface {
	// updateA performs the multiplicative update of ca given cb.
	updateA(ca, cb *mat.Dense)
	// updateB performs the multiplicative update of cb given ca.
	updateB(ca, cb *mat.Dense)
	// residual is the spectral error of the current reconstruction.
	residual(ca, cb *mat.Dense) float64
}

func (s *Solver) solveLight(ctx context.Context, kind Kind, m *LFMatrices, proj projector, set Settings) (*Result, error) {
	logger := s.logger()
	rnd := newRand(set)
	ca := initFactor(m.A.Size.Height, m.A.Size.Width, set.StartingValues[0], set.RNG, rnd)
	cb := initFactor(m.B.Size.Height, m.B.Size.Width, set.StartingValues[1], set.RNG, rnd)
	tr := newTracker(set)

	s.submit(TargetFrame, utils.MatrixToImage(m.Target))

	start := time.Now()
	iterations := 0
	for it := 1; it <= set.IterCount; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		proj.updateA(ca, cb)
		stop := false
		if tr.enabled() {
			stop = tr.push(proj.residual(ca, cb))
		}
		proj.updateB(ca, cb)
		iterations = it

		if set.DebugPrints {
			if tr.enabled() {
				logger.Printf("   %v iter %d/%d error=%.9f", kind, it, set.IterCount, tr.trace[len(tr.trace)-1])
			} else {
				logger.Printf("   %v iter %d/%d", kind, it, set.IterCount)
			}
		}
		if s.OnIteration != nil {
			s.OnIteration(it, ca, cb)
		}
		if stop {
			logger.Printf("%v: converged after %d iterations", kind, it)
			break
		}
	}
	if set.DebugPrints {
		logger.Printf("%v: %d iterations in %v", kind, iterations, time.Since(start))
	}

	if set.Filter {
		ZeroFilter(ca, m.A)
		ZeroFilter(cb, m.B)
	}
	if err := utils.VerifyMatrix(ca); err != nil {
		return nil, fmt.Errorf("panel A: %w", err)
	}
	if err := utils.VerifyMatrix(cb); err != nil {
		return nil, fmt.Errorf("panel B: %w", err)
	}

	res := &Result{
		PanelA:     utils.MatrixToImage(ca),
		PanelB:     utils.MatrixToImage(cb),
		FactorA:    ca,
		FactorB:    cb,
		Errors:     tr.result(),
		Iterations: iterations,
	}
	s.submit(PanelAFrame, res.PanelA)
	s.submit(PanelBFrame, res.PanelB)
	return res, nil
}

func newRand(set Settings) *rand.Rand {
	seed := set.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func initFactor(rows, cols int, start float64, random bool, rnd *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		if random {
			data[i] = rnd.Float64()
		} else {
			data[i] = start
		}
	}
	return mat.NewDense(rows, cols, data)
}

// multiplicativeUpdate sets c = min(1, c·num/(den+eps)) elementwise.
func multiplicativeUpdate(c, num, den []float64, eps float64) {
	for i := range c {
		c[i] = min(1, c[i]*num[i]/(den[i]+eps))
	}
}

// discardLogger is handy for callers that want a silent Solver.
var discardLogger = log.New(io.Discard, "", 0)

// Quiet returns a Solver that neither logs nor writes frames.
func Quiet() *Solver { return &Solver{Logger: discardLogger} }
