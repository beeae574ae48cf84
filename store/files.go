package store

import (
	"fmt"
	"io"
	"log"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels"
	"github.com/setanarut/lfpanels/sparse"
)

const (
	panelA byte = 'A'
	panelB byte = 'B'
	panelT byte = 'T'
)

// EncodeBundle writes a separable bundle and, when set is non-nil, the
// settings it should be solved with.
func EncodeBundle(w io.Writer, m *lfpanels.LFMatrices, set *lfpanels.Settings) error {
	if err := m.Validate(); err != nil {
		return err
	}
	e := newEncoder(contentBundle, m.Viewpoints, m.TargetSize)
	if err := e.settings(set); err != nil {
		return err
	}
	e.mapping(panelA, m.A)
	e.mapping(panelB, m.B)
	e.mapping(panelT, m.T)
	e.dense(m.Target)
	return e.flush(w)
}

// DecodeBundle reads a bundle written by EncodeBundle. Settings is nil when
// the file carries none. Out-of-range incidence entries are dropped and
// logged.
func DecodeBundle(r io.Reader, logger *log.Logger) (*lfpanels.LFMatrices, *lfpanels.Settings, error) {
	d, h, err := open(r, contentBundle, logger)
	if err != nil {
		return nil, nil, err
	}
	if len(h.sizes) != 1 {
		return nil, nil, fmt.Errorf("%w: bundle header has %d sizes", ErrCorrupt, len(h.sizes))
	}
	var (
		maps   = map[byte]lfpanels.CompleteMapping{}
		target *mat.Dense
		set    *lfpanels.Settings
	)
	for d.more() {
		tag, body := d.section()
		switch tag {
		case tagSettings:
			set = body.settings()
		case tagMapping:
			panel, m := body.mapping()
			if _, dup := maps[panel]; dup {
				body.fail("duplicate mapping for panel %q", panel)
			}
			maps[panel] = m
		case tagDense:
			target = body.dense()
		default:
			body.fail("unexpected section %q in bundle", tag)
		}
		if err := body.end(); err != nil {
			return nil, nil, err
		}
	}
	if d.err != nil {
		return nil, nil, d.err
	}
	for _, p := range []byte{panelA, panelB, panelT} {
		if _, ok := maps[p]; !ok {
			return nil, nil, fmt.Errorf("%w: bundle has no mapping for panel %q", ErrCorrupt, p)
		}
	}
	if target == nil {
		return nil, nil, fmt.Errorf("%w: bundle has no target", ErrCorrupt)
	}
	m := &lfpanels.LFMatrices{
		A:          maps[panelA],
		B:          maps[panelB],
		T:          maps[panelT],
		Target:     target,
		TargetSize: h.sizes[0],
		Viewpoints: h.viewpoints,
	}
	if err := m.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return m, set, nil
}

// EncodeStereo writes a stereo bundle and optional settings.
func EncodeStereo(w io.Writer, m *lfpanels.StereoMatrix, set *lfpanels.Settings) error {
	if err := m.Validate(); err != nil {
		return err
	}
	e := newEncoder(contentStereo, m.Viewpoints, m.TargetSize, m.SizeA, m.SizeB)
	if err := e.settings(set); err != nil {
		return err
	}
	for _, s := range []*sparse.Matrix{m.A, m.B} {
		e.section(tagIncidence, func() { e.incidence(s) })
	}
	e.vector(m.L)
	return e.flush(w)
}

// DecodeStereo reads a stereo bundle written by EncodeStereo.
func DecodeStereo(r io.Reader, logger *log.Logger) (*lfpanels.StereoMatrix, *lfpanels.Settings, error) {
	d, h, err := open(r, contentStereo, logger)
	if err != nil {
		return nil, nil, err
	}
	if len(h.sizes) != 3 {
		return nil, nil, fmt.Errorf("%w: stereo header has %d sizes", ErrCorrupt, len(h.sizes))
	}
	var (
		incidences []*sparse.Matrix
		l          *mat.VecDense
		set        *lfpanels.Settings
	)
	for d.more() {
		tag, body := d.section()
		switch tag {
		case tagSettings:
			set = body.settings()
		case tagIncidence:
			if len(incidences) == 2 {
				body.fail("more than two incidence sections")
				break
			}
			panel := h.sizes[1+len(incidences)]
			incidences = append(incidences, body.incidence(panel.Pixels()))
		case tagVector:
			l = body.vector()
		default:
			body.fail("unexpected section %q in stereo bundle", tag)
		}
		if err := body.end(); err != nil {
			return nil, nil, err
		}
	}
	if d.err != nil {
		return nil, nil, d.err
	}
	if len(incidences) != 2 || l == nil {
		return nil, nil, fmt.Errorf("%w: stereo bundle has %d incidence sections, ray vector %t",
			ErrCorrupt, len(incidences), l != nil)
	}
	m := &lfpanels.StereoMatrix{
		A:          incidences[0],
		B:          incidences[1],
		L:          l,
		TargetSize: h.sizes[0],
		SizeA:      h.sizes[1],
		SizeB:      h.sizes[2],
		Viewpoints: h.viewpoints,
	}
	if err := m.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return m, set, nil
}

// EncodeFactor writes one solved factor. Vectors are stored as n×1.
func EncodeFactor(w io.Writer, m mat.Matrix) error {
	e := newEncoder(contentFactor, 0)
	e.dense(m)
	return e.flush(w)
}

// DecodeFactor reads a factor written by EncodeFactor.
func DecodeFactor(r io.Reader) (*mat.Dense, error) {
	d, _, err := open(r, contentFactor, nil)
	if err != nil {
		return nil, err
	}
	var out *mat.Dense
	for d.more() {
		tag, body := d.section()
		if tag != tagDense || out != nil {
			body.fail("unexpected section %q in factor", tag)
		}
		out = body.dense()
		if err := body.end(); err != nil {
			return nil, err
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: factor file is empty", ErrCorrupt)
	}
	return out, nil
}

// SaveBundle writes a bundle file, creating parent directories.
func SaveBundle(path string, m *lfpanels.LFMatrices, set *lfpanels.Settings) error {
	return save(path, func(w io.Writer) error { return EncodeBundle(w, m, set) })
}

// LoadBundle reads a bundle file.
func LoadBundle(path string, logger *log.Logger) (*lfpanels.LFMatrices, *lfpanels.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	m, set, err := DecodeBundle(f, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, set, nil
}

// SaveStereo writes a stereo bundle file.
func SaveStereo(path string, m *lfpanels.StereoMatrix, set *lfpanels.Settings) error {
	return save(path, func(w io.Writer) error { return EncodeStereo(w, m, set) })
}

// LoadStereo reads a stereo bundle file.
func LoadStereo(path string, logger *log.Logger) (*lfpanels.StereoMatrix, *lfpanels.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	m, set, err := DecodeStereo(f, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, set, nil
}

// SaveFactor writes a solved factor file.
func SaveFactor(path string, m mat.Matrix) error {
	return save(path, func(w io.Writer) error { return EncodeFactor(w, m) })
}

// LoadFactor reads a factor file.
func LoadFactor(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeFactor(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
