// Package store persists solver inputs and outputs as zstd-compressed
// tagged binary files.
//
// A file is the zstd frame of
//
//	"LFPB" | version u16 | section...
//
// where every section is tag u8 | length u64 | payload, little endian. The
// first section is always the header.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/setanarut/lfpanels"
	"github.com/setanarut/lfpanels/sparse"
)

const (
	magic   = "LFPB"
	version = 1
)

const (
	tagSettings  byte = 'S'
	tagMapping   byte = 'M'
	tagIncidence byte = 'I'
	tagDense     byte = 'D'
	tagVector    byte = 'V'
	tagHeader    byte = 'H'
)

// content identifies what a file holds.
type content byte

const (
	contentBundle content = 'B'
	contentStereo content = 'R'
	contentFactor content = 'F'
)

func (c content) String() string {
	switch c {
	case contentBundle:
		return "bundle"
	case contentStereo:
		return "stereo bundle"
	case contentFactor:
		return "factor"
	}
	return fmt.Sprintf("content(%d)", byte(c))
}

// ErrCorrupt is returned for any file that cannot be decoded.
var ErrCorrupt = errors.New("store: corrupt or unsupported file")

// Decoding limits. A panel dimension, a pixel count or a ray count above
// MaxDim is rejected before anything is allocated for it.
const (
	MaxDim     = 1 << 24
	maxPayload = 1 << 32
)

// --- zstd helpers ---

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil)
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayload))
		return dec
	},
}

func compress(w io.Writer, data []byte) error {
	enc := zstdEncPool.Get().(*zstd.Encoder)
	defer zstdEncPool.Put(enc)
	enc.Reset(w)
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func decompress(r io.Reader) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	if err := dec.Reset(r); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(dec); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// --- encoding ---

type encoder struct {
	buf []byte
}

func newEncoder(c content, viewpoints int, sizes ...lfpanels.Size) *encoder {
	e := &encoder{buf: []byte(magic)}
	e.buf = binary.LittleEndian.AppendUint16(e.buf, version)
	e.section(tagHeader, func() {
		e.u8(byte(c))
		e.u32(viewpoints)
		e.u8(byte(len(sizes)))
		for _, s := range sizes {
			e.size(s)
		}
	})
	return e
}

func (e *encoder) u8(v byte)     { e.buf = append(e.buf, v) }
func (e *encoder) u32(v int)     { e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v)) }
func (e *encoder) u64(v int)     { e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v)) }
func (e *encoder) f64(v float64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v)) }

func (e *encoder) size(s lfpanels.Size) {
	e.u32(s.Height)
	e.u32(s.Width)
}

// section writes tag, a length placeholder and the body, then patches the
// length.
func (e *encoder) section(tag byte, body func()) {
	e.u8(tag)
	at := len(e.buf)
	e.u64(0)
	body()
	binary.LittleEndian.PutUint64(e.buf[at:], uint64(len(e.buf)-at-8))
}

func (e *encoder) incidence(m *sparse.Matrix) {
	r, c := m.Dims()
	e.u32(r)
	e.u32(c)
	ts := m.Triplets()
	e.u64(len(ts))
	for _, t := range ts {
		e.u32(t.Row)
		e.u32(t.Col)
		e.f64(t.Value)
	}
}

func (e *encoder) mapping(panel byte, m lfpanels.CompleteMapping) {
	e.section(tagMapping, func() {
		e.u8(panel)
		e.size(m.Size)
		e.u32(m.Viewpoints())
		for v := range m.Viewpoints() {
			e.incidence(m.Y[v])
			e.incidence(m.X[v])
		}
	})
}

func (e *encoder) dense(m mat.Matrix) {
	e.section(tagDense, func() {
		r, c := m.Dims()
		e.u32(r)
		e.u32(c)
		for i := range r {
			for j := range c {
				e.f64(m.At(i, j))
			}
		}
	})
}

func (e *encoder) vector(v mat.Vector) {
	e.section(tagVector, func() {
		e.u64(v.Len())
		for i := range v.Len() {
			e.f64(v.AtVec(i))
		}
	})
}

func (e *encoder) settings(s *lfpanels.Settings) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	e.section(tagSettings, func() { e.buf = append(e.buf, b...) })
	return nil
}

func (e *encoder) flush(w io.Writer) error {
	if err := compress(w, e.buf); err != nil {
		return fmt.Errorf("zstd encode: %w", err)
	}
	return nil
}

// --- decoding ---

// decoder reads from an in-memory payload. The first failure sticks; every
// later read returns zero values.
type decoder struct {
	data   []byte
	pos    int
	err    error
	logger *log.Logger
}

func open(r io.Reader, want content, logger *log.Logger) (*decoder, header, error) {
	data, err := decompress(r)
	if err != nil {
		return nil, header{}, fmt.Errorf("%w: zstd decode: %v", ErrCorrupt, err)
	}
	d := &decoder{data: data, logger: logger}
	if string(d.take(len(magic))) != magic {
		d.fail("bad magic")
	}
	if v := d.u16(); d.err == nil && v != version {
		d.fail("unsupported version %d", v)
	}
	h := d.header(want)
	if d.err != nil {
		return nil, header{}, d.err
	}
	return d, h, nil
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...)
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.data)-d.pos {
		d.fail("truncated at offset %d", d.pos)
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) u8() byte {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u16() int {
	if b := d.take(2); b != nil {
		return int(binary.LittleEndian.Uint16(b))
	}
	return 0
}

func (d *decoder) u32() int {
	if b := d.take(4); b != nil {
		return int(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// u64 reads a length or count. Anything larger than the payload itself
// cannot be honest.
func (d *decoder) u64() int {
	b := d.take(8)
	if b == nil {
		return 0
	}
	v := binary.LittleEndian.Uint64(b)
	if v > uint64(len(d.data)) {
		d.fail("length %d exceeds payload", v)
		return 0
	}
	return int(v)
}

func (d *decoder) f64() float64 {
	if b := d.take(8); b != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func (d *decoder) size() lfpanels.Size {
	s := lfpanels.Size{Height: d.u32(), Width: d.u32()}
	if s.Height > MaxDim || s.Width > MaxDim || s.Pixels() > MaxDim {
		d.fail("size %v exceeds %d pixels", s, MaxDim)
		return lfpanels.Size{}
	}
	return s
}

func (d *decoder) remaining() int { return len(d.data) - d.pos }

func (d *decoder) more() bool { return d.err == nil && d.pos < len(d.data) }

// section reads the next section and returns its tag and a decoder over
// its payload.
func (d *decoder) section() (byte, *decoder) {
	tag := d.u8()
	n := d.u64()
	body := d.take(n)
	return tag, &decoder{data: body, err: d.err, logger: d.logger}
}

// end fails if the payload was not fully consumed.
func (d *decoder) end() error {
	if d.err == nil && d.pos != len(d.data) {
		d.fail("%d trailing bytes in section", len(d.data)-d.pos)
	}
	return d.err
}

type header struct {
	viewpoints int
	sizes      []lfpanels.Size
}

func (d *decoder) header(want content) header {
	tag, body := d.section()
	if tag != tagHeader {
		body.fail("first section is %q, want header", tag)
	}
	if c := content(body.u8()); body.err == nil && c != want {
		body.fail("file holds a %v, want a %v", c, want)
	}
	h := header{viewpoints: body.u32()}
	n := int(body.u8())
	for range n {
		h.sizes = append(h.sizes, body.size())
	}
	if err := body.end(); err != nil && d.err == nil {
		d.err = err
	}
	return h
}

// incidence reads a rays×cols matrix. cols is fixed by the panel size
// already read from the file.
func (d *decoder) incidence(cols int) *sparse.Matrix {
	rows, got := d.u32(), d.u32()
	nnz := d.u64()
	if d.err != nil {
		return nil
	}
	if got != cols {
		d.fail("incidence has %d columns, panel has %d pixels", got, cols)
		return nil
	}
	if rows == 0 || rows > MaxDim {
		d.fail("incidence declares %d rays", rows)
		return nil
	}
	ts := make([]sparse.Triplet, 0, nnz)
	for range nnz {
		t := sparse.Triplet{Row: d.u32(), Col: d.u32(), Value: d.f64()}
		if d.err != nil {
			return nil
		}
		ts = append(ts, t)
	}
	return lfpanels.NewIncidence(rows, cols, ts, d.logger)
}

func (d *decoder) mapping() (byte, lfpanels.CompleteMapping) {
	panel := d.u8()
	m := lfpanels.CompleteMapping{Size: d.size()}
	n := d.u32()
	for v := 0; v < n && d.err == nil; v++ {
		m.Y = append(m.Y, d.incidence(m.Size.Height))
		m.X = append(m.X, d.incidence(m.Size.Width))
	}
	return panel, m
}

func (d *decoder) dense() *mat.Dense {
	r, c := d.u32(), d.u32()
	if d.err != nil {
		return nil
	}
	if fit := d.remaining() / 8; r == 0 || c == 0 || r > fit || c > fit/r {
		d.fail("dense matrix %dx%d does not fit section", r, c)
		return nil
	}
	data := make([]float64, r*c)
	for i := range data {
		data[i] = d.f64()
	}
	return mat.NewDense(r, c, data)
}

func (d *decoder) vector() *mat.VecDense {
	n := d.u64()
	if d.err != nil {
		return nil
	}
	if n == 0 || n > d.remaining()/8 {
		d.fail("vector of %d does not fit section", n)
		return nil
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = d.f64()
	}
	return mat.NewVecDense(n, data)
}

func (d *decoder) settings() *lfpanels.Settings {
	b := d.take(d.remaining())
	if d.err != nil {
		return nil
	}
	s := new(lfpanels.Settings)
	if err := json.Unmarshal(b, s); err != nil {
		d.fail("settings: %v", err)
		return nil
	}
	return s
}

// --- files ---

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func save(path string, encode func(io.Writer) error) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
