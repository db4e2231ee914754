package vectorindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// File layout, little-endian:
//
//	magic "BIDX" | version u32 | strategy u8 | metric u8 | dim u32 | count u32 | body
//
// Hybrid files carry inner u8, overFetch u32 and maxOverFetch u32 before the body.
const (
	fileMagic   = "BIDX"
	fileVersion = uint32(1)
)

var strategyCodes = []domain.IndexStrategy{domain.IndexFlat, domain.IndexHNSW, domain.IndexHybrid}

var metricCodes = []domain.Metric{domain.MetricCosine, domain.MetricEuclidean, domain.MetricDot}

// snapshotter yields a count and body that describe the same state.
type snapshotter interface {
	snapshot() (int, []byte, error)
}

// Encode serialises an index built by this package, header included.
func Encode(idx driven.VectorIndex) ([]byte, error) {
	s, ok := idx.(snapshotter)
	if !ok {
		return nil, fmt.Errorf("%w: index %T cannot be encoded", domain.ErrUnsupportedType, idx)
	}
	count, body, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}

	var w writer
	w.raw([]byte(fileMagic))
	w.u32(fileVersion)
	w.u8(codeOf(strategyCodes, idx.Strategy()))
	w.u8(codeOf(metricCodes, idx.Metric()))
	w.u32(uint32(idx.Dimension()))
	w.u32(uint32(count))

	if h, ok := idx.(*Hybrid); ok {
		w.u8(codeOf(strategyCodes, h.inner.Strategy()))
		w.u32(uint32(h.overFetch))
		w.u32(uint32(h.maxOverFetch))
	}

	w.raw(body)
	return w.bytes(), nil
}

// Decode rebuilds an index from Encode output.
func Decode(data []byte) (driven.VectorIndex, error) {
	r := newReader(data)
	if magic := r.raw(len(fileMagic)); r.err != nil || string(magic) != fileMagic {
		return nil, fmt.Errorf("%w: not an index file", domain.ErrIndexConsistency)
	}
	if v := r.u32(); v != fileVersion {
		return nil, fmt.Errorf("%w: unsupported index format version %d", domain.ErrIndexConsistency, v)
	}
	strategy, okS := lookup(strategyCodes, r.u8())
	metric, okM := lookup(metricCodes, r.u8())
	dim := int(r.u32())
	count := int(r.u32())
	if r.err != nil {
		return nil, r.err
	}
	if !okS || !okM {
		return nil, fmt.Errorf("%w: unknown strategy or metric code", domain.ErrIndexConsistency)
	}

	cfg := domain.IndexConfig{Strategy: strategy, Dimension: dim, Metric: metric}
	if strategy == domain.IndexHybrid {
		inner, ok := lookup(strategyCodes, r.u8())
		cfg.Hybrid = domain.HybridConfig{
			Inner:        inner,
			OverFetch:    int(r.u32()),
			MaxOverFetch: int(r.u32()),
		}
		if r.err != nil {
			return nil, r.err
		}
		if !ok {
			return nil, fmt.Errorf("%w: unknown inner strategy code", domain.ErrIndexConsistency)
		}
	}

	idx, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexConsistency, err)
	}
	if err := idx.UnmarshalBinary(r.rest()); err != nil {
		return nil, err
	}
	if idx.Len() != count {
		return nil, fmt.Errorf("%w: header declares %d items, body holds %d",
			domain.ErrIndexConsistency, count, idx.Len())
	}
	return idx, nil
}

func codeOf[T comparable](codes []T, v T) uint8 {
	for i, c := range codes {
		if c == v {
			return uint8(i)
		}
	}
	return math.MaxUint8
}

func lookup[T any](codes []T, code uint8) (T, bool) {
	if int(code) >= len(codes) {
		var zero T
		return zero, false
	}
	return codes[code], true
}

// writer appends little-endian fields to a buffer.
type writer struct {
	buf bytes.Buffer
	tmp [binary.MaxVarintLen64]byte
}

func (w *writer) raw(b []byte) { w.buf.Write(b) }

func (w *writer) u8(v uint8) { w.buf.WriteByte(v) }

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.tmp[:4], v)
	w.buf.Write(w.tmp[:4])
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], v)
	w.buf.Write(w.tmp[:8])
}

func (w *writer) uvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf.Write(w.tmp[:n])
}

func (w *writer) string(s string) {
	w.uvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) vector(v []float32) {
	for _, f := range v {
		w.u32(math.Float32bits(f))
	}
}

// metadata writes keys in sorted order so output is deterministic.
func (w *writer) metadata(m map[string]string) {
	keys := sortedKeys(m)
	w.uvarint(uint64(len(keys)))
	for _, k := range keys {
		w.string(k)
		w.string(m[k])
	}
}

func (w *writer) bytes() []byte { return w.buf.Bytes() }

// reader consumes fields written by writer. The first error sticks and
// later reads return zero values.
type reader struct {
	data []byte
	off  int
	err  error
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: index data truncated at offset %d", domain.ErrIndexConsistency, r.off)
		return false
	}
	return true
}

func (r *reader) raw(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		r.err = fmt.Errorf("%w: bad varint at offset %d", domain.ErrIndexConsistency, r.off)
		return 0
	}
	r.off += n
	return v
}

func (r *reader) string() string {
	n := r.uvarint()
	if n > uint64(len(r.data)) {
		r.err = fmt.Errorf("%w: string length %d exceeds data", domain.ErrIndexConsistency, n)
		return ""
	}
	return string(r.raw(int(n)))
}

func (r *reader) vector(dim int) []float32 {
	if !r.need(4 * dim) {
		return nil
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(r.u32())
	}
	return v
}

func (r *reader) metadata() map[string]string {
	n := r.uvarint()
	if n == 0 || r.err != nil {
		return nil
	}
	if n > uint64(len(r.data)) {
		r.err = fmt.Errorf("%w: metadata size %d exceeds data", domain.ErrIndexConsistency, n)
		return nil
	}
	m := make(map[string]string, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		k := r.string()
		m[k] = r.string()
	}
	return m
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	return r.data[r.off:]
}

// finish reports the sticky error or trailing bytes.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes", domain.ErrIndexConsistency, len(r.data)-r.off)
	}
	return nil
}
