package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"sort"
)

// Snapshot layout, all integers little-endian:
//
//	magic "CRVDB" | version u16
//	embeddings:  count u32 | dim u32 | count*dim float32
//	metadata:    count u32 | per record 5 strings + original_index i64
//	query cache: count u32 | per entry key string | dim u32 | dim float32 (sorted by key)
//	config:      model string | embedding_model string | temperature f64 | max_tokens i64 (version >= 2)
//	crc32 (IEEE) of every preceding byte
//
// Strings are a u32 byte length followed by the bytes.
const (
	snapshotMagic = "CRVDB"

	// VersionNoConfig snapshots predate the config section.
	VersionNoConfig uint16 = 1
	// VersionCurrent is written by Encode.
	VersionCurrent uint16 = 2

	maxFieldLen  = 1 << 30
	maxDimension = 1 << 16
	preallocCap  = 1024
)

type encoder struct {
	w   *bufio.Writer
	crc hash.Hash32
	err error
	buf [8]byte
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(p); err != nil {
		e.err = err
		return
	}
	e.crc.Write(p)
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[:2], v)
	e.write(e.buf[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	e.write(e.buf[:8])
}

func (e *encoder) f32(v float32) { e.u32(math.Float32bits(v)) }

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.write([]byte(s))
}

func (e *encoder) vector(v []float32) {
	for _, x := range v {
		e.f32(x)
	}
}

// Encode writes snap in the current snapshot format.
func Encode(w io.Writer, snap *Snapshot) error {
	if len(snap.Embeddings) != len(snap.Metadata) {
		return fmt.Errorf("%w: %d embeddings, %d records",
			ErrMisalignedSnapshot, len(snap.Embeddings), len(snap.Metadata))
	}

	dim := 0
	if len(snap.Embeddings) > 0 {
		dim = len(snap.Embeddings[0])
		if dim == 0 {
			return fmt.Errorf("%w: embeddings have zero dimensions", ErrDimensionMismatch)
		}
	}
	for i, v := range snap.Embeddings {
		if len(v) != dim {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}

	e := &encoder{w: bufio.NewWriter(w), crc: crc32.NewIEEE()}
	e.write([]byte(snapshotMagic))
	e.u16(VersionCurrent)

	e.u32(uint32(len(snap.Embeddings)))
	e.u32(uint32(dim))
	for _, v := range snap.Embeddings {
		e.vector(v)
	}

	e.u32(uint32(len(snap.Metadata)))
	for _, m := range snap.Metadata {
		e.str(m.DocID)
		e.str(m.OriginalUUID)
		e.str(m.ChunkID)
		e.str(m.OriginalContent)
		e.str(m.ContextualizedContent)
		e.u64(uint64(int64(m.OriginalIndex)))
	}

	keys := make([]string, 0, len(snap.QueryCache))
	for k := range snap.QueryCache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.u32(uint32(len(keys)))
	for _, k := range keys {
		v := snap.QueryCache[k]
		e.str(k)
		e.u32(uint32(len(v)))
		e.vector(v)
	}

	e.str(snap.Config.Model)
	e.str(snap.Config.EmbeddingModel)
	e.u64(math.Float64bits(snap.Config.Temperature))
	e.u64(uint64(int64(snap.Config.MaxTokens)))

	if e.err != nil {
		return e.err
	}
	// The checksum itself is not part of the checksum.
	binary.LittleEndian.PutUint32(e.buf[:4], e.crc.Sum32())
	if _, err := e.w.Write(e.buf[:4]); err != nil {
		return err
	}
	return e.w.Flush()
}

type decoder struct {
	r   io.Reader
	crc hash.Hash32
	err error
	buf [8]byte
}

func (d *decoder) read(p []byte) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, p); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		return
	}
	d.crc.Write(p)
}

func (d *decoder) u16() uint16 {
	d.read(d.buf[:2])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(d.buf[:2])
}

func (d *decoder) u32() uint32 {
	d.read(d.buf[:4])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[:4])
}

func (d *decoder) u64() uint64 {
	d.read(d.buf[:8])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[:8])
}

// length reads a u32 size and rejects values no sane snapshot would contain.
func (d *decoder) length(what string) int {
	n := d.u32()
	if d.err == nil && n > maxFieldLen {
		d.err = fmt.Errorf("%w: %s length %d", ErrCorruptSnapshot, what, n)
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) dimension() int {
	n := d.length("dimension")
	if d.err == nil && n > maxDimension {
		d.err = fmt.Errorf("%w: dimension %d", ErrCorruptSnapshot, n)
		return 0
	}
	return n
}

// str grows with the bytes actually read so a corrupt length cannot force a
// huge allocation.
func (d *decoder) str() string {
	n := d.length("string")
	if d.err != nil || n == 0 {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(d.r, int64(n)))
	if err == nil && len(b) < n {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		return ""
	}
	d.crc.Write(b)
	return string(b)
}

func (d *decoder) vector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(d.u32())
	}
	return v
}

// Decode reads a snapshot of any supported version. Version 1 snapshots get
// DefaultIndexConfig.
func Decode(r io.Reader) (*Snapshot, error) {
	d := &decoder{r: bufio.NewReader(r), crc: crc32.NewIEEE()}

	magic := make([]byte, len(snapshotMagic))
	d.read(magic)
	if d.err != nil {
		return nil, d.err
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptSnapshot, magic)
	}

	version := d.u16()
	if d.err != nil {
		return nil, d.err
	}
	if version != VersionNoConfig && version != VersionCurrent {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	snap := &Snapshot{
		QueryCache: make(map[string][]float32),
		Config:     DefaultIndexConfig(),
	}

	count := d.length("embeddings")
	dim := d.dimension()
	// Every vector must consume input, or a corrupt count alone drives the loop.
	if d.err == nil && count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d embeddings with zero dimensions", ErrCorruptSnapshot, count)
	}
	if d.err == nil && count > 0 {
		snap.Embeddings = make([][]float32, 0, min(count, preallocCap))
		for i := 0; i < count && d.err == nil; i++ {
			snap.Embeddings = append(snap.Embeddings, d.vector(dim))
		}
	}

	count = d.length("metadata")
	if d.err == nil && count > 0 {
		snap.Metadata = make([]ContextualChunk, 0, min(count, preallocCap))
		for i := 0; i < count && d.err == nil; i++ {
			var m ContextualChunk
			m.DocID = d.str()
			m.OriginalUUID = d.str()
			m.ChunkID = d.str()
			m.OriginalContent = d.str()
			m.ContextualizedContent = d.str()
			m.OriginalIndex = int(int64(d.u64()))
			snap.Metadata = append(snap.Metadata, m)
		}
	}

	count = d.length("query cache")
	for i := 0; i < count && d.err == nil; i++ {
		key := d.str()
		qdim := d.dimension()
		if d.err != nil {
			break
		}
		snap.QueryCache[key] = d.vector(qdim)
	}

	if version >= VersionCurrent {
		snap.Config.Model = d.str()
		snap.Config.EmbeddingModel = d.str()
		snap.Config.Temperature = math.Float64frombits(d.u64())
		snap.Config.MaxTokens = int(int64(d.u64()))
	}

	if d.err != nil {
		return nil, d.err
	}

	want := d.crc.Sum32()
	var trailer [4]byte
	if _, err := io.ReadFull(d.r, trailer[:]); err != nil {
		return nil, fmt.Errorf("%w: missing checksum: %v", ErrCorruptSnapshot, err)
	}
	if got := binary.LittleEndian.Uint32(trailer[:]); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	if len(snap.Embeddings) != len(snap.Metadata) {
		return nil, fmt.Errorf("%w: %d embeddings, %d records",
			ErrMisalignedSnapshot, len(snap.Embeddings), len(snap.Metadata))
	}

	return snap, nil
}
