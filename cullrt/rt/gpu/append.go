package gpu

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
)

var ErrAppendOverflow = errors.New("gpu: append buffer overflow")

// AppendBuffer is a fixed-capacity compaction target. Concurrent kernel
// invocations reserve slots through an atomic counter, so the order of the
// compacted indices is unspecified.
type AppendBuffer struct {
	label   string
	data    []uint32
	counter atomic.Uint32
}

func NewAppendBuffer(label string, capacity int) *AppendBuffer {
	return &AppendBuffer{
		label: label,
		data:  make([]uint32, capacity),
	}
}

func (b *AppendBuffer) Label() string { return b.label }
func (b *AppendBuffer) Cap() int      { return len(b.data) }

// Reset sets the counter back to zero. Must run before every frame's
// first culling dispatch.
func (b *AppendBuffer) Reset() {
	b.counter.Store(0)
}

// Append reserves one slot and stores v in it. Safe for concurrent use.
func (b *AppendBuffer) Append(v uint32) error {
	slot := b.counter.Add(1) - 1
	if int(slot) >= len(b.data) {
		// Undo so Count never reports more than capacity.
		b.counter.Add(^uint32(0))
		return ErrAppendOverflow
	}
	b.data[slot] = v
	return nil
}

// AppendAll copies values in bulk. Not safe for concurrent use with Append.
func (b *AppendBuffer) AppendAll(values []uint32) error {
	start := int(b.counter.Load())
	if start+len(values) > len(b.data) {
		return ErrAppendOverflow
	}
	copy(b.data[start:], values)
	b.counter.Store(uint32(start + len(values)))
	return nil
}

// Count returns the current value of the append counter.
func (b *AppendBuffer) Count() uint32 {
	return b.counter.Load()
}

// Slice returns the compacted entries. The slice aliases the buffer and is
// valid until the next Reset.
func (b *AppendBuffer) Slice() []uint32 {
	return b.data[:b.Count()]
}

// Bytes encodes the compacted entries as little-endian u32s.
func (b *AppendBuffer) Bytes() []byte {
	s := b.Slice()
	out := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
