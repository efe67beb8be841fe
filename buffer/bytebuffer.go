// File: buffer/bytebuffer.go
// Package buffer implements a growable byte staging area split into
// prepend, readable, and writable regions, sized for scatter reads off
// a non-blocking socket.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"errors"
)

// DefaultPrependSize is the reserved region before the readable bytes,
// used to cheaply prepend a length header without a reallocation.
const DefaultPrependSize = 8

// DefaultInitialSize is the writable capacity a freshly constructed
// ByteBuffer starts with.
const DefaultInitialSize = 1024

// ErrPrependTooLarge is the value Prepend panics with when len(data) exceeds the
// currently available prepend region. This is a programmer error: the
// caller asked to prepend more than DefaultPrependSize allows for.
var ErrPrependTooLarge = errors.New("buffer: prepend exceeds prependable region")

// ByteBuffer is a resizable byte array with three adjacent regions,
// delimited by a read cursor and a write cursor:
//
//	[0, r)     prepend region
//	[r, w)     readable region
//	[w, size)  writable region
//
// The zero value is not usable; construct with New or NewSized.
type ByteBuffer struct {
	buf []byte
	r   int // read index
	w   int // write index
}

// New returns a ByteBuffer with the default prepend reserve and initial
// writable capacity.
func New() *ByteBuffer {
	return NewSized(DefaultInitialSize)
}

// NewSized returns a ByteBuffer whose writable region holds at least
// initialCap bytes before any growth is required.
func NewSized(initialCap int) *ByteBuffer {
	b := &ByteBuffer{
		buf: make([]byte, DefaultPrependSize+initialCap),
	}
	b.r = DefaultPrependSize
	b.w = DefaultPrependSize
	return b
}

// ReadableBytes returns the number of bytes currently available to Peek
// or Retrieve.
func (b *ByteBuffer) ReadableBytes() int { return b.w - b.r }

// WritableBytes returns the number of bytes that can be appended without
// triggering makeSpace.
func (b *ByteBuffer) WritableBytes() int { return len(b.buf) - b.w }

// PrependableBytes returns the number of bytes currently available to
// Prepend.
func (b *ByteBuffer) PrependableBytes() int { return b.r }

// Peek returns a slice over the readable region. The slice aliases the
// buffer's backing array; it is invalidated by any subsequent mutator.
func (b *ByteBuffer) Peek() []byte {
	return b.buf[b.r:b.w]
}

// Retrieve advances the read cursor by n bytes, discarding them. If that
// consumes the entire readable region, both cursors reset to the
// prepend reserve so future appends reuse the front of the buffer.
func (b *ByteBuffer) Retrieve(n int) {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	if n < b.ReadableBytes() {
		b.r += n
	} else {
		b.RetrieveAll()
	}
}

// RetrieveAll discards the entire readable region and resets both
// cursors to the prepend reserve.
func (b *ByteBuffer) RetrieveAll() {
	b.r = DefaultPrependSize
	b.w = DefaultPrependSize
}

// RetrieveAsString copies out the first n bytes of the readable region
// and then retrieves them.
func (b *ByteBuffer) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.buf[b.r : b.r+n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString copies out and retrieves the entire readable
// region.
func (b *ByteBuffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// Append copies data onto the end of the writable region, growing or
// compacting the buffer first if necessary.
func (b *ByteBuffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	copy(b.buf[b.w:], data)
	b.w += len(data)
}

// AppendString is a convenience wrapper for Append([]byte(s)).
func (b *ByteBuffer) AppendString(s string) {
	b.Append([]byte(s))
}

// EnsureWritable guarantees WritableBytes() >= n once it returns,
// applying makeSpace only if the current writable region is too small.
func (b *ByteBuffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// Prepend writes data immediately before the readable region, moving
// the read cursor back by len(data). It requires len(data) to be no
// larger than the current prependable region; this is a programmer
// error, not a runtime condition, so it panics rather than failing
// silently — a caller that violates the prepend-reserve budget has a
// bug, per the core's error-handling policy for programmer errors.
func (b *ByteBuffer) Prepend(data []byte) {
	if len(data) > b.PrependableBytes() {
		panic(ErrPrependTooLarge)
	}
	b.r -= len(data)
	copy(b.buf[b.r:], data)
}

// makeSpace implements the compaction-over-growth rule: if the combined
// prependable and writable regions can't satisfy a request of length n
// while preserving the prepend reserve, the backing array is grown;
// otherwise the readable region slides down to the reserve boundary,
// which is always sufficient since prependable only shrinks by sliding.
func (b *ByteBuffer) makeSpace(n int) {
	if b.PrependableBytes()+b.WritableBytes() < n+DefaultPrependSize {
		grown := make([]byte, b.w+n)
		copy(grown, b.buf[:b.w])
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf[DefaultPrependSize:], b.buf[b.r:b.w])
	b.r = DefaultPrependSize
	b.w = b.r + readable
}
