// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package ring implements length-prefixed message framing over a circular byte buffer.
// A frame is a 4-byte little-endian payload length followed by the payload.
// Both parts may be split by the end of the buffer.
package ring

import (
	"encoding/binary"
	"sync/atomic"

	shmq "github.com/nxgtw/go-shmq"
)

const (
	// LenSize is the size of a frame length prefix.
	LenSize = 4
)

// Cursors points to the read and write offsets of a ring.
// Both usually live in shared memory next to the buffer.
type Cursors struct {
	Write *uint32
	Read  *uint32
}

// Ring is a circular buffer with frame read/write operations.
// Read == Write means the ring is empty, so at most Cap()-1 bytes can be stored.
// Ring does no locking. Frame operations must be serialized by the caller,
// and writers must make sure there is enough free space before writing.
type Ring struct {
	data []byte
	cur  Cursors
}

// FrameSize returns the number of ring bytes a payload of length n occupies.
func FrameSize(n int) int {
	return LenSize + n
}

// New returns a ring over data with given cursors.
// It panics, if data is shorter, than a frame header.
func New(data []byte, cur Cursors) *Ring {
	if len(data) <= LenSize {
		panic("ring buffer is too small")
	}
	return &Ring{data: data, cur: cur}
}

// Reset makes the ring empty.
func (r *Ring) Reset() {
	atomic.StoreUint32(r.cur.Read, 0)
	atomic.StoreUint32(r.cur.Write, 0)
}

// Cap returns the size of the buffer.
func (r *Ring) Cap() int {
	return len(r.data)
}

// Used returns the number of occupied bytes.
func (r *Ring) Used() int {
	w, rd := r.cursors()
	return (w - rd + len(r.data)) % len(r.data)
}

// Free returns the number of bytes, which can be written.
func (r *Ring) Free() int {
	return len(r.data) - 1 - r.Used()
}

// Empty returns true, if there are no frames in the ring.
func (r *Ring) Empty() bool {
	w, rd := r.cursors()
	return w == rd
}

// WriteFrame appends a frame with the payload.
// It panics, if there is not enough free space.
func (r *Ring) WriteFrame(payload []byte) {
	if FrameSize(len(payload)) > r.Free() {
		panic("ring overflow")
	}
	var hdr [LenSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	w := int(atomic.LoadUint32(r.cur.Write))
	w = r.put(w, hdr[:])
	w = r.put(w, payload)
	atomic.StoreUint32(r.cur.Write, uint32(w))
}

// PeekLen returns the payload length of the head frame without consuming it.
// It panics, if the ring is empty.
func (r *Ring) PeekLen() int {
	if r.Empty() {
		panic("ring is empty")
	}
	length, _ := r.head()
	return length
}

// ReadFrame copies the payload of the head frame into buf and consumes the frame.
// If buf is too short, a *shmq.BufferTooSmallError is returned, and the frame stays in the ring.
// It panics, if the ring is empty.
func (r *Ring) ReadFrame(buf []byte) (int, error) {
	if r.Empty() {
		panic("ring is empty")
	}
	length, at := r.head()
	if length > len(buf) {
		return 0, &shmq.BufferTooSmallError{Len: length, Cap: len(buf)}
	}
	at = r.get(at, buf[:length])
	atomic.StoreUint32(r.cur.Read, uint32(at))
	return length, nil
}

// Discard drops the head frame and returns its payload length.
// It panics, if the ring is empty.
func (r *Ring) Discard() int {
	if r.Empty() {
		panic("ring is empty")
	}
	length, at := r.head()
	atomic.StoreUint32(r.cur.Read, uint32((at+length)%len(r.data)))
	return length
}

// head reads the length prefix at the read cursor.
// it returns the length and the offset of the payload.
func (r *Ring) head() (int, int) {
	var hdr [LenSize]byte
	at := r.get(int(atomic.LoadUint32(r.cur.Read)), hdr[:])
	length := int(binary.LittleEndian.Uint32(hdr[:]))
	if FrameSize(length) > r.Used() {
		panic("corrupted frame header")
	}
	return length, at
}

// put copies src into the ring at offset at, wrapping around the end of the buffer.
func (r *Ring) put(at int, src []byte) int {
	n := copy(r.data[at:], src)
	if n < len(src) {
		n += copy(r.data, src[n:])
	}
	return (at + n) % len(r.data)
}

// get fills dst from the ring at offset at, wrapping around the end of the buffer.
func (r *Ring) get(at int, dst []byte) int {
	n := copy(dst, r.data[at:])
	if n < len(dst) {
		n += copy(dst[n:], r.data)
	}
	return (at + n) % len(r.data)
}

func (r *Ring) cursors() (int, int) {
	return int(atomic.LoadUint32(r.cur.Write)), int(atomic.LoadUint32(r.cur.Read))
}
