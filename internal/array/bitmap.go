// Copyright 2016 Aleksandr Demakin. All rights reserved.

package array

import (
	"fmt"
	"math"
	"math/bits"
	"unsafe"

	"github.com/nxgtw/go-shmq/internal/allocator"
)

// Bitmap is a set of used/free bits placed in mapped memory.
// It is not synchronized, callers must serialize access.
type Bitmap struct {
	words []uint64
	size  int
}

// BitmapSize returns the number of bytes needed for a bitmap of size bits.
func BitmapSize(size int) int {
	return wordsFor(size) * 8
}

// NewBitmap opens a bitmap of size bits over mem.
// mem must be 8-byte aligned and at least BitmapSize(size) long.
func NewBitmap(mem []byte, size int) *Bitmap {
	n := wordsFor(size)
	if len(mem) < n*8 {
		panic(fmt.Sprintf("bitmap needs %d bytes, got %d", n*8, len(mem)))
	}
	var words []uint64
	if n > 0 {
		ptr := allocator.ByteSliceData(mem)
		if uintptr(ptr)%8 != 0 {
			panic("bitmap memory is misaligned")
		}
		words = unsafe.Slice((*uint64)(ptr), n)
	}
	return &Bitmap{words: words, size: size}
}

func wordsFor(size int) int {
	return (size + 63) / 64
}

// Len returns the number of bits.
func (b *Bitmap) Len() int {
	return b.size
}

// Reset marks all bits as free.
func (b *Bitmap) Reset() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// IsSet returns true, if the i'th bit is used.
func (b *Bitmap) IsSet(i int) bool {
	b.check(i)
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of used bits.
func (b *Bitmap) Count() int {
	result := 0
	for _, w := range b.words {
		result += bits.OnesCount64(w)
	}
	return result
}

// Reserve marks the lowest free bit as used and returns its index.
func (b *Bitmap) Reserve() (int, bool) {
	for i, w := range b.words {
		if w == math.MaxUint64 {
			continue
		}
		idx := i*64 + bits.TrailingZeros64(^w)
		if idx >= b.size {
			break
		}
		b.words[i] |= 1 << uint(idx%64)
		return idx, true
	}
	return 0, false
}

// ReserveRun finds the first run of n free bits, marks it as used
// and returns the index of its first bit.
func (b *Bitmap) ReserveRun(n int) (int, bool) {
	if n <= 0 || n > b.size {
		return 0, false
	}
	run := 0
	for i := 0; i < b.size; i++ {
		if b.IsSet(i) {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			b.setRun(start, n, true)
			return start, true
		}
	}
	return 0, false
}

// Free marks the i'th bit as free.
func (b *Bitmap) Free(i int) {
	b.check(i)
	b.words[i/64] &^= 1 << uint(i%64)
}

// FreeRun marks n bits starting from i as free.
func (b *Bitmap) FreeRun(i, n int) {
	b.setRun(i, n, false)
}

func (b *Bitmap) setRun(start, n int, used bool) {
	for i := start; i < start+n; i++ {
		b.check(i)
		if used {
			b.words[i/64] |= 1 << uint(i%64)
		} else {
			b.words[i/64] &^= 1 << uint(i%64)
		}
	}
}

func (b *Bitmap) check(i int) {
	if i < 0 || i >= b.size {
		panic(fmt.Sprintf("bit %d out of range [0, %d)", i, b.size))
	}
}
