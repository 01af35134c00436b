// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package array contains fixed-layout containers, which can be placed into mapped memory.
// They never move elements, so they can hold futexes and other in-place primitives.
package array

import (
	"fmt"
	"unsafe"

	"github.com/nxgtw/go-shmq/internal/allocator"
	"github.com/pkg/errors"
)

// tableAlign is the required alignment of the table stride.
// It is enough to place uint64 cells into any element.
const tableAlign = 8

// Table is a (base, length, stride) view over a byte slice.
// Element i occupies [i*stride, (i+1)*stride) and every access is bounds-checked.
type Table struct {
	mem    []byte
	length int
	stride int
}

// NewTable creates a table of length elements of stride bytes each over mem.
func NewTable(mem []byte, length, stride int) (*Table, error) {
	if length < 0 || stride <= 0 || stride%tableAlign != 0 {
		return nil, errors.Errorf("invalid table geometry %dx%d", length, stride)
	}
	if size := CalcTableSize(length, stride); size > len(mem) {
		return nil, errors.Errorf("table needs %d bytes, only %d available", size, len(mem))
	}
	if uintptr(allocator.ByteSliceData(mem))%tableAlign != 0 {
		return nil, errors.New("table memory is misaligned")
	}
	return &Table{mem: mem[:length*stride], length: length, stride: stride}, nil
}

// CalcTableSize returns the size, needed to place a table in memory.
func CalcTableSize(length, stride int) int {
	return length * stride
}

// Len returns the number of elements.
func (t *Table) Len() int {
	return t.length
}

// Stride returns element size.
func (t *Table) Stride() int {
	return t.stride
}

// At returns the memory of the i'th element.
func (t *Table) At(i int) []byte {
	t.check(i)
	off := i * t.stride
	return t.mem[off : off+t.stride : off+t.stride]
}

// Pointer returns a pointer to the beginning of the i'th element.
func (t *Table) Pointer(i int) unsafe.Pointer {
	t.check(i)
	return unsafe.Pointer(&t.mem[i*t.stride])
}

func (t *Table) check(i int) {
	if i < 0 || i >= t.length {
		panic(fmt.Sprintf("index %d out of range [0, %d)", i, t.length))
	}
}
