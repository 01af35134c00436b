// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package allocator contains helpers to view mapped memory as typed objects.
// All objects placed into shared memory must not contain any references.
package allocator

import (
	"fmt"
	"unsafe"
)

// ByteSliceData returns a pointer to the data of the given byte slice.
func ByteSliceData(slice []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(slice))
}

// Uint32At returns a pointer to a uint32 cell at offset off of mem.
// It panics if the cell is out of range or misaligned, as atomic operations
// and futexes require natural alignment.
func Uint32At(mem []byte, off int) *uint32 {
	checkCell(mem, off, 4)
	return (*uint32)(unsafe.Pointer(&mem[off]))
}

// ObjectAt casts memory at offset off to *T, checking bounds and alignment.
// T must not contain any references.
func ObjectAt[T any](mem []byte, off int) *T {
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	checkRange(mem, off, size)
	if uintptr(unsafe.Pointer(&mem[off]))%uintptr(align) != 0 {
		panic(fmt.Sprintf("object at %d is misaligned", off))
	}
	return (*T)(unsafe.Pointer(&mem[off]))
}

func checkCell(mem []byte, off, size int) {
	checkRange(mem, off, size)
	if uintptr(unsafe.Pointer(&mem[off]))%uintptr(size) != 0 {
		panic(fmt.Sprintf("cell at %d is misaligned", off))
	}
}

func checkRange(mem []byte, off, size int) {
	if off < 0 || size <= 0 || off+size > len(mem) {
		panic(fmt.Sprintf("range [%d, %d) is out of [0, %d)", off, off+size, len(mem)))
	}
}
