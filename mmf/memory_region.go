// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package mmf maps shared memory objects into the address space of the process.
package mmf

import (
	"runtime"

	"github.com/pkg/errors"
)

// constants for memory regions.
const (
	MEM_READ_ONLY = 0x00000001
	MEM_READWRITE = 0x00000004
)

var (
	mmapOffsetMultiple int64
)

// Mappable is a named object, which can return a handle,
// that can be used as a file descriptor for mmap.
type Mappable interface {
	Fd() uintptr
	Name() string
}

// MemoryRegion is a mmapped area of a memory object.
// Warning. The internal object has a finalizer set,
// so the region will be unmapped during the gc.
// Keep the region reachable while its Data() is in use.
type MemoryRegion struct {
	*memoryRegion
}

// NewMemoryRegion creates a new shared memory region.
//	object - an object to mmap.
//	mode - open mode. see MEM_* constants
//	offset - offset in bytes from the beginning of the mmaped file
//	size - mapping size. 0 means the size of the object.
func NewMemoryRegion(object Mappable, mode int, offset int64, size int) (*MemoryRegion, error) {
	impl, err := newMemoryRegion(object, mode, offset, size)
	if err != nil {
		return nil, err
	}
	result := &MemoryRegion{impl}
	runtime.SetFinalizer(impl, func(region *memoryRegion) {
		region.Close()
	})
	return result, nil
}

// Close unmaps the regions so that it cannot be longer used.
func (region *MemoryRegion) Close() error {
	return region.memoryRegion.Close()
}

// Data returns region's mapped data.
func (region *MemoryRegion) Data() []byte {
	return region.memoryRegion.Data()
}

// Flush syncs mapped content with the object data.
func (region *MemoryRegion) Flush(async bool) error {
	return region.memoryRegion.Flush(async)
}

// Size returns mapping size.
func (region *MemoryRegion) Size() int {
	return region.memoryRegion.Size()
}

// calcMmapOffsetFixup returns a value X,
// so that  offset - X is a valid mmap offset.
func calcMmapOffsetFixup(offset int64) int64 {
	return offset - (offset/mmapOffsetMultiple)*mmapOffsetMultiple
}

type fileInfoGetter interface {
	Size() int64
}

func fileSizeFromFd(f Mappable) (int64, error) {
	if f.Fd() == ^uintptr(0) {
		return 0, errors.New("invalid object descriptor")
	}
	if ig, ok := f.(fileInfoGetter); ok {
		return ig.Size(), nil
	}
	return statSize(f.Fd())
}

func checkMmapSize(f Mappable, size int) (int, error) {
	if size < 0 {
		return 0, errors.Errorf("invalid mapping size %d", size)
	}
	if size == 0 {
		sz, err := fileSizeFromFd(f)
		if err != nil {
			return 0, err
		}
		if sz == 0 {
			return 0, errors.New("must provide a valid file size")
		}
		size = int(sz)
	}
	return size, nil
}
