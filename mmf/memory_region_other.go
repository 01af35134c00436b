// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build !linux

package mmf

import (
	shmq "github.com/nxgtw/go-shmq"
)

func init() {
	mmapOffsetMultiple = 4096
}

type memoryRegion struct{}

func newMemoryRegion(obj Mappable, mode int, offset int64, size int) (*memoryRegion, error) {
	return nil, shmq.ErrNotSupported
}

func (region *memoryRegion) Close() error           { return nil }
func (region *memoryRegion) Data() []byte           { return nil }
func (region *memoryRegion) Flush(async bool) error { return shmq.ErrNotSupported }
func (region *memoryRegion) Size() int              { return 0 }

func statSize(fd uintptr) (int64, error) {
	return 0, shmq.ErrNotSupported
}
