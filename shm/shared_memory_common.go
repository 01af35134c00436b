// Copyright 2015 Aleksandr Demakin. All rights reserved.

package shm

// this is to ensure, that the shm object satisfies the interface,
// the rest of the library depends on.
var (
	_ SharedMemoryObject = (*MemoryObject)(nil)
)

// SharedMemoryObject is an interface, which must be implemented
// by any implemetation of an object used for mapping into memory.
type SharedMemoryObject interface {
	Size() int64
	Truncate(size int64) error
	Close() error
	Destroy() error
	Fd() uintptr
	Name() string
}
