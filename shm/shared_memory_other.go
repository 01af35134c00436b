// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build !linux

package shm

import (
	"os"

	shmq "github.com/nxgtw/go-shmq"
)

type memoryObject struct{}

func newMemoryObject(name string, flag int, perm os.FileMode) (*memoryObject, error) {
	return nil, shmq.ErrNotSupported
}

func (obj *memoryObject) Destroy() error            { return shmq.ErrNotSupported }
func (obj *memoryObject) Name() string              { return "" }
func (obj *memoryObject) Close() error              { return nil }
func (obj *memoryObject) Truncate(size int64) error { return shmq.ErrNotSupported }
func (obj *memoryObject) Size() int64               { return 0 }
func (obj *memoryObject) Fd() uintptr               { return ^uintptr(0) }

func destroyMemoryObject(name string) error {
	return shmq.ErrNotSupported
}

func shmName(name string) (string, error) {
	return "", shmq.ErrNotSupported
}
