// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package helper wires shm objects and mmf regions together.
package helper

import (
	"os"

	"github.com/nxgtw/go-shmq/mmf"
	"github.com/nxgtw/go-shmq/shm"

	"github.com/pkg/errors"
)

// CreateWritableRegion is a helper, which:
//	- creates a shared memory object with given parameters.
//	- creates a mapping for the entire region with mmf.MEM_READWRITE flag.
//	- closes memory object and returns memory region and a flag whether the object was created.
func CreateWritableRegion(name string, flag int, perm os.FileMode, size int) (*mmf.MemoryRegion, bool, error) {
	obj, created, resultErr := shm.NewMemoryObjectSize(name, flag, perm, int64(size))
	if resultErr != nil {
		return nil, false, errors.Wrap(resultErr, "failed to create shm object")
	}
	var region *mmf.MemoryRegion
	defer func() {
		obj.Close()
		if resultErr == nil {
			return
		}
		if region != nil {
			region.Close()
		}
		if created {
			obj.Destroy()
		}
	}()
	if region, resultErr = mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, size); resultErr != nil {
		return nil, false, errors.Wrap(resultErr, "failed to create shm region")
	}
	return region, created, nil
}

// OpenWritableRegion maps an entire existing shared memory object for reading and writing.
// The object must be at least minSize bytes long.
func OpenWritableRegion(name string, minSize int) (*mmf.MemoryRegion, error) {
	obj, err := shm.NewMemoryObject(name, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open shm object")
	}
	defer obj.Close()
	size := obj.Size()
	if size < int64(minSize) {
		return nil, errors.Errorf("shm object is too small: %d bytes", size)
	}
	region, err := mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, 0, int(size))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shm region")
	}
	return region, nil
}
