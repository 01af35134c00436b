// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package shm implements named shared memory objects, which back every arena.
package shm

import (
	"os"
	"runtime"

	"github.com/nxgtw/go-shmq/internal/common"
	"github.com/pkg/errors"
)

// MemoryObject represents an object which can be used to
// map shared memory regions into the process' address space.
type MemoryObject struct {
	*memoryObject
}

// NewMemoryObject creates a new shared memory object.
//	name - a name of the object. should not contain '/' and exceed 255 symbols.
//	flag - flag is a combination of open flags from 'os' package.
//	perm - object's permission bits.
func NewMemoryObject(name string, flag int, perm os.FileMode) (*MemoryObject, error) {
	impl, err := newMemoryObject(name, flag, perm)
	if err != nil {
		return nil, err
	}
	result := &MemoryObject{impl}
	runtime.SetFinalizer(impl, func(memObject *memoryObject) {
		memObject.Close()
	})
	return result, nil
}

// NewMemoryObjectSize opens or creates a shared memory object with the given name.
// If the object was created, it is truncated to 'size'.
// Otherwise, its size is checked to be at least 'size' bytes.
// It returns the object and a flag, whether it was created.
//	name - a name of the object.
//	flag - combination of os.O_CREATE and os.O_EXCL, or 0 to open an existing object.
//	perm - object's permission bits.
//	size - object size.
func NewMemoryObjectSize(name string, flag int, perm os.FileMode, size int64) (*MemoryObject, bool, error) {
	var obj *MemoryObject
	creator := func(create bool) error {
		var err error
		creatorFlag := os.O_RDWR
		if create {
			creatorFlag |= os.O_CREATE | os.O_EXCL
		}
		obj, err = NewMemoryObject(name, creatorFlag, perm)
		return errors.Cause(err)
	}
	created, resultErr := common.OpenOrCreate(creator, flag)
	if resultErr != nil {
		return nil, false, resultErr
	}
	if created {
		if resultErr = obj.Truncate(size); resultErr != nil {
			obj.Destroy()
			return nil, false, errors.Wrap(resultErr, "failed to truncate shm object")
		}
	} else if obj.Size() < size {
		obj.Close()
		return nil, false, errors.Errorf("existing object has invalid size %d, expected at least %d", obj.Size(), size)
	}
	return obj, created, nil
}

// DestroyMemoryObject permanently removes given memory object.
// It is not an error to destroy an object, which does not exist.
func DestroyMemoryObject(name string) error {
	return destroyMemoryObject(name)
}

// MemoryObjectExists returns true, if an object with the given name exists.
func MemoryObjectExists(name string) (bool, error) {
	path, err := shmName(name)
	if err != nil {
		return false, err
	}
	if _, err = os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
