// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"os"
	"path/filepath"
)

type memoryObject struct {
	file *os.File
}

func newMemoryObject(name string, flag int, perm os.FileMode) (impl *memoryObject, err error) {
	var path string
	if path, err = shmName(name); err != nil {
		return nil, err
	}
	var file *os.File
	file, err = shmOpen(path, flag, perm)
	if err != nil {
		return
	}
	impl = &memoryObject{file: file}
	return
}

func (obj *memoryObject) Destroy() error {
	if int(obj.Fd()) >= 0 {
		if err := obj.Close(); err != nil {
			return err
		}
	}
	return doDestroyMemoryObject(obj.file.Name())
}

func (obj *memoryObject) Name() string {
	return filepath.Base(obj.file.Name())
}

func (obj *memoryObject) Close() error {
	err := obj.file.Close()
	if err != nil && isAlreadyClosed(err) {
		return nil
	}
	return err
}

func (obj *memoryObject) Truncate(size int64) error {
	return obj.file.Truncate(size)
}

func (obj *memoryObject) Size() int64 {
	fileInfo, err := obj.file.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

func (obj *memoryObject) Fd() uintptr {
	return obj.file.Fd()
}

func destroyMemoryObject(name string) error {
	path, err := shmName(name)
	if err != nil {
		return err
	}
	return doDestroyMemoryObject(path)
}

func isAlreadyClosed(err error) bool {
	pathErr, ok := err.(*os.PathError)
	return ok && pathErr.Err == os.ErrClosed
}
