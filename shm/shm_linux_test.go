// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"os"
	"strings"
	"testing"

	shmq "github.com/nxgtw/go-shmq"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testObjName = "shmq-test.shm-object"

func TestShmFsFromReader(t *testing.T) {
	const (
		testData = `
			#
			# /etc/fstab
			# name dir type opts freq passno
			UUID=cd459033-ae0a-4fb4-96fb-2323365a8e21 /                       ext4    defaults        1 1
			UUID=53d61062-7b6b-4f5b-80fd-7baf4017f96d swap                    swap    defaults        0 0
			tmpfs /dev/shm tmpfs rw,seclabel,nosuid,nodev 0 0
		`
		testData2 = "tmpfs /dev/shm nottmpfs rw,seclabel,nosuid,nodev 0 0"
	)
	if !checkShmPath(defaultShmPath) {
		t.Skip("/dev/shm is not a shm fs")
	}
	assert.Equal(t, "/dev/shm/", shmFsFromReader(strings.NewReader(testData)))
	assert.Equal(t, "", shmFsFromReader(strings.NewReader(testData2)))
}

func TestScanMountRecord(t *testing.T) {
	a := assert.New(t)
	a.Nil(scanMountRecord("# comment line"))
	a.Nil(scanMountRecord("tmpfs /dev/shm"))
	rec := scanMountRecord("tmpfs /run/shm tmpfs rw 0 0")
	if a.NotNil(rec) {
		a.Equal("/run/shm", rec.dir)
		a.Equal("tmpfs", rec.fstype)
	}
}

func TestShmName(t *testing.T) {
	a := assert.New(t)
	_, err := shmName("")
	a.True(errors.Is(err, shmq.ErrInvalidName))
	_, err = shmName("a/b")
	a.True(errors.Is(err, shmq.ErrInvalidName))
	_, err = shmName(strings.Repeat("x", maxNameLen))
	a.True(errors.Is(err, shmq.ErrInvalidName))
	path, err := shmName("/valid")
	if a.NoError(err) {
		a.True(strings.HasSuffix(path, "/valid"))
	}
}

func TestMemoryObjectSize(t *testing.T) {
	a := assert.New(t)
	require.NoError(t, DestroyMemoryObject(testObjName))
	defer DestroyMemoryObject(testObjName)

	obj, created, err := NewMemoryObjectSize(testObjName, os.O_CREATE|os.O_EXCL, 0666, 8192)
	require.NoError(t, err)
	a.True(created)
	a.Equal(int64(8192), obj.Size())
	a.Equal(testObjName, obj.Name())
	a.NoError(obj.Close())

	exists, err := MemoryObjectExists(testObjName)
	a.NoError(err)
	a.True(exists)

	_, _, err = NewMemoryObjectSize(testObjName, os.O_CREATE|os.O_EXCL, 0666, 8192)
	a.True(os.IsExist(err))

	obj, created, err = NewMemoryObjectSize(testObjName, os.O_CREATE, 0666, 4096)
	require.NoError(t, err)
	a.False(created)
	a.Equal(int64(8192), obj.Size())
	a.NoError(obj.Destroy())

	exists, err = MemoryObjectExists(testObjName)
	a.NoError(err)
	a.False(exists)
	_, _, err = NewMemoryObjectSize(testObjName, 0, 0666, 4096)
	a.True(os.IsNotExist(err))
}

func TestMemoryObjectTooSmall(t *testing.T) {
	require.NoError(t, DestroyMemoryObject(testObjName))
	defer DestroyMemoryObject(testObjName)
	obj, _, err := NewMemoryObjectSize(testObjName, os.O_CREATE|os.O_EXCL, 0666, 1024)
	require.NoError(t, err)
	obj.Close()
	_, _, err = NewMemoryObjectSize(testObjName, 0, 0666, 4096)
	assert.Error(t, err)
}
