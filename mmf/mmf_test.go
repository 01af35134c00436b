// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package mmf

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile(t *testing.T, size int) *os.File {
	file, err := os.Create(filepath.Join(t.TempDir(), "test.bin"))
	require.NoError(t, err)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	_, err = file.Write(data)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	return file
}

func TestMmfOpen(t *testing.T) {
	a := assert.New(t)
	const size = 3*4096 + 100
	file := testFile(t, size)
	mr, err := NewMemoryRegion(file, MEM_READ_ONLY, 0, size)
	require.NoError(t, err)
	a.NoError(mr.Close())
	mr, err = NewMemoryRegion(file, MEM_READ_ONLY, 0, 0)
	if a.NoError(err) {
		a.Equal(size, mr.Size())
		a.NoError(mr.Close())
	}
	mr, err = NewMemoryRegion(file, MEM_READ_ONLY, 5000, size-5000)
	if a.NoError(err) {
		a.Equal(byte(5000%256), mr.Data()[0])
		a.NoError(mr.Close())
	}
	_, err = NewMemoryRegion(file, MEM_READ_ONLY, size-1024, 1025)
	a.Error(err)
	_, err = NewMemoryRegion(file, 0x100, 0, size)
	a.Error(err)
}

func TestMmfSharedWrites(t *testing.T) {
	a := assert.New(t)
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "rw.bin"), os.O_CREATE|os.O_RDWR, 0600)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(8192))
	first, err := NewMemoryRegion(f, MEM_READWRITE, 0, 8192)
	require.NoError(t, err)
	defer first.Close()
	second, err := NewMemoryRegion(f, MEM_READ_ONLY, 4096, 4096)
	require.NoError(t, err)
	defer second.Close()
	copy(first.Data()[4096:], []byte{1, 2, 3, 4})
	a.Equal([]byte{1, 2, 3, 4}, second.Data()[:4])
	a.NoError(first.Flush(false))
	a.NoError(first.Flush(true))
}

func TestMemoryRegionReader(t *testing.T) {
	a := assert.New(t)
	file := testFile(t, 4096)
	region, err := NewMemoryRegion(file, MEM_READ_ONLY, 0, 0)
	require.NoError(t, err)
	defer region.Close()
	data, err := io.ReadAll(NewMemoryRegionReader(region))
	a.NoError(err)
	a.Len(data, 4096)
	a.Equal(byte(255), data[255])
}

func TestMemoryRegionDoubleClose(t *testing.T) {
	file := testFile(t, 4096)
	region, err := NewMemoryRegion(file, MEM_READ_ONLY, 0, 0)
	require.NoError(t, err)
	assert.NoError(t, region.Close())
	assert.NoError(t, region.Close())
	assert.Nil(t, region.Data())
}
