// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mq

import (
	"bytes"
	"unsafe"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/internal/allocator"
	"github.com/nxgtw/go-shmq/internal/array"
	ipc_sync "github.com/nxgtw/go-shmq/sync"
)

const (
	// PageSize is the granule of queue buffer allocation.
	PageSize = 4096

	layoutVersion = uint32(1)

	slotFree = uint32(0)
	slotUsed = uint32(1)
)

var (
	arenaMagic = [8]byte{'S', 'H', 'M', 'Q', 'A', 'R', 'N', 0}
)

const (
	headerSize     = int(unsafe.Sizeof(arenaHeader{}))
	descriptorSize = int(unsafe.Sizeof(descriptor{}))
)

// arenaHeader is placed at the beginning of the arena.
type arenaHeader struct {
	magic      [8]byte  // 0x00
	version    uint32   // 0x08
	lock       uint32   // 0x0C: arena lock cell
	queueCount uint32   // 0x10
	maxQueues  uint32   // 0x14
	maxMsgs    uint32   // 0x18: per-queue message limit
	attached   uint32   // 0x1C: number of connected processes
	size       uint64   // 0x20: arena size in bytes
	tableOff   uint64   // 0x28
	slotMapOff uint64   // 0x30
	pageMapOff uint64   // 0x38
	heapOff    uint64   // 0x40
	heapPages  uint64   // 0x48
	created    int64    // 0x50: unix nanoseconds
	instance   [16]byte // 0x58
	reserved   [24]byte // 0x68-0x7F
}

// descriptor is a queue directory entry.
type descriptor struct {
	state      uint32                                    // 0x00: slotFree or slotUsed
	generation uint32                                    // 0x04: incremented each time the slot is taken
	refCount   uint32                                    // 0x08
	capacity   uint32                                    // 0x0C: buffer size in bytes
	firstPage  uint32                                    // 0x10: index of the first buffer page
	nameLen    uint32                                    // 0x14
	write      uint32                                    // 0x18
	read       uint32                                    // 0x1C
	freeSpace  [ipc_sync.InplaceSemaphoreSize / 4]uint32 // 0x20: semaphore, free bytes
	filled     [ipc_sync.InplaceSemaphoreSize / 4]uint32 // 0x28: semaphore, frames ready to be read
	slots      [ipc_sync.InplaceSemaphoreSize / 4]uint32 // 0x30: semaphore, free message slots
	cursorLock [ipc_sync.InplaceMutexSize / 4]uint32     // 0x38
	pad        uint32                                    // 0x3C
	sent       uint64                                    // 0x40
	received   uint64                                    // 0x48
	name       [shmq.MaxNameLen]byte                     // 0x50
}

// offsets of in-place synchronization cells within a descriptor.
const (
	freeSpaceOff  = unsafe.Offsetof(descriptor{}.freeSpace)
	filledOff     = unsafe.Offsetof(descriptor{}.filled)
	slotsOff      = unsafe.Offsetof(descriptor{}.slots)
	cursorLockOff = unsafe.Offsetof(descriptor{}.cursorLock)
)

func (d *descriptor) queueName() string {
	return string(d.name[:d.nameLen])
}

func (d *descriptor) hasName(name string) bool {
	return int(d.nameLen) == len(name) && bytes.Equal(d.name[:d.nameLen], []byte(name))
}

func (d *descriptor) setName(name string) {
	d.name = [shmq.MaxNameLen]byte{}
	d.nameLen = uint32(copy(d.name[:], name))
}

// layout describes where arena parts are placed.
type layout struct {
	size       int
	maxQueues  int
	tableOff   int
	slotMapOff int
	pageMapOff int
	heapOff    int
	heapPages  int
}

// calcLayout places arena parts for the given size and number of queues.
// The page bitmap is sized for the largest possible heap, so the heap itself
// starts at the first page boundary after all the metadata.
func calcLayout(size, maxQueues int) layout {
	l := layout{size: size, maxQueues: maxQueues}
	l.tableOff = alignUp(headerSize, 8)
	l.slotMapOff = l.tableOff + array.CalcTableSize(maxQueues, descriptorSize)
	l.pageMapOff = l.slotMapOff + array.BitmapSize(maxQueues)
	maxPages := size / PageSize
	l.heapOff = alignUp(l.pageMapOff+array.BitmapSize(maxPages), PageSize)
	if l.heapOff < size {
		l.heapPages = (size - l.heapOff) / PageSize
	}
	return l
}

func alignUp(value, align int) int {
	return (value + align - 1) / align * align
}

// views are typed accessors into mapped arena memory.
type views struct {
	hdr     *arenaHeader
	table   *array.Table
	slotMap *array.Bitmap
	pageMap *array.Bitmap
	heap    []byte
}

func newViews(data []byte, l layout) (*views, error) {
	table, err := array.NewTable(data[l.tableOff:l.slotMapOff], l.maxQueues, descriptorSize)
	if err != nil {
		return nil, err
	}
	return &views{
		hdr:     allocator.ObjectAt[arenaHeader](data, 0),
		table:   table,
		slotMap: array.NewBitmap(data[l.slotMapOff:l.pageMapOff], l.maxQueues),
		pageMap: array.NewBitmap(data[l.pageMapOff:l.heapOff], l.heapPages),
		heap:    data[l.heapOff : l.heapOff+l.heapPages*PageSize],
	}, nil
}

func (v *views) descriptor(slot int) *descriptor {
	return (*descriptor)(v.table.Pointer(slot))
}

// cell returns a checked pointer to a synchronization cell of the descriptor in the given slot.
func (v *views) cell(slot int, off uintptr) unsafe.Pointer {
	return unsafe.Pointer(allocator.Uint32At(v.table.At(slot), int(off)))
}

func (v *views) buffer(d *descriptor) []byte {
	off := int(d.firstPage) * PageSize
	return v.heap[off : off+int(d.capacity) : off+int(d.capacity)]
}

// layoutFromHeader restores the layout of an existing arena.
func layoutFromHeader(hdr *arenaHeader) layout {
	return layout{
		size:       int(hdr.size),
		maxQueues:  int(hdr.maxQueues),
		tableOff:   int(hdr.tableOff),
		slotMapOff: int(hdr.slotMapOff),
		pageMapOff: int(hdr.pageMapOff),
		heapOff:    int(hdr.heapOff),
		heapPages:  int(hdr.heapPages),
	}
}
