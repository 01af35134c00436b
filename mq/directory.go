// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mq

import (
	"fmt"
	"sync/atomic"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/ring"
	ipc_sync "github.com/nxgtw/go-shmq/sync"

	"go.uber.org/zap"
)

// Handle identifies an open queue. It packs a directory slot index and the slot generation,
// so a handle, whose queue was removed, never refers to a queue created later in the same slot.
// A zero Handle is never valid.
type Handle uint64

func newHandle(slot int, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(uint32(slot)))
}

func (h Handle) slot() int {
	return int(uint32(h))
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	return fmt.Sprintf("%d/%d", h.slot(), h.generation())
}

// QueueInfo is a snapshot of a queue state.
type QueueInfo struct {
	Name     string
	Slot     int
	Capacity int
	// Used is the number of buffer bytes occupied by frames.
	Used int
	// Frames is the number of messages ready to be received.
	Frames   int
	RefCount int
	Sent     uint64
	Received uint64
}

func checkQueueName(name string) error {
	if len(name) == 0 || len(name) >= shmq.MaxNameLen {
		return shmq.Errorf(shmq.ErrInvalidName, "queue name length must be in [1, %d), got %d", shmq.MaxNameLen, len(name))
	}
	return nil
}

func checkQueueSize(sizeKB int) error {
	if sizeKB < shmq.MinQueueSizeKB || sizeKB > shmq.MaxQueueSizeKB || sizeKB%shmq.QueueSizeStepKB != 0 {
		return shmq.Errorf(shmq.ErrCapacity, "queue size must be a multiple of %d KB in [%d, %d] KB, got %d",
			shmq.QueueSizeStepKB, shmq.MinQueueSizeKB, shmq.MaxQueueSizeKB, sizeKB)
	}
	return nil
}

// CreateQueue creates a new empty queue with a buffer of sizeKB kilobytes.
func (a *Arena) CreateQueue(name string, sizeKB int) error {
	if err := checkQueueName(name); err != nil {
		return err
	}
	if err := a.enter(); err != nil {
		return err
	}
	defer a.leave()
	a.lock.Lock()
	defer a.lock.Unlock()
	hdr := a.v.hdr
	if a.findQueue(name) >= 0 {
		return shmq.Errorf(shmq.ErrDuplicateName, "queue %q", name)
	}
	if err := checkQueueSize(sizeKB); err != nil {
		return err
	}
	if hdr.queueCount >= hdr.maxQueues {
		return shmq.Errorf(shmq.ErrDirectoryFull, "%d queues already exist", hdr.queueCount)
	}
	slot, ok := a.v.slotMap.Reserve()
	if !ok {
		return shmq.Errorf(shmq.ErrDirectoryFull, "no free directory slots")
	}
	pages := sizeKB * shmq.KB / PageSize
	first, ok := a.v.pageMap.ReserveRun(pages)
	if !ok {
		a.v.slotMap.Free(slot)
		return shmq.Errorf(shmq.ErrDirectoryFull, "no room for a %d KB buffer", sizeKB)
	}
	d := a.v.descriptor(slot)
	generation := d.generation + 1
	if generation == 0 {
		generation++
	}
	atomic.StoreUint32(&d.generation, generation)
	d.refCount = 0
	d.capacity = uint32(sizeKB * shmq.KB)
	d.firstPage = uint32(first)
	d.sent, d.received = 0, 0
	d.setName(name)
	q := a.newQueue(slot, d)
	q.ring.Reset()
	q.freeSpace.Init(uint32(q.ring.Cap() - 1))
	q.filled.Init(0)
	q.slots.Init(hdr.maxMsgs)
	q.lock.Init()
	atomic.StoreUint32(&d.state, slotUsed)
	hdr.queueCount++
	a.log.Debug("queue created",
		zap.String("queue", name),
		zap.Int("slot", slot),
		zap.Int("size_kb", sizeKB),
		zap.Int("first_page", first))
	return nil
}

// RemoveQueue removes the queue with the given name. Queues, opened by any process, can not be removed.
// Other queues and their handles are not affected.
func (a *Arena) RemoveQueue(name string) error {
	if err := checkQueueName(name); err != nil {
		return err
	}
	if err := a.enter(); err != nil {
		return err
	}
	defer a.leave()
	a.lock.Lock()
	defer a.lock.Unlock()
	slot := a.findQueue(name)
	if slot < 0 {
		return shmq.Errorf(shmq.ErrNotFound, "queue %q", name)
	}
	d := a.v.descriptor(slot)
	if refs := atomic.LoadUint32(&d.refCount); refs > 0 {
		return shmq.Errorf(shmq.ErrInUse, "queue %q is opened %d times", name, refs)
	}
	atomic.StoreUint32(&d.state, slotFree)
	a.v.pageMap.FreeRun(int(d.firstPage), int(d.capacity)/PageSize)
	a.v.slotMap.Free(slot)
	a.v.hdr.queueCount--
	a.log.Debug("queue removed", zap.String("queue", name), zap.Int("slot", slot))
	return nil
}

// OpenQueue returns a handle of the queue with the given name.
// Each successful call must be paired with CloseQueue.
func (a *Arena) OpenQueue(name string) (Handle, error) {
	if err := checkQueueName(name); err != nil {
		return 0, err
	}
	if err := a.enter(); err != nil {
		return 0, err
	}
	defer a.leave()
	a.lock.Lock()
	defer a.lock.Unlock()
	slot := a.findQueue(name)
	if slot < 0 {
		return 0, shmq.Errorf(shmq.ErrNotFound, "queue %q", name)
	}
	d := a.v.descriptor(slot)
	atomic.AddUint32(&d.refCount, 1)
	return newHandle(slot, d.generation), nil
}

// CloseQueue releases a handle, returned by OpenQueue.
func (a *Arena) CloseQueue(h Handle) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.leave()
	a.lock.Lock()
	defer a.lock.Unlock()
	d, err := a.lookup(h)
	if err != nil {
		return err
	}
	decrementFloor(&d.refCount)
	return nil
}

// Queues returns a snapshot of all existing queues ordered by directory slot.
func (a *Arena) Queues() ([]QueueInfo, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.leave()
	a.lock.Lock()
	defer a.lock.Unlock()
	var result []QueueInfo
	for slot := 0; slot < a.v.table.Len(); slot++ {
		d := a.v.descriptor(slot)
		if atomic.LoadUint32(&d.state) == slotUsed {
			result = append(result, a.queueInfo(slot, d))
		}
	}
	return result, nil
}

// Stat returns a snapshot of the queue state.
func (a *Arena) Stat(h Handle) (QueueInfo, error) {
	if err := a.enter(); err != nil {
		return QueueInfo{}, err
	}
	defer a.leave()
	d, err := a.lookup(h)
	if err != nil {
		return QueueInfo{}, err
	}
	return a.queueInfo(h.slot(), d), nil
}

func (a *Arena) queueInfo(slot int, d *descriptor) QueueInfo {
	q := a.newQueue(slot, d)
	return QueueInfo{
		Name:     d.queueName(),
		Slot:     slot,
		Capacity: int(d.capacity),
		Used:     q.ring.Used(),
		Frames:   int(q.filled.Value()),
		RefCount: int(atomic.LoadUint32(&d.refCount)),
		Sent:     atomic.LoadUint64(&d.sent),
		Received: atomic.LoadUint64(&d.received),
	}
}

// findQueue returns the slot of a queue with the given name, or -1.
// must be called under the arena lock.
func (a *Arena) findQueue(name string) int {
	for slot := 0; slot < a.v.table.Len(); slot++ {
		d := a.v.descriptor(slot)
		if d.state == slotUsed && d.hasName(name) {
			return slot
		}
	}
	return -1
}

// lookup returns a descriptor of a live queue referred by the handle.
func (a *Arena) lookup(h Handle) (*descriptor, error) {
	slot := h.slot()
	if slot < 0 || slot >= a.v.table.Len() {
		return nil, shmq.Errorf(shmq.ErrInvalidHandle, "handle %v is out of range", h)
	}
	d := a.v.descriptor(slot)
	if atomic.LoadUint32(&d.state) != slotUsed || atomic.LoadUint32(&d.generation) != h.generation() {
		return nil, shmq.Errorf(shmq.ErrInvalidHandle, "handle %v refers to a removed queue", h)
	}
	return d, nil
}

// queue binds in-place primitives of a descriptor.
type queue struct {
	desc      *descriptor
	ring      *ring.Ring
	freeSpace *ipc_sync.InplaceSemaphore
	filled    *ipc_sync.InplaceSemaphore
	slots     *ipc_sync.InplaceSemaphore
	lock      *ipc_sync.InplaceMutex
}

func (a *Arena) newQueue(slot int, d *descriptor) *queue {
	return &queue{
		desc:      d,
		ring:      ring.New(a.v.buffer(d), ring.Cursors{Write: &d.write, Read: &d.read}),
		freeSpace: ipc_sync.NewInplaceSemaphore(a.v.cell(slot, freeSpaceOff)),
		filled:    ipc_sync.NewInplaceSemaphore(a.v.cell(slot, filledOff)),
		slots:     ipc_sync.NewInplaceSemaphore(a.v.cell(slot, slotsOff)),
		lock:      ipc_sync.NewInplaceMutex(a.v.cell(slot, cursorLockOff)),
	}
}
