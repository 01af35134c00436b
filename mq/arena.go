// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mq

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/config"
	"github.com/nxgtw/go-shmq/internal/allocator"
	"github.com/nxgtw/go-shmq/internal/helper"
	"github.com/nxgtw/go-shmq/mmf"
	"github.com/nxgtw/go-shmq/shm"
	ipc_sync "github.com/nxgtw/go-shmq/sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// this is to ensure, that Arena can be destroyed by generic code.
var (
	_ shmq.Destroyer = (*Arena)(nil)
)

var (
	errDetached = shmq.Errorf(shmq.ErrResource, "arena is detached")
)

// Arena is an attachment of the current process to a shared memory arena.
// It is safe for concurrent use by multiple goroutines.
type Arena struct {
	name   string
	region *mmf.MemoryRegion
	v      *views
	lock   *ipc_sync.InplaceMutex
	owner  bool
	log    *zap.Logger

	// ops is read-locked by every operation touching mapped memory.
	ops         sync.RWMutex
	detached    atomic.Bool
	detachOnce  sync.Once
	detachErr   error
	destroyOnce sync.Once
	destroyErr  error
}

// Info describes the arena.
type Info struct {
	Name           string
	ID             uuid.UUID
	Created        time.Time
	Size           int
	MaxQueues      int
	MaxMsgsInQueue int
	QueueCount     int
	Attached       int
	HeapPages      int
	FreePages      int
}

// Init creates and initializes a new arena described by cfg. The calling process becomes its owner,
// and must call Destroy once the arena is no longer needed.
// An existing object with the same name is considered a leftover of a crashed owner and is removed.
func Init(cfg *config.Config, opts ...Option) (*Arena, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		return nil, shmq.Errorf(shmq.ErrConfig, "config is missing")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size := cfg.SizeBytes()
	l := calcLayout(size, cfg.MaxQueues)
	if minPages := shmq.MinQueueSizeKB * shmq.KB / PageSize; l.heapPages < minPages {
		return nil, shmq.Errorf(shmq.ErrConfig,
			"%d KB arena has no room for a queue after a directory of %d entries", cfg.SizeKB, cfg.MaxQueues)
	}
	if exists, _ := shm.MemoryObjectExists(cfg.Name); exists {
		o.log.Warn("removing stale arena", zap.String("name", cfg.Name))
		if err := shm.DestroyMemoryObject(cfg.Name); err != nil {
			return nil, shmq.Wrap(err, shmq.ErrResource, "failed to remove stale arena")
		}
	}
	region, _, err := helper.CreateWritableRegion(cfg.Name, os.O_CREATE|os.O_EXCL, o.perm, size)
	if err != nil {
		return nil, shmq.Wrap(err, shmq.ErrResource, "failed to create arena")
	}
	v, err := newViews(region.Data(), l)
	if err != nil {
		region.Close()
		shm.DestroyMemoryObject(cfg.Name)
		return nil, shmq.Wrap(err, shmq.ErrResource, "failed to build arena layout")
	}
	hdr := v.hdr
	hdr.version = layoutVersion
	hdr.maxQueues = uint32(cfg.MaxQueues)
	hdr.maxMsgs = uint32(cfg.MaxMsgsInQueue)
	hdr.size = uint64(size)
	hdr.tableOff = uint64(l.tableOff)
	hdr.slotMapOff = uint64(l.slotMapOff)
	hdr.pageMapOff = uint64(l.pageMapOff)
	hdr.heapOff = uint64(l.heapOff)
	hdr.heapPages = uint64(l.heapPages)
	hdr.created = time.Now().UnixNano()
	hdr.instance = uuid.New()
	v.slotMap.Reset()
	v.pageMap.Reset()
	a := newArena(cfg.Name, region, v, true, o.log)
	a.lock.Init()
	// magic goes last: Connect does not accept partially initialized arenas.
	hdr.magic = arenaMagic
	a.log.Info("arena created",
		zap.String("name", cfg.Name),
		zap.Int("size", size),
		zap.Int("max_queues", cfg.MaxQueues),
		zap.Int("max_msgs_in_queue", cfg.MaxMsgsInQueue),
		zap.Int("heap_pages", l.heapPages),
		zap.Stringer("id", uuid.UUID(hdr.instance)))
	return a, nil
}

// Connect attaches the calling process to an existing arena.
// It returns an error, which matches shmq.ErrNotFound, if there is no arena with the name.
func Connect(name string, opts ...Option) (*Arena, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	region, err := helper.OpenWritableRegion(name, headerSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, shmq.Wrap(err, shmq.ErrNotFound, "arena "+name)
		}
		return nil, shmq.Wrap(err, shmq.ErrResource, "failed to open arena")
	}
	data := region.Data()
	hdr := allocator.ObjectAt[arenaHeader](data, 0)
	if hdr.magic != arenaMagic || hdr.version != layoutVersion {
		region.Close()
		return nil, shmq.Errorf(shmq.ErrResource, "%q is not an initialized arena", name)
	}
	l := layoutFromHeader(hdr)
	if l != calcLayout(len(data), l.maxQueues) {
		region.Close()
		return nil, shmq.Errorf(shmq.ErrResource, "arena %q has inconsistent layout", name)
	}
	v, err := newViews(data, l)
	if err != nil {
		region.Close()
		return nil, shmq.Wrap(err, shmq.ErrResource, "failed to build arena layout")
	}
	a := newArena(name, region, v, false, o.log)
	attached := atomic.AddUint32(&hdr.attached, 1)
	a.log.Info("attached to arena", zap.String("name", name), zap.Uint32("attached", attached))
	return a, nil
}

// DestroyArena removes the arena object with the given name.
// Processes, which are still attached, keep their mappings.
func DestroyArena(name string) error {
	if err := shm.DestroyMemoryObject(name); err != nil {
		return shmq.Wrap(err, shmq.ErrResource, "failed to destroy arena")
	}
	return nil
}

func newArena(name string, region *mmf.MemoryRegion, v *views, owner bool, log *zap.Logger) *Arena {
	return &Arena{
		name:   name,
		region: region,
		v:      v,
		lock:   ipc_sync.NewInplaceMutex(unsafe.Pointer(&v.hdr.lock)),
		owner:  owner,
		log:    log.With(zap.String("arena", name)),
	}
}

// Name returns arena name.
func (a *Arena) Name() string {
	return a.name
}

// Owner returns true, if the arena was created by this attachment.
func (a *Arena) Owner() bool {
	return a.owner
}

// Info returns current arena parameters and usage.
func (a *Arena) Info() (Info, error) {
	if err := a.enter(); err != nil {
		return Info{}, err
	}
	defer a.leave()
	a.lock.Lock()
	defer a.lock.Unlock()
	hdr := a.v.hdr
	return Info{
		Name:           a.name,
		ID:             uuid.UUID(hdr.instance),
		Created:        time.Unix(0, hdr.created),
		Size:           int(hdr.size),
		MaxQueues:      int(hdr.maxQueues),
		MaxMsgsInQueue: int(hdr.maxMsgs),
		QueueCount:     int(hdr.queueCount),
		Attached:       int(atomic.LoadUint32(&hdr.attached)),
		HeapPages:      int(hdr.heapPages),
		FreePages:      a.v.pageMap.Len() - a.v.pageMap.Count(),
	}, nil
}

// Disconnect detaches the process from the arena. Other attachments are not affected.
// The arena object itself is not removed. It is safe to call Disconnect several times.
// Operations blocked on this attachment return an error, which matches shmq.ErrResource,
// and Disconnect waits for them to leave the mapped memory before unmapping it.
func (a *Arena) Disconnect() error {
	a.detachOnce.Do(func() {
		a.detached.Store(true)
		a.ops.Lock()
		defer a.ops.Unlock()
		if !a.owner {
			decrementFloor(&a.v.hdr.attached)
		}
		a.detachErr = a.region.Close()
		a.log.Info("detached from arena")
	})
	return a.detachErr
}

// enter registers an operation on mapped memory. Each successful call must be paired with leave.
func (a *Arena) enter() error {
	a.ops.RLock()
	if a.detached.Load() {
		a.ops.RUnlock()
		return errDetached
	}
	return nil
}

func (a *Arena) leave() {
	a.ops.RUnlock()
}

// Destroy unmaps and removes the arena. Only the owner may destroy it.
// Attached processes keep their mappings, but the arena can not be found by name anymore.
// Repeated calls return the result of the first one.
func (a *Arena) Destroy() error {
	if !a.owner {
		return shmq.Errorf(shmq.ErrResource, "arena %q is not owned by this process", a.name)
	}
	a.destroyOnce.Do(func() {
		a.destroyErr = a.destroy()
	})
	return a.destroyErr
}

func (a *Arena) destroy() error {
	if a.enter() == nil {
		if attached := atomic.LoadUint32(&a.v.hdr.attached); attached > 0 {
			a.log.Warn("destroying arena with attached processes", zap.Uint32("attached", attached))
		}
		a.leave()
	}
	if err := a.Disconnect(); err != nil {
		return shmq.Wrap(err, shmq.ErrResource, "failed to unmap arena")
	}
	if err := DestroyArena(a.name); err != nil {
		return err
	}
	a.log.Info("arena destroyed")
	return nil
}

// Flush writes arena memory to the backing object.
func (a *Arena) Flush() error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.leave()
	return shmq.Wrap(a.region.Flush(false), shmq.ErrResource, "failed to flush arena")
}

func decrementFloor(ptr *uint32) uint32 {
	for {
		old := atomic.LoadUint32(ptr)
		if old == 0 {
			return 0
		}
		if atomic.CompareAndSwapUint32(ptr, old, old-1) {
			return old - 1
		}
	}
}
