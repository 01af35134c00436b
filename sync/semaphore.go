// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/internal/common"
)

const (
	// InplaceSemaphoreSize is the number of bytes an InplaceSemaphore occupies in shared memory:
	// a value cell followed by a waiters counter.
	InplaceSemaphoreSize = 8

	cFutexWakeAll = math.MaxInt32
)

// InplaceSemaphore is a counting semaphore, which can be placed into a shared memory region.
// Unlike a classic semaphore, it can acquire and release several units at once,
// which allows to use it for byte accounting.
type InplaceSemaphore struct {
	value   *uint32
	waiters *uint32
}

// NewInplaceSemaphore creates a semaphore object on the given memory location.
//
//	ptr - memory location for the semaphore. It must be 4-byte aligned
//	and have at least InplaceSemaphoreSize bytes.
func NewInplaceSemaphore(ptr unsafe.Pointer) *InplaceSemaphore {
	return &InplaceSemaphore{
		value:   (*uint32)(ptr),
		waiters: (*uint32)(unsafe.Add(ptr, 4)),
	}
}

// Init sets the initial value of the semaphore and resets its waiters counter.
func (s *InplaceSemaphore) Init(value uint32) {
	atomic.StoreUint32(s.waiters, 0)
	atomic.StoreUint32(s.value, value)
}

// Value returns current number of available units.
func (s *InplaceSemaphore) Value() uint32 {
	return atomic.LoadUint32(s.value)
}

// TryWait acquires n units, if they are available right now.
func (s *InplaceSemaphore) TryWait(n uint32) bool {
	for {
		v := atomic.LoadUint32(s.value)
		if v < n {
			return false
		}
		if atomic.CompareAndSwapUint32(s.value, v, v-n) {
			return true
		}
	}
}

// Wait acquires n units as a whole. Either all n units are taken, or none.
// Negative timeout means infinite waiting, zero timeout means a single attempt.
// If the units were not acquired in time, an error, which matches shmq.ErrTimeout, is returned.
func (s *InplaceSemaphore) Wait(n uint32, timeout time.Duration) error {
	deadline := common.Deadline(timeout)
	for {
		v := atomic.LoadUint32(s.value)
		if v >= n {
			if atomic.CompareAndSwapUint32(s.value, v, v-n) {
				return nil
			}
			continue
		}
		left := common.Remaining(deadline)
		if left == 0 {
			return shmq.Errorf(shmq.ErrTimeout, "failed to acquire %d units of %d", n, v)
		}
		atomic.AddUint32(s.waiters, 1)
		err := FutexWait(unsafe.Pointer(s.value), v, left, 0)
		atomic.AddUint32(s.waiters, ^uint32(0))
		if err != nil && !isSpuriousWake(err) && !common.IsTimeoutErr(err) {
			return shmq.Wrap(err, shmq.ErrResource, "semaphore wait failed")
		}
	}
}

// Signal releases n units and wakes up the waiters.
// All the waiters are woken, as each of them may need a different number of units.
func (s *InplaceSemaphore) Signal(n uint32) {
	if n == 0 {
		return
	}
	atomic.AddUint32(s.value, n)
	if atomic.LoadUint32(s.waiters) == 0 {
		return
	}
	if _, err := FutexWake(unsafe.Pointer(s.value), cFutexWakeAll, 0); err != nil {
		panic(err)
	}
}
