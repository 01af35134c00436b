// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/nxgtw/go-shmq/internal/common"
)

const (
	cInplaceSpinCount              = 100
	cInplaceMutexUnlocked          = uint32(0)
	cInplaceMutexLockedNoWaiters   = uint32(1)
	cInplaceMutexLockedHaveWaiters = uint32(2)
)

// lwMutex is a lightweight mutex implementation operating on a uint32 memory cell.
// it tries to minimize amount of syscalls needed to do locking.
// actual sleeping must be implemented by a waitWaker object.
type lwMutex struct {
	ptr *uint32
	ww  waitWaker
}

func newLightweightMutex(ptr unsafe.Pointer, ww waitWaker) *lwMutex {
	return &lwMutex{ptr: (*uint32)(ptr), ww: ww}
}

// init writes initial value into mutex's memory location.
func (lwm *lwMutex) init() {
	atomic.StoreUint32(lwm.ptr, cInplaceMutexUnlocked)
}

func (lwm *lwMutex) lock() {
	if err := lwm.doLock(-1); err != nil {
		panic(err)
	}
}

func (lwm *lwMutex) tryLock() bool {
	return atomic.CompareAndSwapUint32(lwm.ptr, cInplaceMutexUnlocked, cInplaceMutexLockedNoWaiters)
}

func (lwm *lwMutex) lockTimeout(timeout time.Duration) bool {
	err := lwm.doLock(timeout)
	if err == nil {
		return true
	}
	if common.IsTimeoutErr(err) {
		return false
	}
	panic(err)
}

func (lwm *lwMutex) doLock(timeout time.Duration) error {
	for i := 0; i < cInplaceSpinCount; i++ {
		if lwm.tryLock() {
			return nil
		}
		runtime.Gosched()
	}
	if timeout == 0 {
		return common.NewTimeoutError("lock")
	}
	deadline := common.Deadline(timeout)
	old := atomic.LoadUint32(lwm.ptr)
	if old != cInplaceMutexLockedHaveWaiters {
		old = atomic.SwapUint32(lwm.ptr, cInplaceMutexLockedHaveWaiters)
	}
	for old != cInplaceMutexUnlocked {
		left := common.Remaining(deadline)
		if left == 0 {
			return common.NewTimeoutError("lock")
		}
		if err := lwm.ww.wait(cInplaceMutexLockedHaveWaiters, left); err != nil {
			if !isSpuriousWake(err) && !common.IsTimeoutErr(err) {
				return err
			}
		}
		old = atomic.SwapUint32(lwm.ptr, cInplaceMutexLockedHaveWaiters)
	}
	return nil
}

func (lwm *lwMutex) unlock() {
	if old := atomic.LoadUint32(lwm.ptr); old == cInplaceMutexLockedHaveWaiters {
		atomic.StoreUint32(lwm.ptr, cInplaceMutexUnlocked)
	} else {
		if old == cInplaceMutexUnlocked {
			panic("unlock of unlocked mutex")
		}
		if atomic.SwapUint32(lwm.ptr, cInplaceMutexUnlocked) == cInplaceMutexLockedNoWaiters {
			return
		}
	}
	for i := 0; i < cInplaceSpinCount; i++ {
		if atomic.LoadUint32(lwm.ptr) != cInplaceMutexUnlocked {
			if atomic.CompareAndSwapUint32(lwm.ptr, cInplaceMutexLockedNoWaiters, cInplaceMutexLockedHaveWaiters) {
				return
			}
		}
		runtime.Gosched()
	}
	if _, err := lwm.ww.wake(1); err != nil {
		panic(err)
	}
}
