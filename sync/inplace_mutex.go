// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"time"
	"unsafe"
)

const (
	// InplaceMutexSize is the number of bytes an InplaceMutex occupies in shared memory.
	InplaceMutexSize = int(unsafe.Sizeof(uint32(0)))
)

// InplaceMutex is a mutex, which can be placed into a shared memory region.
// It has three states: unlocked, locked without waiters and locked with waiters.
// Waiting processes sleep on a futex until the owner unlocks the cell.
type InplaceMutex struct {
	lwm *lwMutex
}

// NewInplaceMutex creates a mutex object on the given memory location.
//
//	ptr - memory location for the mutex. It must be 4-byte aligned.
func NewInplaceMutex(ptr unsafe.Pointer) *InplaceMutex {
	return &InplaceMutex{lwm: newLightweightMutex(ptr, futexWaiter{addr: ptr})}
}

// Init writes initial value into mutex's memory location.
// It must be called once by the creator of the memory, before any other process uses it.
func (m *InplaceMutex) Init() {
	m.lwm.init()
}

// Lock locks the mutex. It panics on an error.
func (m *InplaceMutex) Lock() {
	m.lwm.lock()
}

// TryLock tries to lock the mutex. Returns true, if it was locked.
func (m *InplaceMutex) TryLock() bool {
	return m.lwm.tryLock()
}

// LockTimeout tries to lock the mutex, waiting for not more, than timeout.
func (m *InplaceMutex) LockTimeout(timeout time.Duration) bool {
	return m.lwm.lockTimeout(timeout)
}

// Unlock releases the mutex. It panics on an error, or if the mutex is not locked.
func (m *InplaceMutex) Unlock() {
	m.lwm.unlock()
}
