// Copyright 2015 Aleksandr Demakin. All rights reserved.

package sync

import (
	"sync"
	"time"
)

// this is to ensure, that all implementations of ipc mutex
// satisfy the same minimal interface.
var (
	_ TimedIPCLocker = (*InplaceMutex)(nil)
)

// TimedIPCLocker is a minimal interface, which must be satisfied by any in-place lock.
// Its lock operation can be limited with duration.
type TimedIPCLocker interface {
	sync.Locker
	TryLock() bool
	// LockTimeout tries to lock the locker, waiting for not more, than timeout
	LockTimeout(timeout time.Duration) bool
}

// waitWaker is an object, which implements wake/wait semantics.
type waitWaker interface {
	wake(count uint32) (int, error)
	wait(value uint32, timeout time.Duration) error
}
