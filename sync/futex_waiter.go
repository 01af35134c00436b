// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"time"
	"unsafe"
)

// futexWaiter implements waitWaker with futex calls on a shared memory cell.
type futexWaiter struct {
	addr unsafe.Pointer
}

func (fw futexWaiter) wait(value uint32, timeout time.Duration) error {
	return FutexWait(fw.addr, value, timeout, 0)
}

func (fw futexWaiter) wake(count uint32) (int, error) {
	return FutexWake(fw.addr, count, 0)
}
