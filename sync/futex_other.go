// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build !linux

package sync

import (
	"time"
	"unsafe"

	shmq "github.com/nxgtw/go-shmq"
)

// FUTEX_PRIVATE_FLAG is not used on this platform.
const FUTEX_PRIVATE_FLAG = 0

// FutexWait is not supported on this platform.
func FutexWait(addr unsafe.Pointer, value uint32, timeout time.Duration, flags int32) error {
	return shmq.ErrNotSupported
}

// FutexWake is not supported on this platform.
func FutexWake(addr unsafe.Pointer, count uint32, flags int32) (int, error) {
	return 0, shmq.ErrNotSupported
}

func isSpuriousWake(err error) bool {
	return false
}
