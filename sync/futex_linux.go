// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package sync

import (
	"os"
	"syscall"
	"time"
	"unsafe"

	"github.com/nxgtw/go-shmq/internal/common"

	"golang.org/x/sys/unix"
)

const (
	cFUTEX_WAIT = 0
	cFUTEX_WAKE = 1

	// FUTEX_PRIVATE_FLAG can be used for futexes, which are not shared between processes.
	FUTEX_PRIVATE_FLAG = 128
)

// FutexWait checks if the the value at addr equals 'value'.
// If it doesn't, FutexWait returns EAGAIN (wrapped in *os.SyscallError).
// Otherwise, it waits for the FutexWake call on the same address for not longer, than timeout.
// Negative timeout means infinite waiting. On timeout a *common.TimeoutError is returned.
func FutexWait(addr unsafe.Pointer, value uint32, timeout time.Duration, flags int32) error {
	var ptr unsafe.Pointer
	if ts := common.TimeoutToTimeSpec(timeout); ts != nil {
		ptr = unsafe.Pointer(ts)
	}
	_, err := futex(addr, cFUTEX_WAIT|flags, value, ptr)
	if err != nil && common.SyscallErrHasCode(err, unix.ETIMEDOUT) {
		return common.NewTimeoutError("FUTEX_WAIT")
	}
	return err
}

// FutexWake wakes count threads waiting on the futex.
// It returns the number of woken threads.
func FutexWake(addr unsafe.Pointer, count uint32, flags int32) (int, error) {
	woken, err := futex(addr, cFUTEX_WAKE|flags, count, nil)
	return int(woken), err
}

func futex(addr unsafe.Pointer, op int32, val uint32, ts unsafe.Pointer) (int32, error) {
	r1, _, err := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(addr),
		uintptr(op),
		uintptr(val),
		uintptr(ts),
		0,
		0)
	if err != syscall.Errno(0) {
		return 0, os.NewSyscallError("FUTEX", err)
	}
	return int32(r1), nil
}

// isSpuriousWake returns true, if a futex wait returned without an error condition,
// which must be reported to the caller.
func isSpuriousWake(err error) bool {
	return common.SyscallErrHasCode(err, unix.EAGAIN) || common.IsInterruptedSyscallErr(err)
}
