// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package common contains syscall and flag helpers shared by the ipc packages.
package common

import (
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// FlagsForOpen extracts os flags from the flag, which can be passed to an open call.
func FlagsForOpen(flag int) int {
	return flag & (os.O_CREATE | os.O_EXCL)
}

// OpenOrCreate performs open or create of an object depending on the flag.
// creator is called with true to create a new object exclusively, and with false
// to open an existing one. It returns true if the object was created.
func OpenOrCreate(creator func(bool) error, flag int) (bool, error) {
	flag = FlagsForOpen(flag)
	switch flag {
	case 0:
		return false, creator(false)
	case os.O_CREATE | os.O_EXCL:
		if err := creator(true); err != nil {
			return false, err
		}
		return true, nil
	case os.O_CREATE:
		const attempts = 16
		var err error
		for attempt := 0; attempt < attempts; attempt++ {
			if err = creator(true); !os.IsExist(err) {
				return err == nil, err
			}
			if err = creator(false); !os.IsNotExist(err) {
				return false, err
			}
		}
		return false, err
	default:
		return false, errors.Errorf("unknown open flags %d", flag)
	}
}

// SyscallErrHasCode returns true, if err is an *os.SyscallError with the given errno.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		if errno, ok := sysErr.Err.(syscall.Errno); ok {
			return errno == code
		}
	}
	return false
}

// IsInterruptedSyscallErr returns true, if err is EINTR.
func IsInterruptedSyscallErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EINTR)
}

// IsTimeoutErr returns true, if the error reports a timeout.
func IsTimeoutErr(err error) bool {
	if SyscallErrHasCode(err, syscall.ETIMEDOUT) {
		return true
	}
	var te *TimeoutError
	return errors.As(err, &te)
}

// UninterruptedSyscall runs a function in a loop.
// If an error, returned by the function is EINTR, it runs it again.
func UninterruptedSyscall(f func() error) error {
	for {
		err := f()
		if !IsInterruptedSyscallErr(err) {
			return err
		}
	}
}

// TimeoutError is returned by timed wait operations.
type TimeoutError struct {
	Op string
}

// NewTimeoutError returns new timeout error for the operation.
func NewTimeoutError(op string) *TimeoutError {
	return &TimeoutError{Op: op}
}

func (e *TimeoutError) Error() string {
	return "timeout: " + e.Op
}

// Timeout is to satisfy net.Error-like interfaces.
func (e *TimeoutError) Timeout() bool {
	return true
}

// Deadline returns a deadline for the timeout. Negative timeout means no deadline.
func Deadline(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// Remaining returns time left until the deadline, or -1 if there is no deadline.
func Remaining(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return -1
	}
	left := time.Until(deadline)
	if left < 0 {
		return 0
	}
	return left
}
