// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package common

import (
	"time"

	"golang.org/x/sys/unix"
)

// TimeoutToTimeSpec converts relative timeout into a timespec.
// It returns nil for negative timeouts, which means 'wait forever'.
func TimeoutToTimeSpec(timeout time.Duration) *unix.Timespec {
	if timeout >= 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		return &ts
	}
	return nil
}
