// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shmq

// message length limits, bytes.
const (
	MinDataLen = 1
	MaxDataLen = 4096
)

// queue buffer size limits, KB. A queue size must be a multiple of QueueSizeStepKB.
const (
	MinQueueSizeKB  = 16
	MaxQueueSizeKB  = 128
	QueueSizeStepKB = 4
)

// arena size limits, KB. The size must be a power of two.
const (
	MinShmemSizeKB = 512
	MaxShmemSizeKB = 8192
)

const (
	// MaxNameLen is the max length of a queue or an arena name.
	MaxNameLen = 128
	// DefaultConfigFile is the config file name used when none is given.
	DefaultConfigFile = "mf.config"
	// KB is the unit of all size settings.
	KB = 1024
)

// Destroyer is an object which can be permanently removed.
type Destroyer interface {
	Destroy() error
}
