// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package shmq provides named FIFO message queues hosted inside a single
// shared memory region (an arena), so that unrelated processes on one host
// can exchange byte messages without a broker.
//
// Subpackages:
//	mq     - arena lifecycle, the queue directory and send/receive.
//	ring   - length-prefixed frame codec over a circular buffer.
//	sync   - futex-based mutexes and counting semaphores placed in shared memory.
//	shm    - shared memory objects.
//	mmf    - memory mappings.
//	config - arena configuration loading.
//	metrics - prometheus collector for an attached arena.
// The package itself holds the error kinds and limits shared by all of them.
package shmq
