// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package mq implements named FIFO message queues, which live in a single shared memory arena.
//
// One process creates the arena with Init and owns its lifetime. Other processes
// attach with Connect. Any attached process can create and remove queues by name,
// open them to get a Handle, and send and receive messages with it.
//
// The arena memory is laid out as follows:
//
//	| header | queue directory | slot bitmap | page bitmap | padding | buffer pages |
//
// The directory is a table of queue descriptors. Each queue owns a contiguous run of
// 4KB buffer pages, used as a circular buffer of length-prefixed frames.
// Directory changes are serialized with the arena lock. Messages are transferred
// under the queue's own lock and are accounted with three semaphores:
// free bytes, filled frames and free message slots.
package mq
