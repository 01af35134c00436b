// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mq

import (
	"context"
	"sync/atomic"
	"time"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/internal/common"
	"github.com/nxgtw/go-shmq/ring"
	ipc_sync "github.com/nxgtw/go-shmq/sync"

	"github.com/pkg/errors"
)

// pollInterval bounds a single futex wait, so that blocked operations
// notice a detached arena or a cancelled context.
const pollInterval = 50 * time.Millisecond

func checkDataLen(n int) error {
	if n < shmq.MinDataLen || n > shmq.MaxDataLen {
		return shmq.Errorf(shmq.ErrInvalidDataLength, "message length must be in [%d, %d], got %d",
			shmq.MinDataLen, shmq.MaxDataLen, n)
	}
	return nil
}

// Send appends a message to the queue, waiting until there is enough space for it.
func (a *Arena) Send(h Handle, data []byte) error {
	return a.SendTimeout(h, data, -1)
}

// SendTimeout appends a message to the queue, waiting for not longer, than timeout.
// Negative timeout means infinite waiting, zero timeout means no waiting at all.
// If the message was not sent in time, the returned error matches shmq.ErrTimeout.
func (a *Arena) SendTimeout(h Handle, data []byte, timeout time.Duration) error {
	return a.send(context.Background(), h, data, timeout)
}

// SendContext is like SendTimeout, but the time limit is taken from the context deadline.
// A cancelled context interrupts the waiting with an error, which matches shmq.ErrTimeout.
func (a *Arena) SendContext(ctx context.Context, h Handle, data []byte) error {
	timeout, err := contextTimeout(ctx)
	if err != nil {
		return err
	}
	return a.send(ctx, h, data, timeout)
}

func (a *Arena) send(ctx context.Context, h Handle, data []byte, timeout time.Duration) error {
	if err := checkDataLen(len(data)); err != nil {
		return err
	}
	if err := a.enter(); err != nil {
		return err
	}
	defer a.leave()
	q, err := a.openedQueue(h)
	if err != nil {
		return err
	}
	deadline := common.Deadline(timeout)
	if err = a.acquire(ctx, q.slots, 1, deadline); err != nil {
		return errors.Wrap(err, "queue has too many messages")
	}
	frameSize := uint32(ring.FrameSize(len(data)))
	if err = a.acquire(ctx, q.freeSpace, frameSize, deadline); err != nil {
		q.slots.Signal(1)
		return errors.Wrap(err, "queue buffer is full")
	}
	if err = a.lockQueue(ctx, q.lock, deadline); err != nil {
		q.freeSpace.Signal(frameSize)
		q.slots.Signal(1)
		return err
	}
	q.ring.WriteFrame(data)
	atomic.AddUint64(&q.desc.sent, 1)
	q.lock.Unlock()
	q.filled.Signal(1)
	return nil
}

// Recv removes the oldest message from the queue and copies it into buf,
// waiting until there is a message. It returns the length of the message.
// If buf can not hold the message, *shmq.BufferTooSmallError is returned,
// and the message stays at the head of the queue.
func (a *Arena) Recv(h Handle, buf []byte) (int, error) {
	return a.RecvTimeout(h, buf, -1)
}

// RecvTimeout is like Recv, but waits for not longer, than timeout.
// Negative timeout means infinite waiting, zero timeout means no waiting at all.
// If there was no message in time, the returned error matches shmq.ErrTimeout.
func (a *Arena) RecvTimeout(h Handle, buf []byte, timeout time.Duration) (int, error) {
	return a.recv(context.Background(), h, buf, timeout)
}

// RecvContext is like RecvTimeout, but the time limit is taken from the context deadline.
// A cancelled context interrupts the waiting with an error, which matches shmq.ErrTimeout.
func (a *Arena) RecvContext(ctx context.Context, h Handle, buf []byte) (int, error) {
	timeout, err := contextTimeout(ctx)
	if err != nil {
		return 0, err
	}
	return a.recv(ctx, h, buf, timeout)
}

func (a *Arena) recv(ctx context.Context, h Handle, buf []byte, timeout time.Duration) (int, error) {
	if err := a.enter(); err != nil {
		return 0, err
	}
	defer a.leave()
	q, err := a.openedQueue(h)
	if err != nil {
		return 0, err
	}
	deadline := common.Deadline(timeout)
	if err = a.acquire(ctx, q.filled, 1, deadline); err != nil {
		return 0, errors.Wrap(err, "queue is empty")
	}
	if err = a.lockQueue(ctx, q.lock, deadline); err != nil {
		q.filled.Signal(1)
		return 0, err
	}
	n, err := q.ring.ReadFrame(buf)
	if err != nil {
		q.lock.Unlock()
		q.filled.Signal(1)
		return 0, err
	}
	atomic.AddUint64(&q.desc.received, 1)
	q.lock.Unlock()
	q.freeSpace.Signal(uint32(ring.FrameSize(n)))
	q.slots.Signal(1)
	return n, nil
}

// Purge drops all the messages, which are ready to be received, and returns their number.
func (a *Arena) Purge(h Handle) (int, error) {
	if err := a.enter(); err != nil {
		return 0, err
	}
	defer a.leave()
	q, err := a.openedQueue(h)
	if err != nil {
		return 0, err
	}
	q.lock.Lock()
	var dropped int
	var freed uint32
	for q.filled.TryWait(1) {
		freed += uint32(ring.FrameSize(q.ring.Discard()))
		dropped++
	}
	q.lock.Unlock()
	q.freeSpace.Signal(freed)
	q.slots.Signal(uint32(dropped))
	return dropped, nil
}

// openedQueue must be called between enter and leave.
func (a *Arena) openedQueue(h Handle) (*queue, error) {
	d, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	return a.newQueue(h.slot(), d), nil
}

// acquire takes n units of the semaphore before the deadline.
func (a *Arena) acquire(ctx context.Context, sem *ipc_sync.InplaceSemaphore, n uint32, deadline time.Time) error {
	return a.poll(ctx, deadline, func(timeout time.Duration) error {
		return sem.Wait(n, timeout)
	})
}

// lockQueue locks a queue cursor lock before the deadline.
func (a *Arena) lockQueue(ctx context.Context, l ipc_sync.TimedIPCLocker, deadline time.Time) error {
	return a.poll(ctx, deadline, func(timeout time.Duration) error {
		if l.LockTimeout(timeout) {
			return nil
		}
		return shmq.Errorf(shmq.ErrTimeout, "queue lock is busy")
	})
}

// poll calls try with timeouts not longer, than pollInterval, until it succeeds,
// fails with a non-timeout error, or the deadline passes.
// Between the attempts it checks whether the arena was detached, or ctx was cancelled.
func (a *Arena) poll(ctx context.Context, deadline time.Time, try func(timeout time.Duration) error) error {
	for {
		if a.detached.Load() {
			return errDetached
		}
		if err := ctx.Err(); err != nil {
			return shmq.Wrap(err, shmq.ErrTimeout, "operation cancelled")
		}
		timeout := common.Remaining(deadline)
		last := timeout >= 0 && timeout <= pollInterval
		if !last {
			timeout = pollInterval
		}
		err := try(timeout)
		if err == nil || last || !shmq.Is(err, shmq.ErrTimeout) {
			return err
		}
	}
}

// contextTimeout converts a context deadline into a timeout. No deadline means infinite waiting.
func contextTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, shmq.Wrap(err, shmq.ErrTimeout, "context is done")
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1, nil
	}
	if timeout := time.Until(deadline); timeout > 0 {
		return timeout, nil
	}
	return 0, nil
}
