// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package sync

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	shmq "github.com/nxgtw/go-shmq"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func cellMemory() unsafe.Pointer {
	mem := make([]uint64, 2)
	return unsafe.Pointer(&mem[0])
}

func TestInplaceMutexLock(t *testing.T) {
	a := assert.New(t)
	m := NewInplaceMutex(cellMemory())
	m.Init()
	m.Lock()
	a.False(m.TryLock())
	m.Unlock()
	a.True(m.TryLock())
	m.Unlock()
	a.Panics(func() {
		m.Unlock()
	})
}

func TestInplaceMutexLockTimeout(t *testing.T) {
	a := assert.New(t)
	m := NewInplaceMutex(cellMemory())
	m.Init()
	m.Lock()
	before := time.Now()
	timeout := time.Millisecond * 50
	a.False(m.LockTimeout(timeout))
	a.True(time.Since(before) >= timeout)
	a.False(m.LockTimeout(0))
	m.Unlock()
	a.True(m.LockTimeout(timeout))
	m.Unlock()
}

func TestInplaceMutexValueInc(t *testing.T) {
	a := assert.New(t)
	ptr := cellMemory()
	m := NewInplaceMutex(ptr)
	m.Init()
	const (
		workers    = 8
		increments = 10000
	)
	value := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each worker uses its own object over the same memory, like another process does.
			local := NewInplaceMutex(ptr)
			for j := 0; j < increments; j++ {
				local.Lock()
				value++
				local.Unlock()
			}
		}()
	}
	wg.Wait()
	a.Equal(workers*increments, value)
}

func TestInplaceSemaphoreTryWait(t *testing.T) {
	a := assert.New(t)
	s := NewInplaceSemaphore(cellMemory())
	s.Init(10)
	a.True(s.TryWait(4))
	a.False(s.TryWait(7))
	a.Equal(uint32(6), s.Value())
	a.True(s.TryWait(6))
	a.Equal(uint32(0), s.Value())
	s.Signal(3)
	a.Equal(uint32(3), s.Value())
}

func TestInplaceSemaphoreWaitTimeout(t *testing.T) {
	a := assert.New(t)
	s := NewInplaceSemaphore(cellMemory())
	s.Init(5)
	err := s.Wait(6, 0)
	a.True(errors.Is(err, shmq.ErrTimeout))
	before := time.Now()
	timeout := time.Millisecond * 50
	err = s.Wait(6, timeout)
	a.True(errors.Is(err, shmq.ErrTimeout))
	a.True(time.Since(before) >= timeout)
	// a failed wait must not take anything.
	a.Equal(uint32(5), s.Value())
}

func TestInplaceSemaphoreWaitSignal(t *testing.T) {
	a := assert.New(t)
	ptr := cellMemory()
	s := NewInplaceSemaphore(ptr)
	s.Init(0)
	done := make(chan error, 1)
	go func() {
		done <- NewInplaceSemaphore(ptr).Wait(100, -1)
	}()
	s.Signal(60)
	select {
	case <-done:
		t.Fatal("wait must not succeed with not enough units")
	case <-time.After(time.Millisecond * 50):
	}
	s.Signal(40)
	select {
	case err := <-done:
		a.NoError(err)
	case <-time.After(time.Second * 5):
		t.Fatal("waiter was not woken")
	}
	a.Equal(uint32(0), s.Value())
}

func TestInplaceSemaphoreProducerConsumer(t *testing.T) {
	a := assert.New(t)
	ptr := cellMemory()
	NewInplaceSemaphore(ptr).Init(0)
	const (
		producers = 4
		items     = 1000
	)
	var g errgroup.Group
	for i := 0; i < producers; i++ {
		g.Go(func() error {
			s := NewInplaceSemaphore(ptr)
			for j := 0; j < items; j++ {
				s.Signal(3)
			}
			return nil
		})
	}
	g.Go(func() error {
		s := NewInplaceSemaphore(ptr)
		for j := 0; j < producers*items; j++ {
			if err := s.Wait(3, time.Second*10); err != nil {
				return err
			}
		}
		return nil
	})
	a.NoError(g.Wait())
	a.Equal(uint32(0), NewInplaceSemaphore(ptr).Value())
}
