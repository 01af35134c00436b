// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package mq

import (
	"bytes"
	"strings"
	"testing"
	"time"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArenaName(t *testing.T) string {
	return "shmq-test-" + strings.ReplaceAll(t.Name(), "/", "-")
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Name:           testArenaName(t),
		SizeKB:         shmq.MinShmemSizeKB,
		MaxMsgsInQueue: 1000,
		MaxQueues:      8,
	}
}

func newTestArena(t *testing.T, cfg *config.Config) *Arena {
	a, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Destroy()
	})
	return a
}

func connectTestArena(t *testing.T, name string) *Arena {
	a, err := Connect(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Disconnect()
	})
	return a
}

func openTestQueue(t *testing.T, a *Arena, name string, sizeKB int) Handle {
	require.NoError(t, a.CreateQueue(name, sizeKB))
	h, err := a.OpenQueue(name)
	require.NoError(t, err)
	return h
}

func testMessage(n int, seed byte) []byte {
	result := make([]byte, n)
	for i := range result {
		result[i] = seed ^ byte(i*7)
	}
	return result
}

func TestInitConnect(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	owner := newTestArena(t, cfg)
	a.True(owner.Owner())
	client := connectTestArena(t, cfg.Name)
	a.False(client.Owner())

	ownerInfo, err := owner.Info()
	require.NoError(t, err)
	clientInfo, err := client.Info()
	require.NoError(t, err)
	a.Equal(ownerInfo.ID, clientInfo.ID)
	a.Equal(cfg.SizeBytes(), clientInfo.Size)
	a.Equal(cfg.MaxQueues, clientInfo.MaxQueues)
	a.Equal(cfg.MaxMsgsInQueue, clientInfo.MaxMsgsInQueue)
	a.Equal(1, clientInfo.Attached)
	a.Equal(clientInfo.HeapPages, clientInfo.FreePages)

	// directory changes are visible through both attachments.
	a.NoError(client.CreateQueue("q", shmq.MinQueueSizeKB))
	queues, err := owner.Queues()
	require.NoError(t, err)
	if a.Len(queues, 1) {
		a.Equal("q", queues[0].Name)
		a.Equal(shmq.MinQueueSizeKB*shmq.KB, queues[0].Capacity)
	}

	a.NoError(client.Disconnect())
	a.NoError(client.Disconnect())
	ownerInfo, err = owner.Info()
	require.NoError(t, err)
	a.Equal(0, ownerInfo.Attached)
	a.Equal(1, ownerInfo.QueueCount)
}

func TestConnectNotFound(t *testing.T) {
	_, err := Connect(testArenaName(t))
	assert.True(t, shmq.Is(err, shmq.ErrNotFound))
}

func TestInitInvalidConfig(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	cfg.SizeKB = 300
	_, err := Init(cfg)
	a.True(shmq.Is(err, shmq.ErrConfig))

	cfg = testConfig(t)
	cfg.MaxQueues = 2500
	_, err = Init(cfg)
	a.True(shmq.Is(err, shmq.ErrConfig))

	_, err = Init(nil)
	a.True(shmq.Is(err, shmq.ErrConfig))
}

func TestInitRemovesStaleArena(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	first, err := Init(cfg)
	require.NoError(t, err)
	require.NoError(t, first.CreateQueue("q", shmq.MinQueueSizeKB))
	// the first owner 'crashes' without destroying the arena.
	require.NoError(t, first.Disconnect())

	second := newTestArena(t, cfg)
	info, err := second.Info()
	require.NoError(t, err)
	a.Equal(0, info.QueueCount)
	_, err = second.OpenQueue("q")
	a.True(shmq.Is(err, shmq.ErrNotFound))
}

func TestDestroy(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	owner, err := Init(cfg)
	require.NoError(t, err)
	client, err := Connect(cfg.Name)
	require.NoError(t, err)
	a.Error(client.Destroy())

	a.NoError(owner.Destroy())
	a.NoError(owner.Destroy())
	_, err = Connect(cfg.Name)
	a.True(shmq.Is(err, shmq.ErrNotFound))

	// the client keeps its mapping after the arena is destroyed.
	a.NoError(client.CreateQueue("q", shmq.MinQueueSizeKB))
	a.NoError(client.Disconnect())
	a.True(shmq.Is(client.CreateQueue("q2", shmq.MinQueueSizeKB), shmq.ErrResource))
	_, err = client.OpenQueue("q")
	a.True(shmq.Is(err, shmq.ErrResource))
}

func TestCreateQueueErrors(t *testing.T) {
	a := assert.New(t)
	arena := newTestArena(t, testConfig(t))
	a.True(shmq.Is(arena.CreateQueue("", shmq.MinQueueSizeKB), shmq.ErrInvalidName))
	a.True(shmq.Is(arena.CreateQueue(strings.Repeat("q", shmq.MaxNameLen), shmq.MinQueueSizeKB), shmq.ErrInvalidName))
	for _, sizeKB := range []int{0, 12, 18, 132, 256} {
		a.True(shmq.Is(arena.CreateQueue("q", sizeKB), shmq.ErrCapacity), "size %d", sizeKB)
	}
	a.NoError(arena.CreateQueue("q", shmq.MaxQueueSizeKB))
	a.True(shmq.Is(arena.CreateQueue("q", shmq.MinQueueSizeKB), shmq.ErrDuplicateName))
	a.True(shmq.Is(arena.CreateQueue("q", 7), shmq.ErrDuplicateName))
	queues, err := arena.Queues()
	require.NoError(t, err)
	a.Len(queues, 1)
}

func TestDisconnectWhileBlocked(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	owner := newTestArena(t, cfg)
	require.NoError(t, owner.CreateQueue("q", shmq.MinQueueSizeKB))
	client := connectTestArena(t, cfg.Name)
	h, err := client.OpenQueue("q")
	require.NoError(t, err)
	recvErr := make(chan error, 1)
	go func() {
		_, err := client.Recv(h, make([]byte, shmq.MaxDataLen))
		recvErr <- err
	}()
	time.Sleep(time.Millisecond * 50)
	a.NoError(client.Disconnect())
	select {
	case err := <-recvErr:
		a.True(shmq.Is(err, shmq.ErrResource))
	case <-time.After(testWaitTimeout):
		t.Fatal("recv was not interrupted by disconnect")
	}
	_, err = client.Stat(h)
	a.True(shmq.Is(err, shmq.ErrResource))
	a.True(shmq.Is(client.Send(h, []byte("data")), shmq.ErrResource))

	// the queue itself stays usable for other attachments.
	oh, err := owner.OpenQueue("q")
	require.NoError(t, err)
	a.NoError(owner.SendTimeout(oh, []byte("data"), 0))
	n, err := owner.RecvTimeout(oh, make([]byte, 16), 0)
	a.NoError(err)
	a.Equal(4, n)
}

func TestDestroyWhileBlocked(t *testing.T) {
	a := assert.New(t)
	arena, err := Init(testConfig(t))
	require.NoError(t, err)
	h := openTestQueue(t, arena, "q", shmq.MinQueueSizeKB)
	recvErr := make(chan error, 1)
	go func() {
		_, err := arena.RecvTimeout(h, make([]byte, 16), time.Second*5)
		recvErr <- err
	}()
	time.Sleep(time.Millisecond * 50)
	a.NoError(arena.Destroy())
	select {
	case err := <-recvErr:
		a.True(shmq.Is(err, shmq.ErrResource))
	case <-time.After(testWaitTimeout):
		t.Fatal("recv was not interrupted by destroy")
	}
}

func TestDirectoryFull(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	cfg.MaxQueues = 3
	arena := newTestArena(t, cfg)
	for _, name := range []string{"q1", "q2", "q3"} {
		a.NoError(arena.CreateQueue(name, shmq.MinQueueSizeKB))
	}
	a.True(shmq.Is(arena.CreateQueue("q4", shmq.MinQueueSizeKB), shmq.ErrDirectoryFull))
	info, err := arena.Info()
	require.NoError(t, err)
	a.Equal(3, info.QueueCount)
	a.NoError(arena.RemoveQueue("q2"))
	a.NoError(arena.CreateQueue("q4", shmq.MinQueueSizeKB))
}

func TestHeapFull(t *testing.T) {
	a := assert.New(t)
	arena := newTestArena(t, testConfig(t))
	// 512 KB arena has 127 buffer pages: three 128 KB queues do not fit.
	a.NoError(arena.CreateQueue("q1", shmq.MaxQueueSizeKB))
	a.NoError(arena.CreateQueue("q2", shmq.MaxQueueSizeKB))
	a.NoError(arena.CreateQueue("q3", shmq.MaxQueueSizeKB))
	a.True(shmq.Is(arena.CreateQueue("q4", shmq.MaxQueueSizeKB), shmq.ErrDirectoryFull))
	a.NoError(arena.CreateQueue("q4", 124))
	a.True(shmq.Is(arena.CreateQueue("q5", shmq.MinQueueSizeKB), shmq.ErrDirectoryFull))
	info, err := arena.Info()
	require.NoError(t, err)
	a.Equal(0, info.FreePages)
	a.Equal(4, info.QueueCount)

	// freed pages are reused.
	a.NoError(arena.RemoveQueue("q2"))
	a.NoError(arena.CreateQueue("q5", 64))
	a.NoError(arena.CreateQueue("q6", 64))
}

func TestOpenRemove(t *testing.T) {
	a := assert.New(t)
	arena := newTestArena(t, testConfig(t))
	a.True(shmq.Is(arena.RemoveQueue("q"), shmq.ErrNotFound))
	_, err := arena.OpenQueue("q")
	a.True(shmq.Is(err, shmq.ErrNotFound))

	h := openTestQueue(t, arena, "q", shmq.MinQueueSizeKB)
	h2, err := arena.OpenQueue("q")
	require.NoError(t, err)
	a.Equal(h, h2)
	st, err := arena.Stat(h)
	require.NoError(t, err)
	a.Equal(2, st.RefCount)

	a.True(shmq.Is(arena.RemoveQueue("q"), shmq.ErrInUse))
	a.NoError(arena.CloseQueue(h))
	a.True(shmq.Is(arena.RemoveQueue("q"), shmq.ErrInUse))
	a.NoError(arena.CloseQueue(h2))
	// refcount never goes below zero.
	a.NoError(arena.CloseQueue(h))
	st, err = arena.Stat(h)
	require.NoError(t, err)
	a.Equal(0, st.RefCount)

	a.NoError(arena.RemoveQueue("q"))
	_, err = arena.OpenQueue("q")
	a.True(shmq.Is(err, shmq.ErrNotFound))
	a.True(shmq.Is(arena.RemoveQueue("q"), shmq.ErrNotFound))
}

func TestStaleHandle(t *testing.T) {
	a := assert.New(t)
	arena := newTestArena(t, testConfig(t))
	h := openTestQueue(t, arena, "q", shmq.MinQueueSizeKB)
	a.NoError(arena.CloseQueue(h))
	a.NoError(arena.RemoveQueue("q"))

	a.True(shmq.Is(arena.Send(h, []byte("data")), shmq.ErrInvalidHandle))
	a.True(shmq.Is(arena.CloseQueue(h), shmq.ErrInvalidHandle))

	// the same slot is reused with a new generation.
	h2 := openTestQueue(t, arena, "q", shmq.MinQueueSizeKB)
	a.Equal(h.slot(), h2.slot())
	a.NotEqual(h, h2)
	a.True(shmq.Is(arena.Send(h, []byte("data")), shmq.ErrInvalidHandle))
	_, err := arena.Recv(h, make([]byte, 16))
	a.True(shmq.Is(err, shmq.ErrInvalidHandle))
	a.NoError(arena.Send(h2, []byte("data")))

	a.True(shmq.Is(arena.CloseQueue(Handle(0)), shmq.ErrInvalidHandle))
	a.True(shmq.Is(arena.CloseQueue(newHandle(100, 1)), shmq.ErrInvalidHandle))
	_, err = arena.Stat(newHandle(1, 1))
	a.True(shmq.Is(err, shmq.ErrInvalidHandle))
}

func TestHandlesSurviveRemoval(t *testing.T) {
	a := assert.New(t)
	arena := newTestArena(t, testConfig(t))
	require.NoError(t, arena.CreateQueue("q1", shmq.MinQueueSizeKB))
	require.NoError(t, arena.CreateQueue("q2", shmq.MinQueueSizeKB))
	h3 := openTestQueue(t, arena, "q3", shmq.MinQueueSizeKB)
	require.NoError(t, arena.Send(h3, []byte("before")))

	a.NoError(arena.RemoveQueue("q1"))
	a.NoError(arena.RemoveQueue("q2"))

	require.NoError(t, arena.Send(h3, []byte("after")))
	buf := make([]byte, 16)
	for _, expected := range []string{"before", "after"} {
		n, err := arena.Recv(h3, buf)
		a.NoError(err)
		a.Equal(expected, string(buf[:n]))
	}
	h, err := arena.OpenQueue("q3")
	a.NoError(err)
	a.Equal(h3, h)
}

func TestPrintAndDump(t *testing.T) {
	a := assert.New(t)
	cfg := testConfig(t)
	arena := newTestArena(t, cfg)
	h := openTestQueue(t, arena, "printed-queue", 32)
	require.NoError(t, arena.Send(h, []byte("hello")))

	var out bytes.Buffer
	a.NoError(arena.Print(&out))
	a.Contains(out.String(), cfg.Name)
	a.Contains(out.String(), "printed-queue")
	a.Contains(out.String(), "32768")

	var dump bytes.Buffer
	n, err := arena.Dump(&dump)
	a.NoError(err)
	a.Equal(int64(cfg.SizeBytes()), n)
	a.True(bytes.Contains(dump.Bytes(), []byte("hello")))
	a.True(bytes.HasPrefix(dump.Bytes(), arenaMagic[:]))
}

func TestLayout(t *testing.T) {
	a := assert.New(t)
	a.Equal(128, headerSize)
	a.Equal(208, descriptorSize)
	a.Equal(uintptr(0x20), freeSpaceOff)
	a.Equal(uintptr(0x28), filledOff)
	a.Equal(uintptr(0x30), slotsOff)
	a.Equal(uintptr(0x38), cursorLockOff)
	l := calcLayout(512*shmq.KB, 8)
	a.Equal(PageSize, l.heapOff)
	a.Equal(127, l.heapPages)
	a.True(l.pageMapOff > l.slotMapOff)
	a.True(l.heapOff >= l.pageMapOff)
}
