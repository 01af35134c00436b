// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptContextSignal(t *testing.T) {
	a := assert.New(t)
	ctx, cancel := interruptContext(-1)
	defer cancel()
	_, ok := ctx.Deadline()
	a.False(ok)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
		a.ErrorIs(ctx.Err(), context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by SIGINT")
	}
}

func TestInterruptContextTimeout(t *testing.T) {
	a := assert.New(t)
	ctx, cancel := interruptContext(10 * time.Millisecond)
	defer cancel()
	_, ok := ctx.Deadline()
	a.True(ok)
	<-ctx.Done()
	a.ErrorIs(ctx.Err(), context.DeadlineExceeded)
}
