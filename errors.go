// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shmq

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by the library wraps one of them,
// so callers should use errors.Is to distinguish failures.
var (
	ErrConfig            = errors.New("invalid configuration")
	ErrResource          = errors.New("os resource failure")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateName     = errors.New("name already exists")
	ErrInvalidName       = errors.New("invalid name")
	ErrCapacity          = errors.New("invalid queue size")
	ErrDirectoryFull     = errors.New("queue directory is full")
	ErrBufferTooSmall    = errors.New("buffer is too small for the message")
	ErrInvalidDataLength = errors.New("invalid data length")
	ErrInvalidHandle     = errors.New("invalid queue handle")
	ErrInUse             = errors.New("queue is in use")
	ErrTimeout           = errors.New("operation timed out")
	ErrNotSupported      = errors.New("not supported on this platform")
)

// BufferTooSmallError is returned by a receive, whose buffer cannot hold the
// message at the head of the queue. The message is left in the queue.
type BufferTooSmallError struct {
	// Len is the length of the queued message.
	Len int
	// Cap is the size of the buffer passed by the caller.
	Cap int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("%s: message length %d, buffer size %d", ErrBufferTooSmall, e.Len, e.Cap)
}

// Is makes errors.Is(err, ErrBufferTooSmall) work.
func (e *BufferTooSmallError) Is(target error) bool {
	return target == ErrBufferTooSmall
}

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}

// Wrap attaches the kind to a lower level error, keeping both in the chain.
// It returns nil if err is nil.
func Wrap(err error, kind error, message string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrap(err, message)}
}

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// Cause makes the error compatible with errors.Cause.
func (e *kindError) Cause() error {
	return e.cause
}

// Is reports whether err is of the given kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
