// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mq

import (
	"os"

	"go.uber.org/zap"
)

const (
	defaultPerm = os.FileMode(0666)
)

// Option changes arena settings.
type Option func(*options)

type options struct {
	log  *zap.Logger
	perm os.FileMode
}

func defaultOptions() options {
	return options{log: zap.NewNop(), perm: defaultPerm}
}

// WithLogger sets a logger for arena lifecycle and directory events.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithPerm sets permission bits of the shared memory object. It is used by Init only.
func WithPerm(perm os.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}
