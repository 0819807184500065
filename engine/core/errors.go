package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrWindowMinimized    = errors.New("drawable area is zero, rendering suspended")
	ErrUnsupportedBackend = errors.New("unsupported platform backend")
	ErrUnknown            = errors.New("unknown")
)
