package model

import (
	"errors"
)

var (
	ErrNotRunning     = errors.New("monitor is not running")
	ErrAlreadyRunning = errors.New("monitor is already running")
	ErrStopping       = errors.New("monitor is stopping")
	ErrWorkerGone     = errors.New("monitor process no longer exists")
)
