package controller

import "errors"

var (
	ErrStopped    = errors.New("controller: stopped")
	ErrNotStarted = errors.New("controller: not started")
	ErrStarted    = errors.New("controller: already started")
	ErrUnknownPID = errors.New("controller: unknown pid")
	ErrNoSampler  = errors.New("controller: no sampler for this platform")
)
