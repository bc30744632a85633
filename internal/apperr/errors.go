// Package apperr holds sentinel errors shared across Jotpad packages.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNotConfirmed = errors.New("not confirmed")
	ErrStoreRead    = errors.New("store read failed")
	ErrStoreWrite   = errors.New("store write failed")
	ErrClosed       = errors.New("closed")
)
