package spmconn

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrConnBusy indicates that Open or Close raced with another state transition.
	ErrConnBusy = errors.New("connection is opening or closing")

	// ErrBodyTooLarge indicates that a response declares a body larger than the configured maximum.
	ErrBodyTooLarge = errors.New("response body exceeds maximum size")
)
