package textconn

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrResponseTooLarge indicates that no terminator arrived within the maximum response size.
	ErrResponseTooLarge = errors.New("response exceeds maximum size without terminator")
)
