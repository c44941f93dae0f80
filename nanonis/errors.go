package nanonis

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandNameTooLong indicates that a command name does not fit into the 32-byte name field.
	ErrCommandNameTooLong = errors.New("command name exceeds 32 bytes")

	// ErrEmptyCommandName indicates that an empty command name was provided.
	ErrEmptyCommandName = errors.New("command name is empty")

	// ErrNegativeBodySize indicates that a negative body size was provided.
	ErrNegativeBodySize = errors.New("negative body size")

	// ErrBodyTooLarge indicates that a body does not fit into the Int32 body size field.
	ErrBodyTooLarge = errors.New("body exceeds int32 size")

	// ErrTrailingBytes indicates that body bytes are left over after the error tail in strict mode.
	ErrTrailingBytes = errors.New("unconsumed bytes after error tail")
)

var (
	// ErrPeerClosed indicates that the server closed the connection, i.e. a read returned no data.
	ErrPeerClosed = errors.New("connection closed by peer")

	// ErrNotConnected indicates that a call was made on a connection that is not open.
	ErrNotConnected = errors.New("not connected")
)

// TruncationError reports a frame that is shorter than its header declares.
type TruncationError struct {
	Command string
	// Want is the full frame size, header included.
	Want int
	// Have is the number of frame bytes actually received.
	Have int
}

func (e *TruncationError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("truncated frame: want %d bytes, have %d", e.Want, e.Have)
	}

	return fmt.Sprintf("truncated response to %s: want %d bytes, have %d", e.Command, e.Want, e.Have)
}

// ConnectionError wraps a socket failure. The call that raised it is not retried.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteError is the error form of a non-zero ErrorRecord.
type RemoteError struct {
	Command     string
	Status      uint32
	Description string
}

func (e *RemoteError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("remote error %d: %s", e.Status, e.Description)
	}

	return fmt.Sprintf("%s: remote error %d: %s", e.Command, e.Status, e.Description)
}
