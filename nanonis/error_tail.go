package nanonis

import (
	"fmt"

	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// ErrorTailSize is the size of an error tail with an empty description.
const ErrorTailSize = 8

// ErrorRecord is the error tail every response body ends with.
// A non-zero Status is a fault reported by the server, returned as data alongside the values.
type ErrorRecord struct {
	Status      uint32
	Description string
}

// OK reports whether the server reported no error.
func (r ErrorRecord) OK() bool {
	return r.Status == 0
}

// Err returns a *RemoteError for a non-zero status and nil otherwise.
func (r ErrorRecord) Err() error {
	if r.Status == 0 {
		return nil
	}

	return &RemoteError{Status: r.Status, Description: r.Description}
}

func (r ErrorRecord) String() string {
	if r.Status == 0 {
		return "ok"
	}

	return fmt.Sprintf("status %d: %s", r.Status, r.Description)
}

// AppendErrorTail appends the encoding of r to dst.
func AppendErrorTail(dst []byte, r ErrorRecord) []byte {
	dst = wire.AppendUint32(dst, r.Status)
	dst = wire.AppendInt32(dst, int32(len(r.Description))) //nolint:gosec

	return append(dst, r.Description...)
}

// DecodeErrorTail decodes an error tail at the start of b and returns it with the number of bytes
// consumed. A zero description length consumes no bytes past the length field.
func DecodeErrorTail(b []byte) (ErrorRecord, int, error) {
	status, err := wire.ReadUint32(b)
	if err != nil {
		return ErrorRecord{}, 0, err
	}
	size, err := wire.ReadInt32(b[4:])
	if err != nil {
		return ErrorRecord{}, 0, err
	}

	switch {
	case size < 0:
		return ErrorRecord{}, 0, &wire.FramingError{Position: -1, Tag: wire.Int32, Offset: 4, Need: int(size), Have: len(b) - ErrorTailSize,
			Err: fmt.Errorf("%w: error description length %d", wire.ErrNegativeLength, size)}
	case size == 0:
		return ErrorRecord{Status: status}, ErrorTailSize, nil
	case int(size) > len(b)-ErrorTailSize:
		return ErrorRecord{}, 0, &wire.FramingError{Position: -1, Tag: wire.Str, Offset: ErrorTailSize, Need: int(size), Have: len(b) - ErrorTailSize,
			Err: wire.ErrShortBuffer}
	}

	return ErrorRecord{Status: status, Description: string(b[ErrorTailSize : ErrorTailSize+int(size)])}, ErrorTailSize + int(size), nil
}
