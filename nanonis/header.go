package nanonis

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 40
	// NameSize is the size of the zero-padded command name field.
	NameSize = 32
)

// Header is a decoded frame header.
type Header struct {
	Name         string
	BodySize     int32
	WantResponse bool
}

// FrameSize returns the total frame size declared by the header.
func (h Header) FrameSize() int {
	return HeaderSize + int(h.BodySize)
}

func (h Header) String() string {
	return fmt.Sprintf("%s body=%d response=%t", h.Name, h.BodySize, h.WantResponse)
}

// EncodeHeader returns the 40-byte header for a command.
//
// Names longer than NameSize bytes are rejected with ErrCommandNameTooLong instead of being
// written past the name field.
func EncodeHeader(name string, bodySize int32, wantResponse bool) ([]byte, error) {
	return AppendHeader(make([]byte, 0, HeaderSize), name, bodySize, wantResponse)
}

// AppendHeader appends the 40-byte header for a command to dst.
func AppendHeader(dst []byte, name string, bodySize int32, wantResponse bool) ([]byte, error) {
	if name == "" {
		return dst, ErrEmptyCommandName
	}
	if len(name) > NameSize {
		return dst, fmt.Errorf("%w: %q is %d bytes", ErrCommandNameTooLong, name, len(name))
	}
	if bodySize < 0 {
		return dst, fmt.Errorf("%w: %d", ErrNegativeBodySize, bodySize)
	}

	dst = append(dst, name...)
	dst = append(dst, make([]byte, NameSize-len(name))...)
	dst = wire.AppendInt32(dst, bodySize)
	var flag uint16
	if wantResponse {
		flag = 1
	}
	dst = wire.AppendUint16(dst, flag)

	return append(dst, 0, 0), nil
}

// DecodeHeader decodes the first 40 bytes of b. Trailing zero bytes are trimmed from the name.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &wire.FramingError{Position: -1, Offset: 0, Need: HeaderSize, Have: len(b), Err: wire.ErrShortBuffer}
	}

	bodySize := int32(binary.BigEndian.Uint32(b[NameSize:])) //nolint:gosec
	if bodySize < 0 {
		return Header{}, &wire.FramingError{Position: -1, Tag: wire.Int32, Offset: NameSize, Need: int(bodySize), Have: len(b) - HeaderSize,
			Err: fmt.Errorf("%w: body size %d", wire.ErrNegativeLength, bodySize)}
	}

	return Header{
		Name:         string(bytes.TrimRight(b[:NameSize], "\x00")),
		BodySize:     bodySize,
		WantResponse: binary.BigEndian.Uint16(b[NameSize+4:]) != 0,
	}, nil
}

// EncodeRequest builds a complete request frame: header and encoded arguments in one buffer.
func EncodeRequest(name string, wantResponse bool, args ...wire.Arg) ([]byte, error) {
	body, err := wire.EncodeArgs(args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if len(body) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}

	buf := make([]byte, 0, HeaderSize+len(body))
	buf, err = AppendHeader(buf, name, int32(len(body)), wantResponse) //nolint:gosec
	if err != nil {
		return nil, err
	}

	return append(buf, body...), nil
}
