package nanonis

import (
	"fmt"

	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// Response is a decoded response frame.
type Response struct {
	Header Header
	// Values holds one decoded value per schema field.
	Values []wire.Value
	// Error is the error tail reported by the server.
	Error ErrorRecord
}

// Value returns the i-th decoded value, or the zero Value when i is out of range.
func (r *Response) Value(i int) wire.Value {
	if i < 0 || i >= len(r.Values) {
		return wire.Value{}
	}

	return r.Values[i]
}

// Err returns the error tail as a *RemoteError carrying the command name, or nil.
func (r *Response) Err() error {
	if r.Error.OK() {
		return nil
	}

	return &RemoteError{Command: r.Header.Name, Status: r.Error.Status, Description: r.Error.Description}
}

// DecodeResponse decodes a raw response frame against schema.
//
// The header is decoded first. A frame shorter than the declared body returns a *TruncationError
// before any argument is read. The body is then decoded against schema and the error tail is read
// from the bytes that follow the arguments, inside the declared body. Bytes left over after the
// error tail are reported as wire.DiagTrailingBytes, or rejected with ErrTrailingBytes in strict
// mode. Bytes in raw beyond the declared frame are ignored.
func DecodeResponse(raw []byte, schema *wire.Schema, opts wire.DecodeOptions) (*Response, error) {
	if len(raw) < HeaderSize {
		return nil, &TruncationError{Command: opts.Command, Want: HeaderSize, Have: len(raw)}
	}

	header, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if opts.Command == "" {
		opts.Command = header.Name
	}
	if len(raw) < header.FrameSize() {
		return nil, &TruncationError{Command: opts.Command, Want: header.FrameSize(), Have: len(raw)}
	}

	body := raw[HeaderSize:header.FrameSize()]
	decoded, err := wire.Decode(body, schema, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", opts.Command, err)
	}

	record, n, err := DecodeErrorTail(body[decoded.N:])
	if err != nil {
		return nil, fmt.Errorf("decode %s error tail: %w", opts.Command, err)
	}

	if used := decoded.N + n; used < len(body) {
		if opts.Strict {
			return nil, fmt.Errorf("decode %s: %w: %d of %d body bytes used", opts.Command, ErrTrailingBytes, used, len(body))
		}
		if opts.Sink != nil {
			opts.Sink.Report(wire.Diagnostic{
				Kind:     wire.DiagTrailingBytes,
				Command:  opts.Command,
				Position: schema.Len(),
				Expected: used,
				Actual:   len(body),
			})
		}
	}

	return &Response{Header: header, Values: decoded.Values, Error: record}, nil
}

// EncodeResponse builds a response frame from already encoded return arguments and an error tail.
// It is the server-side counterpart of DecodeResponse, used by fakes and simulators.
func EncodeResponse(name string, record ErrorRecord, args ...wire.Arg) ([]byte, error) {
	body, err := wire.EncodeArgs(args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	body = AppendErrorTail(body, record)

	buf := make([]byte, 0, HeaderSize+len(body))
	buf, err = AppendHeader(buf, name, int32(len(body)), false) //nolint:gosec
	if err != nil {
		return nil, err
	}

	return append(buf, body...), nil
}
