package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer indicates that fewer bytes remain than a field requires.
	ErrShortBuffer = errors.New("unexpected end of body")

	// ErrNegativeLength indicates that a length, count or dimension field holds a negative value.
	ErrNegativeLength = errors.New("negative length")

	// ErrSchemaNil indicates that a nil Schema was provided.
	ErrSchemaNil = errors.New("schema is nil")
)

// FramingError reports a body that cannot be decoded against its schema, e.g. a scalar that
// does not fit into the remaining bytes. It is fatal to the call.
type FramingError struct {
	// Position is the schema position of the failing field, or -1 outside of a schema walk.
	Position int
	Tag      Tag
	// Offset is the byte offset inside the decoded buffer where the field starts.
	Offset int
	Need   int
	Have   int
	Err    error
}

func (e *FramingError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("framing error at offset %d (%s): need %d bytes, have %d: %v",
			e.Offset, e.Tag, e.Need, e.Have, e.Err)
	}

	return fmt.Sprintf("framing error at field %d (%s), offset %d: need %d bytes, have %d: %v",
		e.Position, e.Tag, e.Offset, e.Need, e.Have, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// SchemaError reports a schema whose length references cannot be resolved. It is a programming
// error in the command layout, detected before any byte is read.
type SchemaError struct {
	Position int
	Tag      Tag
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema at field %d (%s): %s", e.Position, e.Tag, e.Reason)
}

// EncodeError reports an argument value that cannot be encoded with its tag.
type EncodeError struct {
	Position int
	Tag      Tag
	Value    any
	Reason   string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot encode argument %d as %s (%T): %s", e.Position, e.Tag, e.Value, e.Reason)
}

func shortBuffer(pos int, tag Tag, offset, need, have int) *FramingError {
	return &FramingError{Position: pos, Tag: tag, Offset: offset, Need: need, Have: have, Err: ErrShortBuffer}
}
