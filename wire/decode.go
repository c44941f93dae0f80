package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jirkagzw/Nanonis-Light-interface/internal/util"
)

// DecodeOptions controls a single decode call.
type DecodeOptions struct {
	// Strict turns tolerated size mismatches into framing errors.
	Strict bool
	// Sink receives tolerated mismatches. Nil discards them.
	Sink DiagnosticSink
	// Command is attached to reported diagnostics.
	Command string
}

// Decoded is the result of decoding a body against a schema.
type Decoded struct {
	// Values holds one entry per schema field, in schema order.
	Values []Value
	// N is the number of body bytes consumed.
	N int
}

// Decode walks schema left to right over body and decodes every field.
//
// Lengths, counts and dimensions are read from the already-decoded fields the schema refers to.
// A count of zero decodes to an empty array. Scalars and numeric arrays that do not fit into the
// remaining bytes, and negative lengths, return a *FramingError. Strings whose declared length
// overruns the body are decoded from the available bytes and reported as DiagSchemaMismatch,
// unless opts.Strict is set.
func Decode(body []byte, schema *Schema, opts DecodeOptions) (*Decoded, error) {
	if schema == nil {
		return nil, ErrSchemaNil
	}

	d := &decoder{
		input:  body,
		opts:   opts,
		values: make([]Value, 0, schema.Len()),
	}

	for pos, field := range schema.fields {
		start := d.pos
		data, err := d.decodeField(pos, field)
		if err != nil {
			return nil, err
		}
		d.values = append(d.values, Value{tag: field.Tag, size: d.pos - start, data: data})
	}

	return &Decoded{Values: d.values, N: d.pos}, nil
}

// decoder keeps the cursor and the values decoded so far.
type decoder struct {
	input  []byte
	pos    int
	values []Value
	opts   DecodeOptions
}

func (d *decoder) remaining() int {
	return len(d.input) - d.pos
}

// read returns the next length bytes and advances the cursor.
func (d *decoder) read(pos int, tag Tag, length int) ([]byte, error) {
	if length > d.remaining() {
		return nil, shortBuffer(pos, tag, d.pos, length, d.remaining())
	}
	result := d.input[d.pos : d.pos+length]
	d.pos += length

	return result, nil
}

// readLenient reads up to length bytes. A shortfall is reported as a schema mismatch, or
// returned as a framing error in strict mode.
func (d *decoder) readLenient(pos int, tag Tag, length int) ([]byte, error) {
	if length <= d.remaining() {
		return d.read(pos, tag, length)
	}
	if d.opts.Strict {
		return nil, shortBuffer(pos, tag, d.pos, length, d.remaining())
	}

	d.report(Diagnostic{Kind: DiagSchemaMismatch, Position: pos, Tag: tag, Expected: length, Actual: d.remaining()})

	return d.read(pos, tag, d.remaining())
}

func (d *decoder) report(diag Diagnostic) {
	if d.opts.Sink == nil {
		return
	}
	diag.Command = d.opts.Command
	d.opts.Sink.Report(diag)
}

// refLength returns the non-negative integer held by the referenced field.
func (d *decoder) refLength(pos int, tag Tag, ref int) (int, error) {
	n, err := d.values[ref].Int()
	if err != nil {
		return 0, &SchemaError{Position: pos, Tag: tag, Reason: err.Error()}
	}
	if n < 0 {
		return 0, &FramingError{Position: pos, Tag: tag, Offset: d.pos, Need: int(n), Have: d.remaining(),
			Err: fmt.Errorf("%w: field %d holds %d", ErrNegativeLength, ref, n)}
	}
	if n > math.MaxInt32 {
		return 0, &FramingError{Position: pos, Tag: tag, Offset: d.pos, Need: int(n), Have: d.remaining(),
			Err: fmt.Errorf("length %d held by field %d exceeds int32", n, ref)}
	}

	return int(n), nil
}

func (d *decoder) decodeField(pos int, field Field) (any, error) {
	tag := field.Tag
	switch tag.Kind {
	case Int32Kind, UInt16Kind, UInt32Kind, Float32Kind, Float64Kind:
		b, err := d.read(pos, tag, tag.Width())
		if err != nil {
			return nil, err
		}
		return readScalar(b, tag.Kind), nil

	case StrKind:
		n, err := d.refLength(pos, tag, field.Refs[0])
		if err != nil {
			return nil, err
		}
		b, err := d.readLenient(pos, tag, n)
		if err != nil {
			return nil, err
		}
		return string(b), nil

	case Array1DKind:
		n, err := d.refLength(pos, tag, field.Refs[0])
		if err != nil {
			return nil, err
		}
		return d.decodeNumericArray(pos, tag, n)

	case StringArray1DKind:
		n, err := d.refLength(pos, tag, field.Refs[0])
		if err != nil {
			return nil, err
		}
		return d.decodeStrings(pos, tag, n)

	case FloatArray2DKind:
		rows, cols, err := d.dimensions(pos, field)
		if err != nil {
			return nil, err
		}
		// an empty dimension carries no elements, so rows is not bounded by the body
		if rows == 0 || cols == 0 {
			return [][]float32{}, nil
		}
		if rows > d.remaining()/4/cols {
			return nil, shortBuffer(pos, tag, d.pos, rows*cols*4, d.remaining())
		}
		b, err := d.read(pos, tag, rows*cols*4)
		if err != nil {
			return nil, err
		}
		flat := make([]float32, rows*cols)
		for i := range flat {
			flat[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
		}
		return util.Reshape(flat, rows, cols), nil

	case StringArray2DKind:
		rows, cols, err := d.dimensions(pos, field)
		if err != nil {
			return nil, err
		}
		if rows == 0 || cols == 0 {
			return [][]string{}, nil
		}
		if rows > d.remaining()/4/cols {
			return nil, shortBuffer(pos, tag, d.pos, rows*cols*4, d.remaining())
		}
		flat, err := d.decodeStrings(pos, tag, rows*cols)
		if err != nil {
			return nil, err
		}
		return util.Reshape(flat, rows, cols), nil

	default:
		return nil, &SchemaError{Position: pos, Tag: tag, Reason: "unsupported tag"}
	}
}

func (d *decoder) dimensions(pos int, field Field) (int, int, error) {
	rows, err := d.refLength(pos, field.Tag, field.Refs[0])
	if err != nil {
		return 0, 0, err
	}
	cols, err := d.refLength(pos, field.Tag, field.Refs[1])
	if err != nil {
		return 0, 0, err
	}

	return rows, cols, nil
}

func (d *decoder) decodeNumericArray(pos int, tag Tag, n int) (any, error) {
	width := tag.ElemWidth()
	if n > d.remaining()/width {
		return nil, shortBuffer(pos, tag, d.pos, n*width, d.remaining())
	}
	b, err := d.read(pos, tag, n*width)
	if err != nil {
		return nil, err
	}

	switch tag.Elem {
	case Int32Kind:
		return decodeElems(b, n, width, func(e []byte) int32 { return int32(binary.BigEndian.Uint32(e)) }), nil //nolint:gosec
	case UInt16Kind:
		return decodeElems(b, n, width, binary.BigEndian.Uint16), nil
	case UInt32Kind:
		return decodeElems(b, n, width, binary.BigEndian.Uint32), nil
	case Float32Kind:
		return decodeElems(b, n, width, func(e []byte) float32 { return math.Float32frombits(binary.BigEndian.Uint32(e)) }), nil
	case Float64Kind:
		return decodeElems(b, n, width, func(e []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(e)) }), nil
	default:
		return nil, &SchemaError{Position: pos, Tag: tag, Reason: "array element tag is not numeric"}
	}
}

// decodeStrings reads n length-prefixed strings. Each element needs at least its 4-byte prefix,
// so n is bounded by the remaining bytes before anything is allocated.
func (d *decoder) decodeStrings(pos int, tag Tag, n int) ([]string, error) {
	if n > d.remaining()/4 {
		return nil, shortBuffer(pos, tag, d.pos, n*4, d.remaining())
	}

	strs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		b, err := d.read(pos, tag, 4)
		if err != nil {
			return nil, err
		}
		size := int32(binary.BigEndian.Uint32(b)) //nolint:gosec
		if size < 0 {
			return nil, &FramingError{Position: pos, Tag: tag, Offset: d.pos - 4, Need: int(size), Have: d.remaining(),
				Err: fmt.Errorf("%w: element %d", ErrNegativeLength, i)}
		}
		elem, err := d.readLenient(pos, tag, int(size))
		if err != nil {
			return nil, err
		}
		strs = append(strs, string(elem))
	}

	return strs, nil
}

func decodeElems[T any](b []byte, n, width int, conv func([]byte) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = conv(b[i*width:])
	}

	return out
}
