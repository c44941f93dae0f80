package wire

import (
	"fmt"
	"math"

	"github.com/jirkagzw/Nanonis-Light-interface/internal/util"
)

// Arg pairs an argument value with the tag it is encoded as.
type Arg struct {
	Value any
	Tag   Tag
}

// EncodeArgs concatenates the encodings of args in order.
//
// No length, count or dimension field is ever added implicitly: a Str or array argument must be
// preceded by an explicit Int32 argument when the command layout requires one.
func EncodeArgs(args ...Arg) ([]byte, error) {
	var buf []byte
	for i, arg := range args {
		var err error
		buf, err = appendArg(buf, i, arg)
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// AppendArg appends the encoding of arg to dst.
func AppendArg(dst []byte, arg Arg) ([]byte, error) {
	return appendArg(dst, -1, arg)
}

func appendArg(dst []byte, pos int, arg Arg) ([]byte, error) {
	fail := func(reason string) ([]byte, error) {
		return dst, &EncodeError{Position: pos, Tag: arg.Tag, Value: arg.Value, Reason: reason}
	}

	tag := arg.Tag
	switch tag.Kind {
	case Int32Kind, UInt16Kind, UInt32Kind, Float32Kind, Float64Kind:
		out, err := appendScalar(dst, arg.Value, tag.Kind)
		if err != nil {
			return fail(err.Error())
		}
		return out, nil

	case StrKind:
		switch v := arg.Value.(type) {
		case string:
			return append(dst, v...), nil
		case []byte:
			return append(dst, v...), nil
		default:
			return fail("want string or []byte")
		}

	case Array1DKind:
		if tag.Elem == InvalidKind {
			return fail("array element tag is not numeric")
		}
		elems, ok := numericElems(arg.Value)
		if !ok {
			return fail("want a numeric slice")
		}
		for i := 0; i < elems.len(); i++ {
			var err error
			dst, err = appendScalar(dst, elems.at(i), tag.Elem)
			if err != nil {
				return fail(err.Error())
			}
		}
		return dst, nil

	case StringArray1DKind:
		strs, ok := arg.Value.([]string)
		if !ok {
			return fail("want []string")
		}
		return appendStrings(dst, strs)

	case FloatArray2DKind:
		switch m := arg.Value.(type) {
		case [][]float32:
			for _, v := range util.Flatten(m) {
				dst = AppendFloat32(dst, v)
			}
			return dst, nil
		case [][]float64:
			for _, v := range util.Flatten(m) {
				dst = AppendFloat32(dst, float32(v))
			}
			return dst, nil
		default:
			return fail("want [][]float32 or [][]float64")
		}

	case StringArray2DKind:
		m, ok := arg.Value.([][]string)
		if !ok {
			return fail("want [][]string")
		}
		out, err := appendStrings(dst, util.Flatten(m))
		if err != nil {
			return fail(err.Error())
		}
		return out, nil

	default:
		return fail("unsupported tag")
	}
}

// appendStrings writes each element as an Int32 byte length followed by its bytes.
func appendStrings(dst []byte, strs []string) ([]byte, error) {
	for _, s := range strs {
		if len(s) > math.MaxInt32 {
			return dst, fmt.Errorf("string element of %d bytes exceeds int32 length", len(s))
		}
		dst = AppendInt32(dst, int32(len(s))) //nolint:gosec
		dst = append(dst, s...)
	}

	return dst, nil
}

// numericSlice gives indexed access to the supported Go slice types.
type numericSlice struct {
	n  int
	fn func(i int) any
}

func (s numericSlice) len() int { return s.n }
func (s numericSlice) at(i int) any { return s.fn(i) }

func numericElems(value any) (numericSlice, bool) {
	switch v := value.(type) {
	case []int:
		return sliceOf(v), true
	case []int32:
		return sliceOf(v), true
	case []int64:
		return sliceOf(v), true
	case []uint16:
		return sliceOf(v), true
	case []uint32:
		return sliceOf(v), true
	case []float32:
		return sliceOf(v), true
	case []float64:
		return sliceOf(v), true
	default:
		return numericSlice{}, false
	}
}

func sliceOf[T any](v []T) numericSlice {
	return numericSlice{n: len(v), fn: func(i int) any { return v[i] }}
}
