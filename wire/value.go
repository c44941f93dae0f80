package wire

import (
	"fmt"
)

// Value is one decoded body field together with the number of bytes it consumed.
//
// The concrete Go type held by a Value depends on its tag:
//
//	Int32                 int32
//	UInt16                uint16
//	UInt32                uint32
//	Float32               float32
//	Float64               float64
//	Str                   string
//	Array1D(Int32)        []int32
//	Array1D(UInt16)       []uint16
//	Array1D(UInt32)       []uint32
//	Array1D(Float32)      []float32
//	Array1D(Float64)      []float64
//	StringArray1D         []string
//	FloatArray2D          [][]float32 (row-major)
//	StringArray2D         [][]string (row-major)
type Value struct {
	tag  Tag
	size int
	data any
}

// NewValue wraps a Go value as a decoded Value. It is intended for tests and fakes.
func NewValue(tag Tag, data any) Value {
	return Value{tag: tag, data: data}
}

// Tag returns the tag the value was decoded with.
func (v Value) Tag() Tag { return v.tag }

// Size returns the number of body bytes the value consumed.
func (v Value) Size() int { return v.size }

// Any returns the underlying Go value.
func (v Value) Any() any { return v.data }

// Int returns an integer scalar as int64.
func (v Value) Int() (int64, error) {
	switch d := v.data.(type) {
	case int32:
		return int64(d), nil
	case uint16:
		return int64(d), nil
	case uint32:
		return int64(d), nil
	default:
		return 0, v.typeError("integer scalar")
	}
}

// Float returns a numeric scalar as float64.
func (v Value) Float() (float64, error) {
	switch d := v.data.(type) {
	case float32:
		return float64(d), nil
	case float64:
		return d, nil
	default:
		i, err := v.Int()
		if err != nil {
			return 0, v.typeError("numeric scalar")
		}

		return float64(i), nil
	}
}

// Text returns a Str value.
func (v Value) Text() (string, error) {
	s, ok := v.data.(string)
	if !ok {
		return "", v.typeError("string")
	}

	return s, nil
}

// Int32s returns an Array1D(Int32) value.
func (v Value) Int32s() ([]int32, error) { return as[[]int32](v, "int32 array") }

// Uint16s returns an Array1D(UInt16) value.
func (v Value) Uint16s() ([]uint16, error) { return as[[]uint16](v, "uint16 array") }

// Uint32s returns an Array1D(UInt32) value.
func (v Value) Uint32s() ([]uint32, error) { return as[[]uint32](v, "uint32 array") }

// Float32s returns an Array1D(Float32) value.
func (v Value) Float32s() ([]float32, error) { return as[[]float32](v, "float32 array") }

// Float64s returns an Array1D(Float64) value.
func (v Value) Float64s() ([]float64, error) { return as[[]float64](v, "float64 array") }

// Strings returns a StringArray1D value.
func (v Value) Strings() ([]string, error) { return as[[]string](v, "string array") }

// Matrix returns a FloatArray2D value as rows of columns.
func (v Value) Matrix() ([][]float32, error) { return as[[][]float32](v, "float32 matrix") }

// StringMatrix returns a StringArray2D value as rows of columns.
func (v Value) StringMatrix() ([][]string, error) { return as[[][]string](v, "string matrix") }

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.tag, v.data)
}

func (v Value) typeError(want string) error {
	return fmt.Errorf("value is %s (%T), not %s", v.tag, v.data, want)
}

func as[T any](v Value, want string) (T, error) {
	d, ok := v.data.(T)
	if !ok {
		var zero T
		return zero, v.typeError(want)
	}

	return d, nil
}
