package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AppendInt32 appends v in network byte order.
func AppendInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v)) //nolint:gosec
}

// AppendUint16 appends v in network byte order.
func AppendUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// AppendUint32 appends v in network byte order.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// AppendFloat32 appends the IEEE 754 bits of v in network byte order.
func AppendFloat32(dst []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
}

// AppendFloat64 appends the IEEE 754 bits of v in network byte order.
func AppendFloat64(dst []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
}

// ReadInt32 decodes a big-endian Int32 from the start of b.
func ReadInt32(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, shortBuffer(-1, Int32, 0, 4, len(b))
	}

	return int32(binary.BigEndian.Uint32(b)), nil //nolint:gosec
}

// ReadUint16 decodes a big-endian UInt16 from the start of b.
func ReadUint16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, shortBuffer(-1, UInt16, 0, 2, len(b))
	}

	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 decodes a big-endian UInt32 from the start of b.
func ReadUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, shortBuffer(-1, UInt32, 0, 4, len(b))
	}

	return binary.BigEndian.Uint32(b), nil
}

// ReadFloat32 decodes a big-endian Float32 from the start of b.
func ReadFloat32(b []byte) (float32, error) {
	if len(b) < 4 {
		return 0, shortBuffer(-1, Float32, 0, 4, len(b))
	}

	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadFloat64 decodes a big-endian Float64 from the start of b.
func ReadFloat64(b []byte) (float64, error) {
	if len(b) < 8 {
		return 0, shortBuffer(-1, Float64, 0, 8, len(b))
	}

	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// EncodeScalar encodes a single numeric value with a scalar tag.
//
// value can be any Go integer or floating-point type; it is converted to the tag's type without
// range checks.
func EncodeScalar(value any, tag Tag) ([]byte, error) {
	if !tag.IsNumeric() {
		return nil, &EncodeError{Position: -1, Tag: tag, Value: value, Reason: "tag is not a scalar"}
	}

	buf, err := appendScalar(make([]byte, 0, tag.Width()), value, tag.Kind)
	if err != nil {
		return nil, &EncodeError{Position: -1, Tag: tag, Value: value, Reason: err.Error()}
	}

	return buf, nil
}

// DecodeScalar decodes a single numeric value with a scalar tag from the start of b.
func DecodeScalar(b []byte, tag Tag) (Value, error) {
	if !tag.IsNumeric() {
		return Value{}, fmt.Errorf("tag %s is not a scalar", tag)
	}
	if len(b) < tag.Width() {
		return Value{}, shortBuffer(-1, tag, 0, tag.Width(), len(b))
	}

	return Value{tag: tag, size: tag.Width(), data: readScalar(b, tag.Kind)}, nil
}

// readScalar decodes a scalar of kind k; b must hold at least kindWidth(k) bytes.
func readScalar(b []byte, k Kind) any {
	switch k {
	case Int32Kind:
		return int32(binary.BigEndian.Uint32(b)) //nolint:gosec
	case UInt16Kind:
		return binary.BigEndian.Uint16(b)
	case UInt32Kind:
		return binary.BigEndian.Uint32(b)
	case Float32Kind:
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	case Float64Kind:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	default:
		return nil
	}
}

// appendScalar converts value to kind k and appends it.
func appendScalar(dst []byte, value any, k Kind) ([]byte, error) {
	switch k {
	case Int32Kind, UInt16Kind, UInt32Kind:
		i, ok := toInt64(value)
		if !ok {
			return dst, fmt.Errorf("%T is not a number", value)
		}
		switch k {
		case Int32Kind:
			return AppendInt32(dst, int32(i)), nil //nolint:gosec
		case UInt16Kind:
			return AppendUint16(dst, uint16(i)), nil //nolint:gosec
		default:
			return AppendUint32(dst, uint32(i)), nil //nolint:gosec
		}

	case Float32Kind, Float64Kind:
		f, ok := toFloat64(value)
		if !ok {
			return dst, fmt.Errorf("%T is not a number", value)
		}
		if k == Float32Kind {
			return AppendFloat32(dst, float32(f)), nil
		}

		return AppendFloat64(dst, f), nil

	default:
		return dst, fmt.Errorf("kind %d is not a scalar", k)
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true //nolint:gosec
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true //nolint:gosec
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		i, ok := toInt64(value)
		return float64(i), ok
	}
}
