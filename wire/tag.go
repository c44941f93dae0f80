package wire

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a wire field.
type Kind uint8

const (
	InvalidKind Kind = iota
	Int32Kind
	UInt16Kind
	UInt32Kind
	Float32Kind
	Float64Kind
	StrKind
	Array1DKind
	StringArray1DKind
	FloatArray2DKind
	StringArray2DKind
)

// Tag describes the wire layout of a single body field.
//
// Tag is comparable and can be used as a map key. Elem is only meaningful for Array1D tags.
type Tag struct {
	Kind Kind
	Elem Kind
}

// Predefined tags.
var (
	Int32         = Tag{Kind: Int32Kind}
	UInt16        = Tag{Kind: UInt16Kind}
	UInt32        = Tag{Kind: UInt32Kind}
	Float32       = Tag{Kind: Float32Kind}
	Float64       = Tag{Kind: Float64Kind}
	Str           = Tag{Kind: StrKind}
	StringArray1D = Tag{Kind: StringArray1DKind}
	FloatArray2D  = Tag{Kind: FloatArray2DKind}
	StringArray2D = Tag{Kind: StringArray2DKind}
)

// Array1D returns the tag of a one-dimensional array whose elements are encoded as elem.
//
// elem must be a numeric scalar tag, otherwise the returned tag is invalid and schema
// construction rejects it.
func Array1D(elem Tag) Tag {
	if !elem.IsNumeric() {
		return Tag{Kind: Array1DKind, Elem: InvalidKind}
	}

	return Tag{Kind: Array1DKind, Elem: elem.Kind}
}

var tagNames = map[Tag]string{
	Int32:            "int",
	UInt16:           "uint16",
	UInt32:           "uint32",
	Float32:          "float32",
	Float64:          "float64",
	Str:              "str",
	Array1D(Int32):   "1dint",
	Array1D(UInt16):  "1duint16",
	Array1D(UInt32):  "1duint32",
	Array1D(Float32): "1dfloat32",
	Array1D(Float64): "1dfloat64",
	StringArray1D:    "1dstr",
	FloatArray2D:     "2dfloat32",
	StringArray2D:    "2dstr",
}

var tagAliases = map[string]Tag{
	"int32":   Int32,
	"i32":     Int32,
	"u16":     UInt16,
	"u32":     UInt32,
	"f32":     Float32,
	"f64":     Float64,
	"string":  Str,
	"1dint32": Array1D(Int32),
}

// ParseTag returns the tag for a type name as written in the vendor command reference,
// e.g. "int", "float32", "1dfloat32" or "2dstr". Names are case-insensitive.
func ParseTag(name string) (Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for tag, n := range tagNames {
		if n == name {
			return tag, nil
		}
	}
	if tag, ok := tagAliases[name]; ok {
		return tag, nil
	}

	return Tag{}, fmt.Errorf("unknown type tag %q", name)
}

// String returns the vendor name of the tag.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}

	return "invalid"
}

// Width returns the fixed encoded size of a scalar tag in bytes, or 0 for variable-length tags.
func (t Tag) Width() int {
	return kindWidth(t.Kind)
}

// ElemWidth returns the encoded size of one element of an Array1D tag.
func (t Tag) ElemWidth() int {
	if t.Kind != Array1DKind {
		return 0
	}

	return kindWidth(t.Elem)
}

// IsNumeric reports whether the tag is one of the numeric scalar tags.
func (t Tag) IsNumeric() bool {
	return kindWidth(t.Kind) > 0 && t.Elem == InvalidKind
}

// IsInteger reports whether the tag is an integer scalar and can therefore hold a length.
func (t Tag) IsInteger() bool {
	switch t {
	case Int32, UInt16, UInt32:
		return true
	default:
		return false
	}
}

// Valid reports whether the tag is one of the supported tags.
func (t Tag) Valid() bool {
	_, ok := tagNames[t]
	return ok
}

// refCount returns how many reference fields a tag depends on.
func (t Tag) refCount() int {
	switch t.Kind {
	case StrKind, Array1DKind, StringArray1DKind:
		return 1
	case FloatArray2DKind, StringArray2DKind:
		return 2
	default:
		return 0
	}
}

func kindWidth(k Kind) int {
	switch k {
	case Int32Kind, UInt32Kind, Float32Kind:
		return 4
	case UInt16Kind:
		return 2
	case Float64Kind:
		return 8
	default:
		return 0
	}
}
