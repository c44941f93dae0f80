package wire

import (
	"fmt"
	"strings"
)

// Field is one entry of a Schema.
//
// Refs holds the schema positions of the fields this field depends on:
//   - Str: the field holding the string byte length.
//   - Array1D, StringArray1D: the field holding the element count.
//   - FloatArray2D, StringArray2D: the fields holding the row count and the column count, in that order.
//
// Refs must point strictly backward. An empty Refs is resolved with the default conventions
// described on NewSchema.
type Field struct {
	Tag  Tag
	Refs []int
}

// Ref returns a field with explicit length references.
func Ref(tag Tag, refs ...int) Field {
	return Field{Tag: tag, Refs: refs}
}

// Schema is an ordered, validated list of fields describing one message body.
//
// A Schema is immutable once constructed and safe for concurrent use.
type Schema struct {
	fields []Field
}

// NewSchema builds a schema from tags, resolving length references with the conventions the
// vendor command layouts rely on:
//   - Str takes its byte length from the immediately preceding field, which must be an integer scalar.
//   - Array1D and StringArray1D take their element count from the nearest preceding field tagged Int32.
//   - FloatArray2D and StringArray2D take rows from two positions back and columns from one
//     position back; both must be Int32.
//
// A reference that cannot be resolved returns a *SchemaError naming the offending position.
func NewSchema(tags ...Tag) (*Schema, error) {
	fields := make([]Field, len(tags))
	for i, tag := range tags {
		fields[i] = Field{Tag: tag}
	}

	return NewSchemaFields(fields...)
}

// NewSchemaFields builds a schema from fields. Fields with explicit Refs are validated as given,
// fields without Refs are resolved like NewSchema.
func NewSchemaFields(fields ...Field) (*Schema, error) {
	resolved := make([]Field, len(fields))
	for pos, f := range fields {
		if !f.Tag.Valid() {
			return nil, &SchemaError{Position: pos, Tag: f.Tag, Reason: "unsupported tag"}
		}

		want := f.Tag.refCount()
		refs := f.Refs
		if len(refs) == 0 && want > 0 {
			var err error
			refs, err = defaultRefs(fields, pos)
			if err != nil {
				return nil, err
			}
		}

		if len(refs) != want {
			return nil, &SchemaError{Position: pos, Tag: f.Tag,
				Reason: fmt.Sprintf("needs %d length references, got %d", want, len(refs))}
		}

		for _, ref := range refs {
			if err := checkRef(fields, pos, ref); err != nil {
				return nil, err
			}
		}

		resolved[pos] = Field{Tag: f.Tag, Refs: append([]int(nil), refs...)}
	}

	return &Schema{fields: resolved}, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for schemas declared as
// package-level variables.
func MustSchema(tags ...Tag) *Schema {
	s, err := NewSchema(tags...)
	if err != nil {
		panic(err)
	}

	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}

	return len(s.fields)
}

// Field returns the resolved field at position i.
func (s *Schema) Field(i int) Field {
	f := s.fields[i]
	return Field{Tag: f.Tag, Refs: append([]int(nil), f.Refs...)}
}

// Tags returns the tags of all fields in order.
func (s *Schema) Tags() []Tag {
	if s == nil {
		return nil
	}
	tags := make([]Tag, len(s.fields))
	for i, f := range s.fields {
		tags[i] = f.Tag
	}

	return tags
}

func (s *Schema) String() string {
	if s == nil {
		return "[]"
	}
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		if len(f.Refs) == 0 {
			parts[i] = f.Tag.String()
			continue
		}
		parts[i] = fmt.Sprintf("%s@%v", f.Tag, f.Refs)
	}

	return "[" + strings.Join(parts, " ") + "]"
}

func defaultRefs(fields []Field, pos int) ([]int, error) {
	tag := fields[pos].Tag
	switch tag.Kind {
	case StrKind:
		if pos == 0 {
			return nil, &SchemaError{Position: pos, Tag: tag, Reason: "no preceding length field"}
		}
		return []int{pos - 1}, nil

	case Array1DKind, StringArray1DKind:
		for i := pos - 1; i >= 0; i-- {
			if fields[i].Tag == Int32 {
				return []int{i}, nil
			}
		}
		return nil, &SchemaError{Position: pos, Tag: tag, Reason: "no preceding Int32 count field"}

	case FloatArray2DKind, StringArray2DKind:
		if pos < 2 {
			return nil, &SchemaError{Position: pos, Tag: tag, Reason: "no preceding rows and columns fields"}
		}
		for _, i := range []int{pos - 2, pos - 1} {
			if fields[i].Tag != Int32 {
				return nil, &SchemaError{Position: pos, Tag: tag,
					Reason: fmt.Sprintf("dimension field %d is %s, not int", i, fields[i].Tag)}
			}
		}
		return []int{pos - 2, pos - 1}, nil

	default:
		return nil, nil
	}
}

func checkRef(fields []Field, pos, ref int) error {
	tag := fields[pos].Tag
	if ref < 0 || ref >= pos {
		return &SchemaError{Position: pos, Tag: tag,
			Reason: fmt.Sprintf("reference %d does not point to a preceding field", ref)}
	}
	if !fields[ref].Tag.IsInteger() {
		return &SchemaError{Position: pos, Tag: tag,
			Reason: fmt.Sprintf("reference %d is %s, not an integer scalar", ref, fields[ref].Tag)}
	}
	if tag.Kind != StrKind && fields[ref].Tag != Int32 {
		return &SchemaError{Position: pos, Tag: tag,
			Reason: fmt.Sprintf("reference %d is %s, not int", ref, fields[ref].Tag)}
	}

	return nil
}
