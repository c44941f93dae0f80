// Package wire implements the typed argument codec of the Nanonis TCP protocol.
//
// Every request and response body exchanged with the SPM control server is a positional
// concatenation of big-endian values. Nothing in the body describes itself: a string carries no
// length prefix and a numeric array carries no element count. Those lengths live in other,
// earlier Int32 fields of the same body, and the caller's knowledge of the command layout is
// captured in a Schema.
//
// Key Features:
//   - Byte primitives: big-endian Int32, UInt16, UInt32, Float32 and Float64.
//   - Tags: scalars, strings, 1-D numeric arrays, 1-D string arrays and 2-D float/string arrays.
//   - Schemas: each variable-length field references the fields that hold its length, count or
//     dimensions. NewSchema resolves those references with the conventions the vendor commands
//     rely on, NewSchemaFields takes them explicitly.
//   - Diagnostics: tolerated size mismatches are reported through a DiagnosticSink instead of
//     being dropped.
//
// Usage Example:
//
//	// Signals.ValsGet response: Int32 count followed by that many Float32 values
//	schema := wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32))
//
//	decoded, err := wire.Decode(body, schema, wire.DecodeOptions{})
//	if err != nil {
//	    return err
//	}
//	values, _ := decoded.Values[1].Float32s()
package wire
