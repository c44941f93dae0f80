// Package nanonis implements the framing layer of the Nanonis TCP programming interface.
//
// Every message exchanged with the control server is one frame: a fixed 40-byte header followed by
// a body. The header carries the command name zero-padded to 32 bytes, the body size as a
// big-endian Int32, a UInt16 response-requested flag and two reserved zero bytes. A response body
// holds the schema-encoded return arguments followed by the error tail.
//
// Frame layout:
//
//	offset  size      field
//	0       32        command name, zero padded
//	32      4         body size (Int32)
//	36      2         send response back (UInt16, 0 or 1)
//	38      2         reserved, zero
//	40      bodySize  arguments, then error status (UInt32), description length (Int32), description
//
// Errors:
//   - *wire.FramingError: a header or body that cannot be decoded. Fatal to the call.
//   - *TruncationError: fewer bytes than the header declares. Never silently decoded.
//   - wire.Diagnostic: tolerated size mismatches, reported to a wire.DiagnosticSink.
//   - ErrorRecord: the server's error tail. A non-zero status is data, not a Go error;
//     ErrorRecord.Err converts it into a *RemoteError when the caller wants one.
//   - *ConnectionError: socket failures, raised by the connection packages.
package nanonis
