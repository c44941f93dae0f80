// Package spmconn implements a client connection to a Nanonis SPM control server.
//
// A Connection owns one persistent TCP socket and runs one request/response exchange at a time.
// Each exchange sends a fully assembled frame in a single write, reads the response frame and
// decodes it against the caller's schema:
//
//	cfg, _ := spmconn.NewConnectionConfig("127.0.0.1", 6501)
//	conn, _ := spmconn.NewConnection(cfg)
//	_ = conn.Open(ctx)
//	resp, err := conn.Exchange("Bias.Get", nil, wire.MustSchema(wire.Float32))
//
// Read policies:
//   - ReadComplete (default): reads the 40-byte header, then keeps reading until the declared body
//     has arrived. Bodies above the configured maximum are rejected before they are read.
//   - ReadSingle: performs exactly one read into a buffer of the configured size. A response that
//     does not fit returns a *nanonis.TruncationError.
//
// Socket failures close the connection and surface as *nanonis.ConnectionError. Commands are never
// retried and the connection is never re-established automatically, since resending a command may
// repeat a physical action on the instrument.
package spmconn
