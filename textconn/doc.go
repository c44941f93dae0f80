// Package textconn implements the line-oriented ASCII protocol spoken by the spectrometer control server.
//
// A command is sent as text followed by the terminator, "\n" by default. The reply is read until the
// terminator appears and everything received up to that point is returned. Drain discards stale
// replies left on the socket by an earlier command.
package textconn
