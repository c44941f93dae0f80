package util

import (
	"errors"
	"net"
	"os"
	"time"
)

// DrainConn reads and discards data from conn until no byte arrives within timeout.
// It returns the number of discarded bytes and clears the read deadline before returning.
func DrainConn(conn net.Conn, timeout time.Duration, bufSize int) (int, error) {
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	buf := make([]byte, bufSize)
	total := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return total, err
		}

		n, err := conn.Read(buf)
		total += n
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return total, nil
		}

		return total, err
	}
}
