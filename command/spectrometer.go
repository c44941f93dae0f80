package command

import (
	"fmt"
	"math"
	"strings"
)

// Querier sends a text command and returns its reply. *textconn.Connection satisfies it.
type Querier interface {
	Query(cmd string) (string, error)
}

// Spectrometer wraps the text commands of the spectrometer server.
type Spectrometer struct {
	conn Querier
}

// NewSpectrometer returns a Spectrometer that queries conn.
func NewSpectrometer(conn Querier) *Spectrometer {
	return &Spectrometer{conn: conn}
}

// SetWavelength sets the center wavelength of the current grating in nanometers. Zero selects the
// zeroth order reflection. The reply is returned without its terminator.
func (s *Spectrometer) SetWavelength(nm float64) (string, error) {
	if nm < 0 || math.IsNaN(nm) {
		return "", fmt.Errorf("%w: %g", ErrNegativeWavelength, nm)
	}

	return s.Raw(fmt.Sprintf("SWL %.5f", nm))
}

// Raw sends cmd as is and returns the reply without trailing line breaks.
func (s *Spectrometer) Raw(cmd string) (string, error) {
	reply, err := s.conn.Query(cmd)
	if err != nil {
		return reply, err
	}

	return strings.TrimRight(reply, "\r\n"), nil
}
