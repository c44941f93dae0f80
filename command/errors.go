package command

import "errors"

var (
	// ErrBiasOutOfRange indicates a bias outside of [-10, 10] V.
	ErrBiasOutOfRange = errors.New("bias out of range [-10, 10] V")

	// ErrNegativeWavelength indicates a negative spectrometer center wavelength.
	ErrNegativeWavelength = errors.New("wavelength should not be negative, 0 selects the zeroth order")

	// ErrInvalidSI indicates a value that is neither a number nor a number with an SI prefix.
	ErrInvalidSI = errors.New("invalid value, expected a number with an optional m, u, n, p or f suffix")

	// ErrUnexpectedReply indicates a reply whose decoded values do not have the expected shape.
	ErrUnexpectedReply = errors.New("unexpected reply")
)
