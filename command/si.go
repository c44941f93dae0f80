package command

import (
	"fmt"
	"strconv"
	"strings"
)

var siPrefixes = map[byte]float64{
	'm': 1e-3,
	'u': 1e-6,
	'n': 1e-9,
	'p': 1e-12,
	'f': 1e-15,
}

// ParseSI parses a number with an optional SI prefix suffix, e.g. "50m" is 0.05 and "-3.5n" is -3.5e-9.
func ParseSI(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidSI
	}

	scale := 1.0
	if f, ok := siPrefixes[s[len(s)-1]]; ok {
		scale = f
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSI, s)
	}

	return v * scale, nil
}
