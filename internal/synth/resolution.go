package synth

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultResolution = "1920x1080"

// ParseResolution parses a "WIDTHxHEIGHT" string. An empty string yields the
// default resolution.
func ParseResolution(s string) (width, height int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultResolution
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	width, err = strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	height, err = strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %q must be positive", ErrInvalidResolution, s)
	}
	return width, height, nil
}
