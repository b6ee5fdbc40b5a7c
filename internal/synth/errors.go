package synth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidColor      = errors.New("invalid color")
	ErrInvalidResolution = errors.New("invalid resolution")
)

// SynthesisError reports a render that could not produce a pixel buffer.
type SynthesisError struct {
	Style string
	Err   error
}

func (e *SynthesisError) Error() string {
	if e.Style == "" {
		return fmt.Sprintf("synthesis failed: %v", e.Err)
	}
	return fmt.Sprintf("synthesis failed (style %q): %v", e.Style, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
