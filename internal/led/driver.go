// Package led holds the output drivers. Every driver consumes one brightness
// per LED in [0,1], already in wiring order.
package led

import (
	"errors"
	"fmt"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes a frame to hardware. len(frame) must equal the LED count.
	Write(frame []float64) error
	// Close releases resources.
	Close() error
}

var ErrClosed = errors.New("led: driver closed")

// FrameSizeError reports a frame whose length does not match the driver.
type FrameSizeError struct {
	Got, Want int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("led: frame has %d values, driver expects %d", e.Got, e.Want)
}

// to8 converts a level to an 8-bit duty.
func to8(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return byte(v*255 + 0.5)
	}
}
