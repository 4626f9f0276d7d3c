package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"
)

// NRZ drives a WS281x-style strip over SPI. Each LED is written as the same
// level on every color channel.
type NRZ struct {
	mu       sync.Mutex
	dev      *nrzled.Dev
	port     spi.PortCloser
	count    int
	channels int
	raw      []byte
}

// NewNRZ wraps an SPI port. channels is 3 (RGB) or 4 (RGBW).
func NewNRZ(port spi.PortCloser, count, channels int, freq physic.Frequency) (*NRZ, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if channels != 3 && channels != 4 {
		channels = 3
	}
	if freq == 0 {
		freq = 2500 * physic.KiloHertz
	}
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{NumPixels: count, Channels: channels, Freq: freq})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZ{dev: dev, port: port, count: count, channels: channels, raw: make([]byte, count*channels)}, nil
}

func (n *NRZ) String() string { return n.dev.String() }

func (n *NRZ) Write(frame []float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return ErrClosed
	}
	if len(frame) != n.count {
		return &FrameSizeError{Got: len(frame), Want: n.count}
	}
	for i, v := range frame {
		b := to8(v)
		for c := 0; c < n.channels; c++ {
			n.raw[i*n.channels+c] = b
		}
	}
	if _, err := n.dev.Write(n.raw); err != nil {
		return fmt.Errorf("nrzled write: %w", err)
	}
	return nil
}

func (n *NRZ) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return nil
	}
	_ = n.dev.Halt()
	n.dev = nil
	return n.port.Close()
}
