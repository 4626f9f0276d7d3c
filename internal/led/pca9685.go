package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
)

const (
	// ChannelsPerChip is the number of PWM outputs on one PCA9685.
	ChannelsPerChip = 16
	pwmMax          = 4095
)

// PWMChip is the subset of a PCA9685 the driver uses.
type PWMChip interface {
	SetPwm(channel int, on, off gpio.Duty) error
	SetPwmFreq(freq physic.Frequency) error
}

// ChannelMap assigns a logical LED to each physical channel, chip by chip.
// -1 leaves a channel unused.
type ChannelMap []int

// IdentityMap maps LED i to channel i.
func IdentityMap(count int) ChannelMap {
	m := make(ChannelMap, count)
	for i := range m {
		m[i] = i
	}
	return m
}

// Inverse returns, for each logical LED below count, its physical channel or
// -1. Duplicate or out-of-range assignments are errors.
func (m ChannelMap) Inverse(count int) ([]int, error) {
	inv := make([]int, count)
	for i := range inv {
		inv[i] = -1
	}
	for phys, logical := range m {
		if logical < 0 {
			continue
		}
		if logical >= count {
			return nil, fmt.Errorf("channel %d maps to LED %d, only %d LEDs", phys, logical, count)
		}
		if inv[logical] != -1 {
			return nil, fmt.Errorf("LED %d mapped to channels %d and %d", logical, inv[logical], phys)
		}
		inv[logical] = phys
	}
	return inv, nil
}

// PCA9685 drives LEDs directly from one or more 16-channel PWM chips.
type PCA9685 struct {
	mu    sync.Mutex
	chips []PWMChip
	inv   []int
	bus   i2c.BusCloser
	count int
}

// NewPCA9685 builds a driver over chips. A nil m uses the identity mapping.
func NewPCA9685(chips []PWMChip, count int, m ChannelMap, freq physic.Frequency) (*PCA9685, error) {
	if len(chips) == 0 {
		return nil, fmt.Errorf("pca9685: no chips")
	}
	if m == nil {
		m = IdentityMap(count)
	}
	if len(m) > len(chips)*ChannelsPerChip {
		return nil, fmt.Errorf("pca9685: map has %d channels, chips provide %d", len(m), len(chips)*ChannelsPerChip)
	}
	inv, err := m.Inverse(count)
	if err != nil {
		return nil, fmt.Errorf("pca9685: %w", err)
	}
	if freq == 0 {
		freq = 1000 * physic.Hertz
	}
	for i, c := range chips {
		if err := c.SetPwmFreq(freq); err != nil {
			return nil, fmt.Errorf("pca9685 chip %d: %w", i, err)
		}
	}
	return &PCA9685{chips: chips, inv: inv, count: count}, nil
}

// OpenPCA9685 opens the chips at addrs on bus.
func OpenPCA9685(bus i2c.BusCloser, addrs []uint16, count int, m ChannelMap, freq physic.Frequency) (*PCA9685, error) {
	chips := make([]PWMChip, 0, len(addrs))
	for _, a := range addrs {
		d, err := pca9685.NewI2C(bus, a)
		if err != nil {
			return nil, fmt.Errorf("pca9685 at 0x%02x: %w", a, err)
		}
		chips = append(chips, d)
	}
	p, err := NewPCA9685(chips, count, m, freq)
	if err != nil {
		return nil, err
	}
	p.bus = bus
	return p, nil
}

func (p *PCA9685) Write(frame []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chips == nil {
		return ErrClosed
	}
	if len(frame) != p.count {
		return &FrameSizeError{Got: len(frame), Want: p.count}
	}
	for led, phys := range p.inv {
		if phys < 0 {
			continue
		}
		v := frame[led]
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		chip := p.chips[phys/ChannelsPerChip]
		if err := chip.SetPwm(phys%ChannelsPerChip, 0, gpio.Duty(v*pwmMax)); err != nil {
			return fmt.Errorf("pca9685 channel %d: %w", phys, err)
		}
	}
	return nil
}

func (p *PCA9685) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chips == nil {
		return nil
	}
	for _, c := range p.chips {
		for ch := 0; ch < ChannelsPerChip; ch++ {
			_ = c.SetPwm(ch, 0, 0)
		}
	}
	p.chips = nil
	if p.bus != nil {
		return p.bus.Close()
	}
	return nil
}
