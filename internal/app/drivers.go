package app

import (
	"fmt"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/led"
)

// OpenDriver builds the configured LED driver for count LEDs.
func OpenDriver(cfg *config.Config, count int) (led.Driver, error) {
	switch cfg.Driver {
	case "", "sim":
		return led.NewSim(count), nil
	case "nrz":
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph init: %w", err)
		}
		port, err := spireg.Open(cfg.SPI.Dev)
		if err != nil {
			return nil, fmt.Errorf("open spi %q: %w", cfg.SPI.Dev, err)
		}
		drv, err := led.NewNRZ(port, count, cfg.SPI.Channels, physic.Frequency(cfg.SPI.SpeedHz)*physic.Hertz)
		if err != nil {
			port.Close()
			return nil, err
		}
		return drv, nil
	case "pca9685":
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph init: %w", err)
		}
		bus, err := i2creg.Open(cfg.PCA9685.Bus)
		if err != nil {
			return nil, fmt.Errorf("open i2c %q: %w", cfg.PCA9685.Bus, err)
		}
		var m led.ChannelMap
		if len(cfg.PCA9685.ChannelMap) > 0 {
			m = led.ChannelMap(cfg.PCA9685.ChannelMap)
		}
		drv, err := led.OpenPCA9685(bus, cfg.PCA9685.Addresses, count, m, physic.Frequency(cfg.PCA9685.FreqHz)*physic.Hertz)
		if err != nil {
			bus.Close()
			return nil, err
		}
		return drv, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
