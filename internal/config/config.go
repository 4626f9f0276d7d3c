// Package config loads the node configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

type PowerCfg struct {
	LEDmA    float64 `yaml:"led_ma" json:"led_ma" jsonschema:"description=current of one LED at full duty"`
	BudgetmA float64 `yaml:"budget_ma" json:"budget_ma" jsonschema:"description=0 disables the limiter"`
	Knee     float64 `yaml:"knee,omitempty" json:"knee,omitempty" jsonschema:"description=fraction of the budget where limiting starts"`
}

type SPI struct {
	Dev      string `yaml:"dev" json:"dev"`           // e.g. /dev/spidev0.0, empty picks the first port
	SpeedHz  int    `yaml:"speed_hz" json:"speed_hz"` // e.g. 2500000
	Channels int    `yaml:"channels" json:"channels" jsonschema:"enum=3,enum=4"`
}

type PCA9685 struct {
	Bus        string   `yaml:"bus" json:"bus"`
	Addresses  []uint16 `yaml:"addresses" json:"addresses"`
	FreqHz     int      `yaml:"freq_hz" json:"freq_hz"`
	ChannelMap []int    `yaml:"channel_map,omitempty" json:"channel_map,omitempty" jsonschema:"description=logical LED per physical channel; -1 leaves a channel unused"`
}

type Wiring struct {
	FlipOddBranches bool `yaml:"flip_odd_branches" json:"flip_odd_branches"`
}

type Config struct {
	Role      string `yaml:"role" json:"role" jsonschema:"enum=leader,enum=follower"`
	Addr      string `yaml:"addr" json:"addr"`
	LeaderURL string `yaml:"leader_url,omitempty" json:"leader_url,omitempty" jsonschema:"description=ws:// URL of the leader /link endpoint"`

	FPS            int     `yaml:"fps" json:"fps" jsonschema:"minimum=1,maximum=240"`
	Brightness     float64 `yaml:"brightness" json:"brightness" jsonschema:"minimum=0,maximum=1"`
	Gamma          float64 `yaml:"gamma,omitempty" json:"gamma,omitempty" jsonschema:"description=output gamma; 0 or 1 keeps levels linear"`
	LEDCount       int     `yaml:"led_count" json:"led_count" jsonschema:"minimum=1,maximum=28"`
	SyncIntervalMS int     `yaml:"sync_interval_ms" json:"sync_interval_ms"`

	Driver  string  `yaml:"driver" json:"driver" jsonschema:"enum=sim,enum=nrz,enum=pca9685"`
	SPI     SPI     `yaml:"spi,omitempty" json:"spi,omitempty"`
	PCA9685 PCA9685 `yaml:"pca9685,omitempty" json:"pca9685,omitempty"`
	Wiring  Wiring  `yaml:"wiring" json:"wiring"`

	Power    PowerCfg `yaml:"power" json:"power"`
	Show     string   `yaml:"show,omitempty" json:"show,omitempty" jsonschema:"description=path to a show.v1 program"`
	LogLevel string   `yaml:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns a leader driving the simulator.
func Default() *Config {
	return &Config{
		Role:           "leader",
		Addr:           ":8080",
		FPS:            60,
		Brightness:     1,
		LEDCount:       28,
		SyncIntervalMS: 1000,
		Driver:         "sim",
		SPI:            SPI{SpeedHz: 2500000, Channels: 3},
		PCA9685:        PCA9685{Bus: "", Addresses: []uint16{0x40, 0x41}, FreqHz: 1000},
		Power:          PowerCfg{LEDmA: 20},
		LogLevel:       "info",
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes c atomically.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Config) Validate() error {
	switch c.Role {
	case "leader":
	case "follower":
		if c.LeaderURL == "" {
			return fmt.Errorf("follower needs leader_url")
		}
	default:
		return fmt.Errorf("role must be leader or follower, got %q", c.Role)
	}
	switch c.Driver {
	case "sim", "pca9685":
	case "nrz":
		if c.SPI.Channels != 3 && c.SPI.Channels != 4 {
			return fmt.Errorf("spi.channels must be 3 or 4")
		}
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.FPS < 1 || c.FPS > 240 {
		return fmt.Errorf("fps out of range: %d", c.FPS)
	}
	if c.LEDCount < 1 || c.LEDCount > 28 {
		return fmt.Errorf("led_count out of range: %d", c.LEDCount)
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		return fmt.Errorf("brightness out of range: %v", c.Brightness)
	}
	return nil
}

// Schema describes the configuration file as JSON Schema.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	s := r.Reflect(&Config{})
	s.Title = "branchlight node configuration"
	return s
}

// SchemaJSON is Schema, indented.
func SchemaJSON() ([]byte, error) {
	b, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
