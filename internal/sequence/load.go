package sequence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/branchlight/internal/schema"
)

// Version is the only program format understood.
const Version = "show.v1"

// Parse decodes and validates a YAML program.
func Parse(data []byte) (Program, error) {
	var prog Program
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return Program{}, fmt.Errorf("parse show: %w", err)
	}
	if err := prog.Validate(); err != nil {
		return Program{}, err
	}
	return prog, nil
}

// LoadFile reads a program from path.
func LoadFile(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}
	prog, err := Parse(data)
	if err != nil {
		return Program{}, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Validate checks animation and parameter names against the registry.
func (p Program) Validate() error {
	if p.Version != "" && p.Version != Version {
		return fmt.Errorf("unsupported show version %q", p.Version)
	}
	if len(p.Clips) == 0 {
		return fmt.Errorf("show has no clips")
	}
	for i, c := range p.Clips {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if _, ok := schema.FindAnimByName(c.Animation); !ok {
			return fmt.Errorf("clip %s: unknown animation %q", label, c.Animation)
		}
		if c.Follower != "" {
			if _, ok := schema.FindAnimByName(c.Follower); !ok {
				return fmt.Errorf("clip %s: unknown follower animation %q", label, c.Follower)
			}
		}
		if c.DurationS <= 0 {
			return fmt.Errorf("clip %s: duration_s must be positive", label)
		}
		if c.XFadeS < 0 || c.XFadeS > c.DurationS {
			return fmt.Errorf("clip %s: xfade_s must be within [0, duration_s]", label)
		}
		for name := range c.Params {
			pd, ok := schema.FindParamByName(name)
			if !ok || pd.Kind == schema.Bool {
				return fmt.Errorf("clip %s: %q is not a numeric parameter", label, name)
			}
		}
		for name := range c.Bools {
			pd, ok := schema.FindParamByName(name)
			if !ok || pd.Kind != schema.Bool {
				return fmt.Errorf("clip %s: %q is not a boolean parameter", label, name)
			}
		}
	}
	return nil
}
