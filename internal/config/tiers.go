package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// TiersConfig represents the structure of the tiers.yaml file. Tier
// thresholds are a presentation policy: tuning them must never require
// touching resolution logic.
type TiersConfig struct {
	Tiers []TierBand `yaml:"tiers"`
}

// TierBand defines one display band. A percentile lands in the highest
// band whose Min it reaches.
type TierBand struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Color string  `yaml:"color"`
	Class string  `yaml:"class"`
}

// LoadTiersConfig loads the tier threshold file at path. Returns nil
// without error if the file doesn't exist; callers fall back to the
// built-in bands.
func LoadTiersConfig(path string) (*TiersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Tier overrides are optional
			return nil, nil
		}
		return nil, err
	}

	var cfg TiersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
