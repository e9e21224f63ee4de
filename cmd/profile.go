package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunProfile holds headless-runner options loadable from a YAML file.
// Zero-valued fields mean "not set" and do not override CLI flags.
type RunProfile struct {
	LogLevel    string   `yaml:"log_level"`
	DurationMs  int64    `yaml:"duration_ms"`
	SpeedLimit  *float64 `yaml:"speed_limit"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

// LoadRunProfile reads and parses a YAML run profile.
func LoadRunProfile(path string) (*RunProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run profile: %w", err)
	}
	var profile RunProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing run profile: %w", err)
	}
	return &profile, nil
}
