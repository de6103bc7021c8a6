package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the solver.
type Config struct {
	// HorizonMinutes bounds every start and end. It must be wide enough that
	// cascading delays never push a case past it.
	HorizonMinutes int `json:"horizon_minutes" yaml:"horizon_minutes"`
	// SeverityWeightFactor multiplies severity into the start-time weight.
	SeverityWeightFactor int `json:"severity_weight_factor" yaml:"severity_weight_factor"`
	// TimeLimitMS caps the wall-clock time of one solve.
	TimeLimitMS int `json:"time_limit_ms" yaml:"time_limit_ms"`
	// NodeLimit caps the number of search nodes of one solve.
	NodeLimit int `json:"node_limit" yaml:"node_limit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HorizonMinutes == 0 {
		c.HorizonMinutes = 48 * 60
	}
	if c.SeverityWeightFactor == 0 {
		c.SeverityWeightFactor = 2
	}
	if c.TimeLimitMS == 0 {
		c.TimeLimitMS = 2000
	}
	if c.NodeLimit == 0 {
		c.NodeLimit = 20000
	}
}

// Validate checks the limits are usable.
func (c Config) Validate() error {
	if c.HorizonMinutes <= 0 {
		return errors.New("horizon_minutes must be positive")
	}
	if c.SeverityWeightFactor < 0 {
		return errors.New("severity_weight_factor must not be negative")
	}
	if c.TimeLimitMS <= 0 || c.NodeLimit <= 0 {
		return errors.New("time_limit_ms and node_limit must be positive")
	}
	return nil
}

// TimeLimit returns the wall-clock limit as a duration.
func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitMS) * time.Millisecond
}

// LoadConfig loads a solver Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeConfig(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeConfig reads a Config from r in the given format and applies defaults.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
