package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/orplan/core/history"
	"github.com/kilianp07/orplan/core/metrics"
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/prediction"
	"github.com/kilianp07/orplan/core/scheduler"
	"github.com/kilianp07/orplan/infra/monitoring"
	"github.com/kilianp07/orplan/infra/mqtt"
)

// Config is the full service configuration.
type Config struct {
	Topology   model.Topology    `json:"topology"`
	Scheduler  scheduler.Config  `json:"scheduler"`
	Prediction prediction.Config `json:"prediction"`
	History    history.Config    `json:"history"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	HTTP       HTTPConfig        `json:"http"`
	Sentry     monitoring.Config `json:"sentry"`
	// CasesFile optionally seeds the planner with a roster at startup.
	CasesFile string `json:"cases_file"`
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// and returns the validated configuration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Topology.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Prediction.SetDefaults()
	c.History.SetDefaults()
	c.HTTP.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section and the constraints spanning sections.
func (c Config) Validate() error {
	if err := c.Topology.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if end := c.Topology.Constants.DayEnd; int(end) > c.Scheduler.HorizonMinutes {
		return fmt.Errorf("day_end %s lies beyond the %d minute horizon", end, c.Scheduler.HorizonMinutes)
	}
	if err := c.Prediction.Validate(); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}
