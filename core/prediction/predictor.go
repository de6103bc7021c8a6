package prediction

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kilianp07/orplan/core/model"
)

// ErrPredictionFailed is returned when no estimate could be produced.
var ErrPredictionFailed = errors.New("duration prediction failed")

// Prediction is the outcome of one estimate: either Minutes or Err is set.
type Prediction struct {
	Minutes int
	Err     error
}

// OK reports whether the prediction succeeded.
func (p Prediction) OK() bool { return p.Err == nil }

// Failed builds a failed prediction wrapping ErrPredictionFailed.
func Failed(format string, args ...any) Prediction {
	return Prediction{Err: fmt.Errorf("%w: %s", ErrPredictionFailed, fmt.Sprintf(format, args...))}
}

// DurationPredictor estimates how long a case will take.
type DurationPredictor interface {
	Predict(rec model.CaseRecord) Prediction
}

// Config selects and parameterizes the predictor.
type Config struct {
	// Mode is "linear", "fixed" or a registered mode such as "remote".
	// Fixed always reports a failure so every case receives the fallback
	// duration.
	Mode            string       `json:"mode"`
	FallbackMinutes int          `json:"fallback_minutes"`
	MinMinutes      int          `json:"min_minutes"`
	Linear          LinearModel  `json:"linear"`
	Remote          RemoteConfig `json:"remote"`
}

// RemoteConfig points at an external duration model served over HTTP.
type RemoteConfig struct {
	URL       string `json:"url"`
	TimeoutMS int    `json:"timeout_ms"`
	// OAuth2 client credentials; empty ClientID disables authentication.
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
}

// Factory builds a predictor for a registered mode.
type Factory func(cfg Config) (DurationPredictor, error)

var (
	modesMu sync.RWMutex
	modes   = map[string]Factory{}
)

// Register makes an additional prediction mode available to New.
func Register(mode string, f Factory) error {
	modesMu.Lock()
	defer modesMu.Unlock()
	if _, exists := modes[mode]; exists || mode == "linear" || mode == "fixed" {
		return fmt.Errorf("prediction mode %s already registered", mode)
	}
	modes[mode] = f
	return nil
}

// Modes lists every available prediction mode.
func Modes() []string {
	modesMu.RLock()
	defer modesMu.RUnlock()
	out := []string{"fixed", "linear"}
	for m := range modes {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func lookupMode(mode string) (Factory, bool) {
	modesMu.RLock()
	defer modesMu.RUnlock()
	f, ok := modes[mode]
	return f, ok
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "linear"
	}
	if c.FallbackMinutes == 0 {
		c.FallbackMinutes = 120
	}
	if c.MinMinutes == 0 {
		c.MinMinutes = 30
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !slices.Contains(Modes(), c.Mode) {
		return fmt.Errorf("unknown prediction mode %q (known: %v)", c.Mode, Modes())
	}
	if c.FallbackMinutes <= 0 || c.MinMinutes <= 0 {
		return errors.New("fallback_minutes and min_minutes must be positive")
	}
	return nil
}

// New builds the predictor described by cfg.
func New(cfg Config) (DurationPredictor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case "fixed":
		return FixedPredictor{}, nil
	case "linear":
		return NewLinearPredictor(cfg.Linear, cfg.MinMinutes), nil
	}
	f, _ := lookupMode(cfg.Mode)
	return f(cfg)
}

// Resolve returns the predicted minutes, or fallback when the prediction
// failed. degraded is true when the fallback was used.
func Resolve(p Prediction, fallback int) (minutes int, degraded bool) {
	if p.OK() {
		return p.Minutes, false
	}
	return fallback, true
}
