package config

import "errors"

// HTTPConfig configures the schedule API.
type HTTPConfig struct {
	Address string `json:"address"`
	// Token, when set, must be presented as a bearer token on every request.
	Token string `json:"token"`
	// MetricsAddress exposes /metrics on a separate listener when set.
	MetricsAddress string `json:"metrics_address"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// Validate checks the listeners do not collide.
func (c HTTPConfig) Validate() error {
	if c.MetricsAddress != "" && c.MetricsAddress == c.Address {
		return errors.New("http: metrics_address must differ from address")
	}
	return nil
}
