package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// QoS keys understood by Config.QoS.
const (
	QoSEvents   = "events"
	QoSSchedule = "schedule"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker" yaml:"broker"`
	ClientID    string          `json:"client_id" yaml:"client_id"`
	Username    string          `json:"username" yaml:"username"`
	Password    string          `json:"password" yaml:"password"`
	TopicPrefix string          `json:"topic_prefix" yaml:"topic_prefix"`
	UseTLS      bool            `json:"use_tls" yaml:"use_tls"`
	ClientCert  string          `json:"client_cert" yaml:"client_cert"`
	ClientKey   string          `json:"client_key" yaml:"client_key"`
	CABundle    string          `json:"ca_bundle" yaml:"ca_bundle"`
	AuthMethod  string          `json:"auth_method" yaml:"auth_method"`
	QoS         map[string]byte `json:"qos" yaml:"qos"`
	LWTPayload  string          `json:"lwt_payload" yaml:"lwt_payload"`
	MaxRetries  int             `json:"max_retries" yaml:"max_retries"`
	BackoffMS   int             `json:"backoff_ms" yaml:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-" yaml:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "or"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.ClientID == "" {
		c.ClientID = "orplan-" + uuid.NewString()[:8]
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.LWTPayload == "" {
		c.LWTPayload = "offline"
	}
}

// Validate checks the settings of an enabled client.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt: qos %s must be 0, 1 or 2", k)
		}
	}
	return nil
}

// EventTopic is the wildcard subscription for incoming intra-day events.
func (c Config) EventTopic() string { return c.TopicPrefix + "/events/+" }

// ScheduleTopic carries the retained accepted schedule.
func (c Config) ScheduleTopic() string { return c.TopicPrefix + "/schedule" }

// RejectedTopic carries re-plans that kept the previous schedule.
func (c Config) RejectedTopic() string { return c.TopicPrefix + "/schedule/rejected" }

// StatusTopic carries the retained online/offline status of the planner.
func (c Config) StatusTopic() string { return c.TopicPrefix + "/status" }

// qos defaults to at-least-once for keys left unset.
func (c Config) qos(key string) byte {
	if q, ok := c.QoS[key]; ok {
		return q
	}
	return 1
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.TopicPrefix != "" {
		opts.SetWill(cfg.StatusTopic(), cfg.LWTPayload, 1, true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
