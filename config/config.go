package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/pkg/retry"
	"github.com/c360/querystream/pkg/tlsutil"
)

// Transport kinds accepted by the driver
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// Config is the driver's full configuration surface
type Config struct {
	// Address is the engine endpoint: host:port for tcp, a ws:// or wss://
	// URL for websocket, a nats:// URL for nats
	Address string `yaml:"address"`

	// Transport selects the transport kind; defaults to tcp
	Transport string `yaml:"transport"`

	// ConnectTimeout bounds the initial dial
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ClientName tags log output; generated when empty
	ClientName string `yaml:"client_name"`

	NATS      NATSConfig      `yaml:"nats"`
	TLS       tlsutil.Config  `yaml:"tls"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	WriteRate WriteRateConfig `yaml:"write_rate"`
	Pool      PoolConfig      `yaml:"pool"`
}

// NATSConfig configures the NATS transport
type NATSConfig struct {
	// SubjectPrefix names the engine's service subjects
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ReconnectConfig controls redialing on new-query writes
type ReconnectConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	Factor    float64       `yaml:"factor"`
	Jitter    bool          `yaml:"jitter"`
}

// WriteRateConfig caps outbound query frames; zero disables the limit
type WriteRateConfig struct {
	EventsPerSec float64 `yaml:"events_per_sec"`
	Burst        int     `yaml:"burst"`
}

// PoolConfig sizes the delivery worker pool
type PoolConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Default returns a configuration suitable for a local engine
func Default() *Config {
	return &Config{
		Address:        "localhost:28015",
		Transport:      TransportTCP,
		ConnectTimeout: 10 * time.Second,
		NATS: NATSConfig{
			SubjectPrefix: "querystream",
		},
		Reconnect: ReconnectConfig{
			Enabled:  true,
			Attempts: 1,
		},
		Pool: PoolConfig{
			Workers:   8,
			QueueSize: 1024,
		},
	}
}

// Load reads a YAML config file, applies environment overrides, and
// validates the result
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from QUERYSTREAM_* environment variables
func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"QUERYSTREAM_ADDRESS":     &c.Address,
		"QUERYSTREAM_TRANSPORT":   &c.Transport,
		"QUERYSTREAM_CLIENT_NAME": &c.ClientName,
		"QUERYSTREAM_NATS_PREFIX": &c.NATS.SubjectPrefix,
	}
	for key, target := range overrides {
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Config", "applyEnv", "validate override")
		}
		*target = val
	}
	return nil
}

// Validate rejects configurations the driver cannot run with
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: address is required", errors.ErrMissingConfig),
			"Config", "Validate", "check address")
	}

	switch c.Transport {
	case TransportTCP, TransportWebSocket, TransportNATS:
	case "":
		c.Transport = TransportTCP
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown transport %q", errors.ErrInvalidConfig, c.Transport),
			"Config", "Validate", "check transport")
	}

	if c.ConnectTimeout < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: connect_timeout cannot be negative", errors.ErrInvalidConfig),
			"Config", "Validate", "check timeout")
	}
	if c.WriteRate.EventsPerSec < 0 || c.WriteRate.Burst < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: write_rate values cannot be negative", errors.ErrInvalidConfig),
			"Config", "Validate", "check write rate")
	}
	if c.WriteRate.EventsPerSec > 0 && c.WriteRate.Burst < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: write_rate.burst must be at least 1 when a rate is set", errors.ErrInvalidConfig),
			"Config", "Validate", "check write rate")
	}
	if c.Pool.Workers < 0 || c.Pool.QueueSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: pool sizes cannot be negative", errors.ErrInvalidConfig),
			"Config", "Validate", "check pool")
	}
	return nil
}

// RetryPolicy converts the reconnect section into a retry policy
func (c *Config) RetryPolicy() retry.Policy {
	r := c.Reconnect
	if r.Attempts <= 1 && r.BaseDelay == 0 {
		return retry.Single()
	}
	return retry.Policy{
		Attempts:  r.Attempts,
		BaseDelay: r.BaseDelay,
		MaxDelay:  r.MaxDelay,
		Factor:    r.Factor,
		Jitter:    r.Jitter,
	}
}
