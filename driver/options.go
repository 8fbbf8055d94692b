package driver

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/metric"
	"github.com/c360/querystream/pkg/retry"
)

// Option configures a Connection during Connect
type Option func(*Connection) error

// WithLogger sets the structured logger for the connection and its cursors
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) error {
		if logger == nil {
			return errors.WrapInvalid(errors.New("logger cannot be nil"),
				"Connection", "WithLogger", "validate option")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics exposes the connection's metrics through a registry so they
// can be scraped. Without this option metrics are still recorded but stay
// unregistered.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Connection) error {
		if registry == nil {
			return errors.WrapInvalid(errors.New("metrics registry cannot be nil"),
				"Connection", "WithMetrics", "validate option")
		}
		c.metrics = registry.CoreMetrics()
		return nil
	}
}

// WithAutoReconnect enables redialing under the given policy when a new
// query hits a dead transport
func WithAutoReconnect(policy retry.Policy) Option {
	return func(c *Connection) error {
		c.reconnect = true
		c.reconnectPolicy = policy
		return nil
	}
}

// WithoutReconnect disables redialing entirely; a dead transport fails new
// queries immediately
func WithoutReconnect() Option {
	return func(c *Connection) error {
		c.reconnect = false
		return nil
	}
}

// WithWriteRateLimit caps outbound query frames at eventsPerSec with the
// given burst
func WithWriteRateLimit(eventsPerSec float64, burst int) Option {
	return func(c *Connection) error {
		if eventsPerSec <= 0 || burst < 1 {
			return errors.WrapInvalid(
				fmt.Errorf("invalid rate limit %v/%d", eventsPerSec, burst),
				"Connection", "WithWriteRateLimit", "validate option")
		}
		c.limiter = rate.NewLimiter(rate.Limit(eventsPerSec), burst)
		return nil
	}
}

// WithClientName sets the name used in log attributes
func WithClientName(name string) Option {
	return func(c *Connection) error {
		if name == "" {
			return errors.WrapInvalid(errors.New("client name cannot be empty"),
				"Connection", "WithClientName", "validate option")
		}
		c.clientName = name
		return nil
	}
}

// defaultClientName generates a unique per-connection name
func defaultClientName() string {
	return "querystream-" + uuid.NewString()[:8]
}
