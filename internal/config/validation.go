package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

// maxModuleThreads mirrors executor.MaxThreads; config cannot import executor.
const maxModuleThreads = 16

// Validate checks a defaulted configuration for impossible values.
func Validate(cfg *Config) error {
	if cfg.Hub.ModuleThreads < 1 || cfg.Hub.ModuleThreads > maxModuleThreads {
		return invalid("hub.module_threads", fmt.Sprintf("must be between 1 and %d", maxModuleThreads))
	}

	switch cfg.HitQueue.RetryBackoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return invalid("hit_queue.retry_backoff", fmt.Sprintf("unknown mode %q", cfg.HitQueue.RetryBackoff))
	}

	durations := []struct {
		field string
		value string
	}{
		{"hub.dispose_timeout", cfg.Hub.DisposeTimeout},
		{"hit_queue.retry_delay", cfg.HitQueue.RetryDelay},
		{"hit_queue.retry_max_delay", cfg.HitQueue.RetryMaxDelay},
		{"network.connect_timeout", cfg.Network.ConnectTimeout},
		{"network.read_timeout", cfg.Network.ReadTimeout},
		{"network.breaker.open_timeout", cfg.Network.Breaker.OpenTimeout},
		{"scheduler.queue_sample_interval", cfg.Scheduler.QueueSampleInterval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return invalid(d.field, fmt.Sprintf("invalid duration %q", d.value))
		}
		if parsed <= 0 {
			return invalid(d.field, "must be positive")
		}
	}

	if cfg.Assurance.Enabled && cfg.Assurance.NATSURL == "" {
		return invalid("assurance.nats_url", "required when assurance is enabled")
	}

	seen := make(map[string]struct{}, len(cfg.Rules))
	for i, r := range cfg.Rules {
		if r.ID == "" {
			return invalid(fmt.Sprintf("rules[%d].id", i), "cannot be empty")
		}
		if _, dup := seen[r.ID]; dup {
			return invalid(fmt.Sprintf("rules[%d].id", i), fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = struct{}{}
		if _, err := r.Compile(); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid rule").
				Fatal().
				WithContext("rule", r.ID).
				Build()
		}
	}
	return nil
}

func invalid(field, reason string) error {
	return errors.ValidationError(fmt.Sprintf("%s: %s", field, reason)).
		WithContext("field", field).
		Build()
}

// mustDuration parses a duration that Validate has already accepted.
func mustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DisposeTimeout returns hub.dispose_timeout as a duration.
func (c *Config) DisposeTimeout() time.Duration {
	return mustDuration(c.Hub.DisposeTimeout, DefaultDisposeTimeout)
}

// RetryDelay returns hit_queue.retry_delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return mustDuration(c.HitQueue.RetryDelay, DefaultRetryDelay)
}

// RetryMaxDelay returns hit_queue.retry_max_delay as a duration.
func (c *Config) RetryMaxDelay() time.Duration {
	return mustDuration(c.HitQueue.RetryMaxDelay, DefaultRetryMaxDelay)
}

// ConnectTimeout returns network.connect_timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return mustDuration(c.Network.ConnectTimeout, DefaultConnectTimeout)
}

// ReadTimeout returns network.read_timeout as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return mustDuration(c.Network.ReadTimeout, DefaultReadTimeout)
}

// BreakerOpenTimeout returns network.breaker.open_timeout as a duration.
func (c *Config) BreakerOpenTimeout() time.Duration {
	return mustDuration(c.Network.Breaker.OpenTimeout, DefaultBreakerOpenTimeout)
}

// QueueSampleInterval returns scheduler.queue_sample_interval as a duration.
func (c *Config) QueueSampleInterval() time.Duration {
	return mustDuration(c.Scheduler.QueueSampleInterval, DefaultQueueSampleInterval)
}
