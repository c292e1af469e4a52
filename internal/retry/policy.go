package retry

import (
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

// DefaultNetworkConnectionFailDelay is the pause before a hit that reported a
// transient failure is attempted again.
const DefaultNetworkConnectionFailDelay = 30 * time.Second

// Policy encapsulates the pause applied between attempts of the same hit.
// It is immutable after construction. There is no attempt cap: hits are
// retried until the processor accepts or discards them.
type Policy struct {
	Mode    config.RetryBackoffMode // fixed|linear|exponential
	Initial time.Duration           // base delay
	Max     time.Duration           // cap for growth
}

// DefaultPolicy returns the fixed 30s pause used by hit queues.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffFixed, Initial: DefaultNetworkConnectionFailDelay, Max: DefaultNetworkConnectionFailDelay}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration) Policy {
	p := DefaultPolicy()
	if initial > 0 {
		p.Initial = initial
		if maxDuration <= 0 {
			p.Max = initial
		}
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	default:
		// unknown -> keep default
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds the hit queue policy from the hit_queue section.
func FromConfig(cfg *config.Config) Policy {
	return NewPolicy(cfg.HitQueue.RetryBackoff, cfg.RetryDelay(), cfg.RetryMaxDelay())
}

// Delay returns the pause before retry number retryCount (the first retry
// is 1). Growth is capped at Max.
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		if retryCount > 32 {
			return p.Max
		}
		if d := p.Initial << (retryCount - 1); d > 0 {
			return min(d, p.Max)
		}
		return p.Max
	default:
		return min(time.Duration(retryCount)*p.Initial, p.Max)
	}
}

// Validate rejects policies that would spin without pausing.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.ValidationError("retry initial delay must be positive").Build()
	case p.Max <= 0:
		return errors.ValidationError("retry max delay must be positive").Build()
	case p.Initial > p.Max:
		return errors.ValidationError("retry initial delay exceeds max delay").
			WithContext("initial", p.Initial.String()).
			WithContext("max", p.Max.String()).
			Build()
	}
	return nil
}
