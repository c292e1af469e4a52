package config

import "time"

// Defaults not expressible as zero values.
const (
	DefaultHubName             = "mobilecore"
	DefaultDisposeTimeout      = 5 * time.Second
	DefaultRetryDelay          = 30 * time.Second
	DefaultRetryMaxDelay       = 5 * time.Minute
	DefaultConnectTimeout      = 5 * time.Second
	DefaultReadTimeout         = 5 * time.Second
	DefaultBreakerFailures     = 5
	DefaultBreakerOpenTimeout  = 30 * time.Second
	DefaultQueueSampleInterval = 15 * time.Second
	DefaultAssuranceSubject    = "mobilecore.events"
	DefaultAdminListen         = "127.0.0.1:8089"
	DefaultDataDir             = "./data"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// appliers runs in order; later domains may rely on earlier ones.
var appliers = []DefaultApplier{
	&hubDefaults{},
	&hitQueueDefaults{},
	&networkDefaults{},
	&serviceDefaults{},
	&logDefaults{},
}

// ApplyDefaults fills in unset fields across all configuration domains.
func ApplyDefaults(cfg *Config) error {
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

type hubDefaults struct{}

func (h *hubDefaults) Domain() string { return "hub" }

func (h *hubDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Hub.Name == "" {
		cfg.Hub.Name = DefaultHubName
	}
	if cfg.Hub.ModuleThreads <= 0 {
		cfg.Hub.ModuleThreads = 1
	}
	if cfg.Hub.DisposeTimeout == "" {
		cfg.Hub.DisposeTimeout = DefaultDisposeTimeout.String()
	}
	return nil
}

type hitQueueDefaults struct{}

func (h *hitQueueDefaults) Domain() string { return "hit_queue" }

func (h *hitQueueDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.HitQueue.DataDir == "" {
		cfg.HitQueue.DataDir = DefaultDataDir
	}
	if cfg.HitQueue.RetryBackoff == "" {
		cfg.HitQueue.RetryBackoff = RetryBackoffFixed
	} else if m := NormalizeRetryBackoff(string(cfg.HitQueue.RetryBackoff)); m != "" {
		cfg.HitQueue.RetryBackoff = m
	}
	// unknown modes are left untouched so validation can report them
	if cfg.HitQueue.RetryDelay == "" {
		cfg.HitQueue.RetryDelay = DefaultRetryDelay.String()
	}
	if cfg.HitQueue.RetryMaxDelay == "" {
		cfg.HitQueue.RetryMaxDelay = DefaultRetryMaxDelay.String()
	}
	return nil
}

type networkDefaults struct{}

func (n *networkDefaults) Domain() string { return "network" }

func (n *networkDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Network.ConnectTimeout == "" {
		cfg.Network.ConnectTimeout = DefaultConnectTimeout.String()
	}
	if cfg.Network.ReadTimeout == "" {
		cfg.Network.ReadTimeout = DefaultReadTimeout.String()
	}
	if cfg.Network.Breaker.MaxFailures == 0 {
		cfg.Network.Breaker.MaxFailures = DefaultBreakerFailures
	}
	if cfg.Network.Breaker.OpenTimeout == "" {
		cfg.Network.Breaker.OpenTimeout = DefaultBreakerOpenTimeout.String()
	}
	return nil
}

type serviceDefaults struct{}

func (s *serviceDefaults) Domain() string { return "services" }

func (s *serviceDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Assurance.SubjectPrefix == "" {
		cfg.Assurance.SubjectPrefix = DefaultAssuranceSubject
	}
	if cfg.Admin.Listen == "" {
		cfg.Admin.Listen = DefaultAdminListen
	}
	if cfg.Scheduler.QueueSampleInterval == "" {
		cfg.Scheduler.QueueSampleInterval = DefaultQueueSampleInterval.String()
	}
	if cfg.SDK == nil {
		cfg.SDK = map[string]any{}
	}
	return nil
}

type logDefaults struct{}

func (l *logDefaults) Domain() string { return "log" }

func (l *logDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Log.Level = NormalizeLogLevel(string(cfg.Log.Level))
	cfg.Log.Format = NormalizeLogFormat(string(cfg.Log.Format))
	return nil
}
