package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/rules"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "mobilecore.yaml"

// Config represents the application configuration.
type Config struct {
	Hub       HubConfig          `yaml:"hub"`
	HitQueue  HitQueueConfig     `yaml:"hit_queue"`
	Network   NetworkConfig      `yaml:"network"`
	SDK       map[string]any     `yaml:"sdk,omitempty"`   // Initial configuration shared state
	Rules     []rules.Definition `yaml:"rules,omitempty"` // Rules registered by the configuration module
	Assurance AssuranceConfig    `yaml:"assurance"`
	Admin     AdminConfig        `yaml:"admin"`
	Metrics   MetricsConfig      `yaml:"metrics"`
	Scheduler SchedulerConfig    `yaml:"scheduler"`
	Log       LogConfig          `yaml:"log"`
}

// HubConfig configures the event hub and module executors.
type HubConfig struct {
	Name           string `yaml:"name,omitempty"`
	ModuleThreads  int    `yaml:"module_threads,omitempty"`
	DisposeTimeout string `yaml:"dispose_timeout,omitempty"`
}

// HitQueueConfig configures durable hit storage and the retry pause.
type HitQueueConfig struct {
	DataDir       string           `yaml:"data_dir,omitempty"`
	RetryBackoff  RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryDelay    string           `yaml:"retry_delay,omitempty"`
	RetryMaxDelay string           `yaml:"retry_max_delay,omitempty"`
}

// NetworkConfig configures the outbound HTTP transport.
type NetworkConfig struct {
	ConnectTimeout string        `yaml:"connect_timeout,omitempty"`
	ReadTimeout    string        `yaml:"read_timeout,omitempty"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker guarding the transport.
type BreakerConfig struct {
	MaxFailures uint32 `yaml:"max_failures,omitempty"`
	OpenTimeout string `yaml:"open_timeout,omitempty"`
}

// AssuranceConfig configures the NATS event stream sink.
type AssuranceConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// AdminConfig configures the admin HTTP API.
type AdminConfig struct {
	Listen string   `yaml:"listen,omitempty"`
	Tokens []string `yaml:"tokens,omitempty"` // Bearer tokens accepted for mutating endpoints
}

// MetricsConfig toggles the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SchedulerConfig configures periodic daemon jobs.
type SchedulerConfig struct {
	QueueSampleInterval string `yaml:"queue_sample_interval,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file, applies defaults and validates it.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigError("configuration file not found").
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML content (after ${VAR} expansion), applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithSeverity(errors.SeverityError).
			Build()
	}

	example := Config{
		Hub: HubConfig{Name: "mobilecore", DisposeTimeout: "5s"},
		HitQueue: HitQueueConfig{
			DataDir:      "./data",
			RetryBackoff: RetryBackoffFixed,
			RetryDelay:   "30s",
		},
		SDK: map[string]any{
			"global.privacy":  string(PrivacyOptedIn),
			"global.ssl":      true,
			"signal.endpoint": "https://collect.example.com",
		},
		Rules: []rules.Definition{
			{
				ID: "launch-postback",
				Condition: rules.ConditionDefinition{
					Key:     "~type",
					Matcher: "eq",
					Values:  []any{"com.adobe.eventtype.generic.track"},
				},
				Consequences: []rules.ConsequenceDefinition{{
					ID:   "pb-1",
					Type: "pb",
					Detail: map[string]any{
						"templateurl": "https://collect.example.com/pb?action={%action%}&ts={%~timestampu%}",
						"timeout":     2,
					},
				}},
			},
		},
		Admin:     AdminConfig{Listen: ":8089"},
		Metrics:   MetricsConfig{Enabled: true},
		Scheduler: SchedulerConfig{QueueSampleInterval: "15s"},
		Log:       LogConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
