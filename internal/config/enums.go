package config

import "git.home.luguber.info/inful/mobilecore/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for hit retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// PrivacyStatus is the value of the global.privacy configuration key.
type PrivacyStatus string

const (
	PrivacyOptedIn  PrivacyStatus = "optedin"
	PrivacyOptedOut PrivacyStatus = "optedout"
	PrivacyUnknown  PrivacyStatus = "optunknown"
)

var privacyNormalizer = normalization.NewNormalizer(map[string]PrivacyStatus{
	"optedin":    PrivacyOptedIn,
	"optin":      PrivacyOptedIn,
	"optedout":   PrivacyOptedOut,
	"optout":     PrivacyOptedOut,
	"optunknown": PrivacyUnknown,
	"unknown":    PrivacyUnknown,
}, PrivacyUnknown)

// NormalizePrivacy maps any raw privacy value to a PrivacyStatus; unrecognized values are unknown.
func NormalizePrivacy(raw string) PrivacyStatus {
	return privacyNormalizer.Normalize(raw)
}
