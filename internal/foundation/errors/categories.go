package errors

// ErrorCategory groups errors by the subsystem or caller mistake that produced them.
type ErrorCategory string

// Caller and input errors.
const (
	CategoryConfig        ErrorCategory = "config"
	CategoryValidation    ErrorCategory = "validation"
	CategoryContract      ErrorCategory = "contract"
	CategoryAuth          ErrorCategory = "auth"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryAlreadyExists ErrorCategory = "already_exists"
)

// Subsystem errors.
const (
	CategoryEventHub  ErrorCategory = "eventhub"
	CategoryModule    ErrorCategory = "module"
	CategoryRules     ErrorCategory = "rules"
	CategoryHitQueue  ErrorCategory = "hitqueue"
	CategoryStorage   ErrorCategory = "storage"
	CategoryNetwork   ErrorCategory = "network"
	CategoryAssurance ErrorCategory = "assurance"
	CategoryDaemon    ErrorCategory = "daemon"
	CategoryRuntime   ErrorCategory = "runtime"
	CategoryInternal  ErrorCategory = "internal"
)

// ErrorSeverity is how far an error propagates.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells callers whether repeating the operation can succeed.
type RetryStrategy string

const (
	RetryNever RetryStrategy = "never"
	// RetryBackoff means the failure is transient; retry after a pause.
	RetryBackoff RetryStrategy = "backoff"
	// RetryUserAction means the operation succeeds only after someone fixes
	// credentials or input.
	RetryUserAction RetryStrategy = "user"
)

type profile struct {
	severity ErrorSeverity
	retry    RetryStrategy
}

// profiles holds the severity and retry strategy a new error of each category
// starts with. Builders can override both.
var profiles = map[ErrorCategory]profile{
	CategoryConfig:     {SeverityFatal, RetryNever},
	CategoryValidation: {SeverityFatal, RetryNever},
	CategoryAuth:       {SeverityError, RetryUserAction},
	CategoryStorage:    {SeverityFatal, RetryNever},
	CategoryNetwork:    {SeverityError, RetryBackoff},
	CategoryAssurance:  {SeverityError, RetryBackoff},
	CategoryDaemon:     {SeverityFatal, RetryNever},
	CategoryRuntime:    {SeverityFatal, RetryNever},
	CategoryInternal:   {SeverityFatal, RetryNever},
}

func profileFor(c ErrorCategory) profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profile{SeverityError, RetryNever}
}

// ErrorContext is structured detail attached to an error.
type ErrorContext map[string]any

// Set stores value under key, allocating the map when needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = ErrorContext{}
	}
	c[key] = value
	return c
}

func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}
