package errors

import "maps"

// ErrorBuilder assembles a ClassifiedError. Start from NewError, WrapError or
// one of the category constructors, then finish with Build.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error with the default profile of category.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	p := profileFor(category)
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: p.severity,
		retry:    p.retry,
		message:  message,
	}}
}

// WrapError is NewError with cause kept for errors.Is and errors.As.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = cause
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

// WithContext attaches key=value. Later values replace earlier ones.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder   { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }

// Retryable marks the error as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.WithRetry(RetryBackoff) }

// Build returns the error. Each call yields an independent value, so a builder
// may be reused as a template.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	out.context = maps.Clone(b.err.context)
	if out.context == nil {
		out.context = ErrorContext{}
	}
	return &out
}

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }
func ContractError(message string) *ErrorBuilder   { return NewError(CategoryContract, message) }
func AuthError(message string) *ErrorBuilder       { return NewError(CategoryAuth, message) }
func NotFoundError(message string) *ErrorBuilder   { return NewError(CategoryNotFound, message) }

func AlreadyExistsError(message string) *ErrorBuilder {
	return NewError(CategoryAlreadyExists, message)
}

func EventHubError(message string) *ErrorBuilder { return NewError(CategoryEventHub, message) }
func ModuleError(message string) *ErrorBuilder   { return NewError(CategoryModule, message) }
func RulesError(message string) *ErrorBuilder    { return NewError(CategoryRules, message) }
func HitQueueError(message string) *ErrorBuilder { return NewError(CategoryHitQueue, message) }

// StorageError is fatal by default.
func StorageError(message string) *ErrorBuilder { return NewError(CategoryStorage, message) }

func NetworkError(message string) *ErrorBuilder  { return NewError(CategoryNetwork, message) }
func DaemonError(message string) *ErrorBuilder   { return NewError(CategoryDaemon, message) }
func RuntimeError(message string) *ErrorBuilder  { return NewError(CategoryRuntime, message) }
func InternalError(message string) *ErrorBuilder { return NewError(CategoryInternal, message) }
