package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryProfiles(t *testing.T) {
	tests := []struct {
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
		retry    RetryStrategy
	}{
		{ConfigError("x"), CategoryConfig, SeverityFatal, RetryNever},
		{ValidationError("x"), CategoryValidation, SeverityFatal, RetryNever},
		{ContractError("x"), CategoryContract, SeverityError, RetryNever},
		{AuthError("x"), CategoryAuth, SeverityError, RetryUserAction},
		{NotFoundError("x"), CategoryNotFound, SeverityError, RetryNever},
		{AlreadyExistsError("x"), CategoryAlreadyExists, SeverityError, RetryNever},
		{EventHubError("x"), CategoryEventHub, SeverityError, RetryNever},
		{ModuleError("x"), CategoryModule, SeverityError, RetryNever},
		{RulesError("x"), CategoryRules, SeverityError, RetryNever},
		{HitQueueError("x"), CategoryHitQueue, SeverityError, RetryNever},
		{StorageError("x"), CategoryStorage, SeverityFatal, RetryNever},
		{NetworkError("x"), CategoryNetwork, SeverityError, RetryBackoff},
		{DaemonError("x"), CategoryDaemon, SeverityFatal, RetryNever},
		{RuntimeError("x"), CategoryRuntime, SeverityFatal, RetryNever},
		{InternalError("x"), CategoryInternal, SeverityFatal, RetryNever},
		{NewError(CategoryAssurance, "x"), CategoryAssurance, SeverityError, RetryBackoff},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.category, err.Category())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, tt.retry, err.RetryStrategy())
		})
	}
}

func TestBuilderOverridesProfile(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(cause, CategoryNetwork, "send hit").
		Warning().
		WithRetry(RetryNever).
		WithContext("url", "https://collect.example.com").
		WithContext("attempt", 3).
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.False(t, err.CanRetry())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[network:warning] send hit: connection reset", err.Error())

	url, ok := err.Context().GetString("url")
	require.True(t, ok)
	assert.Equal(t, "https://collect.example.com", url)
	_, ok = err.Context().GetString("attempt")
	assert.False(t, ok, "non-string values are not returned as strings")
}

func TestBuilderIsReusable(t *testing.T) {
	b := HitQueueError("queue full").WithContext("table", "a")
	first := b.Build()
	second := b.WithContext("table", "b").Build()

	v, _ := first.Context().Get("table")
	assert.Equal(t, "a", v)
	v, _ = second.Context().Get("table")
	assert.Equal(t, "b", v)
	assert.NotNil(t, ContractError("x").Build().Context())
}

func TestClassifiedHelpers(t *testing.T) {
	err := fmt.Errorf("boot: %w", ConfigError("missing data_dir").Build())

	assert.True(t, IsClassified(err))
	assert.True(t, HasCategory(err, CategoryConfig))
	assert.True(t, HasSeverity(err, SeverityFatal))
	assert.False(t, IsClassified(errors.New("plain")))

	c, ok := AsClassified(err)
	require.True(t, ok)
	assert.True(t, c.IsFatal())
	assert.False(t, c.CanRetry())
	assert.True(t, NetworkError("timeout").Build().CanRetry())
	assert.False(t, AuthError("bad token").Build().CanRetry())
}

func TestSentinelComparison(t *testing.T) {
	sentinel := StorageError("disk full").Build()
	wrapped := fmt.Errorf("queue hit: %w", WrapError(errors.New("ENOSPC"), CategoryStorage, "disk full").Build())

	assert.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, HitQueueError("disk full").Build())
	assert.NotErrorIs(t, wrapped, StorageError("other").Build())
}

func TestClassifiedErrorLogValue(t *testing.T) {
	err := WrapError(fmt.Errorf("disk full"), CategoryStorage, "insert failed").
		WithContext("table", "signal_hits").
		Build()

	got := map[string]string{}
	for _, a := range err.LogValue().Group() {
		got[a.Key] = a.Value.String()
	}
	assert.Equal(t, map[string]string{
		"category": "storage",
		"message":  "insert failed",
		"cause":    "disk full",
		"table":    "signal_hits",
	}, got)
}
