// Package errors classifies failures across mobilecore.
//
// A ClassifiedError carries a category, a severity and a retry strategy. It
// also carries structured context. Each category starts from a default
// profile (storage and config errors are fatal, network errors retry with
// backoff). The builder can override that profile per error. The HTTP and CLI
// adapters turn categories into status codes and exit codes.
//
// Packages declare their sentinels once and compare with errors.Is, which
// matches on category and message:
//
//	var ErrQueueDisposed = errors.HitQueueError("hit queue disposed").Build()
//
//	err := errors.WrapError(cause, errors.CategoryStorage, "insert hit").
//		WithContext("table", table).
//		Build()
package errors
