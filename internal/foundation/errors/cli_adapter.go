package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter turns errors into exit codes and stderr messages.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryContract:   2,
	CategoryNotFound:   4,
	CategoryAuth:       5,
	CategoryConfig:     7,
	CategoryNetwork:    8,
	CategoryAssurance:  8,
	CategoryInternal:   10,
	CategoryStorage:    11,
	CategoryHitQueue:   11,
	CategoryEventHub:   12,
	CategoryModule:     12,
	CategoryRules:      12,
	CategoryDaemon:     12,
	CategoryRuntime:    12,
}

// userFacing categories print their message without --verbose.
var userFacing = map[ErrorCategory]bool{
	CategoryConfig:     true,
	CategoryValidation: true,
	CategoryContract:   true,
	CategoryNotFound:   true,
	CategoryAuth:       true,
	CategoryNetwork:    true,
}

// ExitCodeFor returns 0 for nil, a per-category code for classified errors
// and 1 otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if c, ok := AsClassified(err); ok {
		if code, ok := exitCodes[c.Category()]; ok {
			return code
		}
	}
	return 1
}

// FormatError renders err for stderr.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	switch {
	case !ok:
		return fmt.Sprintf("Error: %v", err)
	case a.verbose:
		return c.Error()
	case userFacing[c.Category()]:
		return "Error: " + c.Message()
	default:
		return "Internal error occurred (use -v for details)"
	}
}

// HandleError prints err and exits with its code. It returns for nil.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	c, classified := AsClassified(err)
	switch {
	case !classified:
		a.logger.Error("Unclassified error", slog.Any("error", err))
	case a.verbose || c.IsFatal():
		attrs := []slog.Attr{slog.String("category", string(c.Category()))}
		if c.CanRetry() {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
		a.logger.LogAttrs(context.Background(), levelFor(c.Severity()), c.Message(), attrs...)
	}
	fmt.Fprintln(os.Stderr, a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}
