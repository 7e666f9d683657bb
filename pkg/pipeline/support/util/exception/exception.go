// Package exception provides custom error types and error handling utilities
// for the mofpipe pipeline. It standardizes errors that occur during stage
// execution, allowing them to be categorized as fatal, recoverable, or
// partial.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors for the pipeline's error kinds.
var (
	// ErrToolNotConfigured indicates that a required external binary path is
	// missing. Fatal for the whole batch.
	ErrToolNotConfigured = errors.New("external tool not configured")
	// ErrStructureParse indicates a malformed structure input file. Recoverable
	// per input: the offending file is skipped and the batch continues.
	ErrStructureParse = errors.New("structure parse error")
	// ErrMissingMetric indicates that a required probe or metric field is
	// absent from a pore-analysis result.
	ErrMissingMetric = errors.New("missing pore metric")
	// ErrAnalysisFailed indicates that the pore-analysis binary failed for one
	// probe. Partial: other probes still populate.
	ErrAnalysisFailed = errors.New("pore analysis failed")
	// ErrRecordExists indicates an attempt to overwrite an existing job record.
	// The result store is append-only.
	ErrRecordExists = errors.New("job record already exists")
	// ErrRecordNotFound indicates that no job record matched the given id.
	ErrRecordNotFound = errors.New("job record not found")
)

// PipelineError is a custom error type for failures during pipeline
// processing. It holds the module where the error occurred, a message, the
// wrapped original error, and flags indicating whether it is retryable or
// skippable.
type PipelineError struct {
	// Module indicates the module where the error occurred (e.g., "zeopp",
	// "relax", "store", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewPipelineError creates a new PipelineError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// isSkippable: Whether this error is skippable.
// isRetryable: Whether this error is retryable.
func NewPipelineError(module, message string, originalErr error, isSkippable, isRetryable bool) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewPipelineErrorf creates a new PipelineError instance using a format
// string. Optional flags and an error are extracted from the end of the
// variadic arguments in the order: [isSkippable bool], [isRetryable bool],
// [originalErr error]. The remaining arguments are used for fmt.Sprintf.
//
// Examples:
//
//	NewPipelineErrorf("zeopp", "probe %s failed", "N2", true, false, err)
//	-> message: "probe N2 failed", isSkippable: true, isRetryable: false
func NewPipelineErrorf(module, format string, a ...interface{}) *PipelineError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}

	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}

	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	message := fmt.Sprintf(format, args...)

	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewToolNotConfiguredError creates a fatal PipelineError for a missing
// external binary path. The returned error matches ErrToolNotConfigured via
// errors.Is.
func NewToolNotConfiguredError(module, tool string) *PipelineError {
	return NewPipelineError(module, fmt.Sprintf("binary path for '%s' is not configured", tool), ErrToolNotConfigured, false, false)
}

// NewStructureParseError creates a per-input recoverable PipelineError for a
// malformed structure file. The returned error matches ErrStructureParse via
// errors.Is and is skippable.
func NewStructureParseError(module, path string, originalErr error) *PipelineError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrStructureParse, originalErr)
	} else {
		errToWrap = ErrStructureParse
	}
	return NewPipelineError(module, fmt.Sprintf("failed to parse structure file '%s'", path), errToWrap, true, false)
}

// Error implements the error interface.
// It returns the error's module, message, and the string representation of the
// original error.
func (e *PipelineError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *PipelineError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *PipelineError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *PipelineError) IsSkippable() bool {
	return e.isSkippable
}

// IsPipelineError determines if the given error is of type PipelineError.
func IsPipelineError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	return errors.As(err, &pe)
}

// IsFatal determines if an error is fatal for the whole batch (cannot be
// retried or skipped). For a PipelineError its flags take precedence;
// a ToolNotConfigured error is always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrToolNotConfigured) {
		return true
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return !pe.IsRetryable() && !pe.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied")
}

// ExtractErrorMessage extracts the error message string from an error.
// For PipelineError, it returns the cleaner Message field.
// Otherwise, it returns the standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
