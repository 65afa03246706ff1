// Package exception provides the error types shared by the importer.
// It separates unit-level failures (recorded in the import log and isolated from
// the rest of the batch) from task-level failures (which end the job) and from
// precondition failures (which prevent a job from starting).
package exception

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrNoImportSource is returned by Start when the job has neither a file nor a sheet URL.
	ErrNoImportSource = errors.New("import source is not set")
	// ErrQueueInactive is returned by Start when no background worker can pick up the job.
	ErrQueueInactive = errors.New("job queue is not accepting work")
	// ErrSchemaBlocked is returned when the reference schema may not be imported into.
	ErrSchemaBlocked = errors.New("reference schema is blocked for import")
	// ErrInvalidImportType is returned for import types other than insert and update.
	ErrInvalidImportType = errors.New("invalid import type")
	// ErrInvalidSheetsURL is returned when a Google Sheets URL cannot be exported as CSV.
	ErrInvalidSheetsURL = errors.New("invalid google sheets url")
	// ErrTaskTimedOut marks a batch task that exceeded its time budget.
	ErrTaskTimedOut = errors.New("batch task timed out")
	// ErrJobActive is returned when an operation requires the job chain to be idle.
	ErrJobActive = errors.New("import job is active")
)

// ImportError is an error raised by a component of the importer.
// It carries the module that raised it and the stack at the point of creation,
// which ends up in the exception column of the import log.
type ImportError struct {
	// Module is the component that raised the error (e.g. "runner", "writer", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	// StackTrace is the goroutine stack when the error was created.
	StackTrace string
}

// NewImportError creates a new ImportError.
//
// module: The component where the error occurred.
// message: The error message.
// originalErr: The cause to wrap. May be nil.
func NewImportError(module, message string, originalErr error) *ImportError {
	return &ImportError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// NewImportErrorf creates a new ImportError with a formatted message.
// If the last argument is an error, it becomes the wrapped cause instead of a format argument.
//
// Example:
//
//	NewImportErrorf("parser", "failed to read row %d", 12, io.ErrUnexpectedEOF)
func NewImportErrorf(module, format string, a ...interface{}) *ImportError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return &ImportError{
		Module:      module,
		Message:     fmt.Sprintf(format, a...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is and errors.As.
func (e *ImportError) Unwrap() error {
	return e.OriginalErr
}

// UnitError is a failure of a single import unit. Its messages are user-facing
// and are stored verbatim in the import log entry.
type UnitError struct {
	Messages []string
	Cause    error
}

// NewUnitError creates a UnitError with one or more user-facing messages.
func NewUnitError(cause error, messages ...string) *UnitError {
	return &UnitError{Messages: messages, Cause: cause}
}

// Error implements the error interface.
func (e *UnitError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if e.Cause != nil {
		if msg == "" {
			return e.Cause.Error()
		}
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *UnitError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err means the task ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTaskTimedOut) || errors.Is(err, context.DeadlineExceeded)
}

// IsPrecondition reports whether err is a precondition failure raised synchronously by Start.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoImportSource) ||
		errors.Is(err, ErrQueueInactive) ||
		errors.Is(err, ErrSchemaBlocked) ||
		errors.Is(err, ErrInvalidImportType) ||
		errors.Is(err, ErrInvalidSheetsURL)
}

// UserMessages returns the messages to store in an import log entry for err.
// UnitError messages are returned as-is; any other error yields its cleanest message.
func UserMessages(err error) []string {
	if err == nil {
		return nil
	}
	var ue *UnitError
	if errors.As(err, &ue) && len(ue.Messages) > 0 {
		return append([]string(nil), ue.Messages...)
	}
	return []string{ExtractErrorMessage(err)}
}

// ExtractErrorMessage extracts the error message string from an error.
// For ImportError, it returns the Message field; otherwise the Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		if ie.OriginalErr != nil {
			return fmt.Sprintf("%s: %v", ie.Message, ie.OriginalErr)
		}
		return ie.Message
	}
	return err.Error()
}

// Trace renders err together with a stack trace for the exception column of the import log.
// The stack of the innermost ImportError is preferred over the current stack.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	var ie *ImportError
	if errors.As(err, &ie) && ie.StackTrace != "" {
		return err.Error() + "\n\n" + ie.StackTrace
	}
	return err.Error() + "\n\n" + captureStack()
}

// PanicError converts a recovered panic value into an ImportError.
func PanicError(module string, recovered interface{}) *ImportError {
	if err, ok := recovered.(error); ok {
		return NewImportError(module, "panic recovered", err)
	}
	return NewImportError(module, fmt.Sprintf("panic recovered: %v", recovered), nil)
}

func captureStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
