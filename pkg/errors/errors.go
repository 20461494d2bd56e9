package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors for quick checks with errors.Is.
var (
	// ErrNoConnection is returned when a facade is used before a provider
	// has been selected, or after selecting one failed.
	ErrNoConnection = errors.New("no connection")

	// ErrUnknownProvider is returned when a provider name is not recognized.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNotImplemented is returned for recognized providers without a backend.
	ErrNotImplemented = errors.New("not implemented")

	// ErrMissingOption is returned when a required call option is absent.
	ErrMissingOption = errors.New("missing option")

	// ErrNoFile is returned when an upload selection holds no file.
	ErrNoFile = errors.New("no file found")
)

// Error is the base interface for all custom errors in the system.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// Stack returns the captured stack trace.
func (e *BaseError) Stack() []uintptr {
	return e.stack
}

// captureStack captures the current stack trace.
func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// ConnectionError reports that a facade has no usable backend.
type ConnectionError struct {
	*BaseError
	Service string
}

// NewConnectionError creates a new connection error for the named service.
func NewConnectionError(service, message string, cause error) *ConnectionError {
	if message == "" {
		message = fmt.Sprintf("no %s connection", service)
	}
	return &ConnectionError{
		BaseError: &BaseError{
			code:    CodeConnection,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		Service: service,
	}
}

// Error returns the message alone; the cause is reachable through Unwrap.
func (e *ConnectionError) Error() string {
	return e.message
}

// Is makes every ConnectionError match ErrNoConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrNoConnection
}

// ConfigurationError reports an unknown provider name or a missing option.
type ConfigurationError struct {
	*BaseError
	Option string
	Value  interface{}
	reason error
}

// NewConfigurationError creates a configuration error. reason is one of the
// package sentinels and is matched by errors.Is.
func NewConfigurationError(option, message string, reason error) *ConfigurationError {
	code := CodeConfiguration
	if reason == ErrNotImplemented {
		code = CodeUnimplemented
	}
	return &ConfigurationError{
		BaseError: &BaseError{
			code:    code,
			message: message,
			stack:   captureStack(1),
		},
		Option: option,
		reason: reason,
	}
}

// Is matches the sentinel the error was created with.
func (e *ConfigurationError) Is(target error) bool {
	return e.reason != nil && target == e.reason
}

// UnknownProvider builds the rejection for an unrecognized provider name.
func UnknownProvider(facade, name string) *ConfigurationError {
	err := NewConfigurationError("provider", fmt.Sprintf("Unknown %s provider", facade), ErrUnknownProvider)
	err.Value = name
	return err
}

// MissingOption builds the error raised when a required call option is absent.
func MissingOption(option string) *ConfigurationError {
	return NewConfigurationError(option, "missing option: "+option, ErrMissingOption)
}

// TransportError carries an error reported by a collaborator. Its text is
// the collaborator's text, unchanged.
type TransportError struct {
	*BaseError
	Operation string
}

// NewTransportError wraps a non-nil collaborator error.
func NewTransportError(operation string, cause error) *TransportError {
	return &TransportError{
		BaseError: &BaseError{
			code:    CodeTransport,
			message: cause.Error(),
			cause:   cause,
			stack:   captureStack(1),
		},
		Operation: operation,
	}
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return e.message
}

// InputError reports caller input that cannot be processed.
type InputError struct {
	*BaseError
	Field string
	Value interface{}
}

// NewInputError creates a new input error.
func NewInputError(field, message string, value interface{}) *InputError {
	return &InputError{
		BaseError: &BaseError{
			code:    CodeInput,
			message: message,
			stack:   captureStack(1),
		},
		Field: field,
		Value: value,
	}
}

// NoFile builds the error returned when an upload selection is empty.
func NoFile() *InputError {
	err := NewInputError("file", ErrNoFile.Error(), nil)
	err.cause = ErrNoFile
	return err
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return e.message
}

// Wrap wraps an error with additional context.
// If the error is already one of our custom types, it preserves the code.
// Otherwise the result carries CodeInternal.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	code := CodeInternal
	if e, ok := err.(Error); ok {
		code = e.Code()
	}

	return &BaseError{
		code:    code,
		message: message,
		cause:   err,
		stack:   captureStack(1),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error with a message.
func New(message string) error {
	return &BaseError{
		code:    CodeInternal,
		message: message,
		stack:   captureStack(1),
	}
}

// Newf creates a new error with a formatted message.
func Newf(format string, args ...interface{}) error {
	return New(fmt.Sprintf(format, args...))
}
