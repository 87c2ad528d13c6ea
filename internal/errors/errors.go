// Package errors provides unified error handling with structured error codes.
// Collaborator failures (recognizer, worker, TTS) are wrapped at the boundary
// and surfaced as status updates, never as unhandled failures.
package errors

import "fmt"

// Code classifies an error by the subsystem and condition that produced it.
type Code string

const (
	CodeUnknown          Code = "unknown"
	CodeInternal         Code = "internal"
	CodeUnsupported      Code = "unsupported"
	CodeConfigInvalid    Code = "config_invalid"
	CodeRecognizer       Code = "recognizer"
	CodeRecognizerClosed Code = "recognizer_closed"
	CodeWorker           Code = "worker"
	CodeWorkerNotReady   Code = "worker_not_ready"
	CodeWorkerTimeout    Code = "worker_timeout"
	CodeTTS              Code = "tts"
	CodeAudio            Code = "audio"
	CodeUnavailable      Code = "unavailable"
)

// AppError is the base error type with a structured code and optional metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of an error, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially transient.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeWorkerTimeout, CodeRecognizerClosed:
		return true
	default:
		return false
	}
}
