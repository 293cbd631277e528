package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of pipeline error.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid job input; resubmission cannot succeed.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeUpstreamTimeout indicates a bounded poll/wait on an external engine was exceeded.
	ErrCodeUpstreamTimeout ErrorCode = "upstream_timeout"
	// ErrCodeUpstreamFailure indicates an external engine returned an explicit failure.
	ErrCodeUpstreamFailure ErrorCode = "upstream_failure"
	// ErrCodeGenerationFailed indicates every parallel image synthesis request failed.
	ErrCodeGenerationFailed ErrorCode = "generation_failed"
	// ErrCodeInternal indicates an internal fault.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured pipeline error with a code, message, and
// optional cause. It supports error wrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// UpstreamTimeout creates a new UpstreamTimeout error.
func UpstreamTimeout(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUpstreamTimeout,
		Message: message,
	}
}

// UpstreamTimeoutf creates a new UpstreamTimeout error with formatted message.
func UpstreamTimeoutf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeUpstreamTimeout,
		Message: fmt.Sprintf(format, args...),
	}
}

// UpstreamFailure creates a new UpstreamFailure error.
func UpstreamFailure(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUpstreamFailure,
		Message: message,
	}
}

// UpstreamFailuref creates a new UpstreamFailure error with formatted message.
func UpstreamFailuref(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeUpstreamFailure,
		Message: fmt.Sprintf(format, args...),
	}
}

// GenerationFailed creates a new GenerationFailed error.
func GenerationFailed(message string) *AppError {
	return &AppError{
		Code:    ErrCodeGenerationFailed,
		Message: message,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsUpstreamTimeout checks if an error is an UpstreamTimeout error.
func IsUpstreamTimeout(err error) bool {
	return isCode(err, ErrCodeUpstreamTimeout)
}

// IsUpstreamFailure checks if an error is an UpstreamFailure error.
func IsUpstreamFailure(err error) bool {
	return isCode(err, ErrCodeUpstreamFailure)
}

// IsGenerationFailed checks if an error is a GenerationFailed error.
func IsGenerationFailed(err error) bool {
	return isCode(err, ErrCodeGenerationFailed)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// GetCode returns the ErrorCode from an error, or ErrCodeInternal if the
// error carries no code.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Retryable reports whether the caller may resubmit after this error.
// Only validation errors on the job's own input are permanent; every
// upstream fault is worth a retry.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return GetCode(err) != ErrCodeValidation
}
