package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a startup or resolution failure. Inside the pipeline
// failures travel as entity.Violation values; AppError is for the paths
// where no canonical response exists yet (config loading, adapter
// registration, registry resolution).
type ErrorCode string

const (
	CodeConfigError        ErrorCode = "CONFIG_ERROR"
	CodeProviderNotAllowed ErrorCode = "PROVIDER_NOT_ALLOWED"
	CodeAdapterError       ErrorCode = "ADAPTER_ERROR"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code, a human message, optional structured details
// and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error naming the offending field.
func NewConfigError(field, message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

// NewProviderNotAllowedError creates a registry resolution error.
func NewProviderNotAllowedError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Code:    CodeProviderNotAllowed,
		Message: message,
		Details: details,
	}
}

// NewInvalidInputError creates an invalid input error.
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewInternalError creates an internal error with a cause.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     cause,
	}
}

// CodeOf extracts the ErrorCode from err, or CodeInternal if err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsConfigError reports whether err is a CONFIG_ERROR.
func IsConfigError(err error) bool {
	return CodeOf(err) == CodeConfigError
}

// IsProviderNotAllowed reports whether err is a PROVIDER_NOT_ALLOWED.
func IsProviderNotAllowed(err error) bool {
	return CodeOf(err) == CodeProviderNotAllowed
}
