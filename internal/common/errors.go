package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors. ErrSetup marks fatal pre-run failures (missing
// source directory, bad profile); everything else is local to a single task.
var (
	ErrSetup       = errors.New("setup error")
	ErrConversion  = errors.New("conversion error")
	ErrEmptyOutput = errors.New("conversion produced empty output")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsSetupError reports whether err is fatal for the whole run.
func IsSetupError(err error) bool {
	return errors.Is(err, ErrSetup)
}
