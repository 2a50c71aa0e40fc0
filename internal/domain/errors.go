package domain

import (
	"errors"
	"fmt"
)

// ConfigError reports a caller or configuration problem detected before any
// request is sent. It is always fatal to the call.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigError returns a ConfigError for field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ServiceError reports that the translation service rejected a batch.
// It is the only error class degraded to empty placeholders.
type ServiceError struct {
	// Code is the service-reported error code, e.g. INVALID_ARGUMENT.
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	msg := "translation service error"
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// TransportError reports a failure reaching the translation service.
// It is never masked.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether any error in err's chain is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsServiceError reports whether any error in err's chain is a ServiceError.
func IsServiceError(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

// IsTransportError reports whether any error in err's chain is a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
