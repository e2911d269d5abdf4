package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network, timeout and render failures
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeNotify represents notification delivery failures
	ErrorTypeNotify ErrorType = "notify"
	// ErrorTypeStore represents persistence failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// MonitorError represents a failure tied to a monitored target
type MonitorError struct {
	Type    ErrorType
	Target  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Target, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Target, e.Message)
}

// Unwrap returns the underlying error
func (e *MonitorError) Unwrap() error {
	return e.Err
}

// New creates a new MonitorError
func New(errType ErrorType, target, message string, err error) *MonitorError {
	return &MonitorError{
		Type:    errType,
		Target:  target,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(target, message string, err error) *MonitorError {
	return New(ErrorTypeFetch, target, message, err)
}

// NewNotify creates a new notify error
func NewNotify(target, message string, err error) *MonitorError {
	return New(ErrorTypeNotify, target, message, err)
}

// NewStore creates a new store error
func NewStore(target, message string, err error) *MonitorError {
	return New(ErrorTypeStore, target, message, err)
}

// NewValidation creates a new validation error
func NewValidation(target, message string) *MonitorError {
	return New(ErrorTypeValidation, target, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *MonitorError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first MonitorError in err's chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me.Type
	}
	return ""
}

// Is reports whether err carries a MonitorError of the given type
func Is(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// Reason returns the message shown to users for a failed check
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var me *MonitorError
	if stderrors.As(err, &me) {
		if me.Err != nil {
			return fmt.Sprintf("%s: %v", me.Message, me.Err)
		}
		return me.Message
	}
	return err.Error()
}
