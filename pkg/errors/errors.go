// Unified error handling for the flight controller host.
//
// The safety core itself never returns errors: anomalies there latch, they
// do not propagate. DeviceError covers the boundaries around it - config
// loading, host command parsing, and HAL access.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import "fmt"

// ErrorCode represents the category of error.
type ErrorCode string

const (
	// Configuration errors
	ErrConfigFile       ErrorCode = "CONFIG_FILE"
	ErrConfigField      ErrorCode = "CONFIG_FIELD"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Host command errors
	ErrCmdParse   ErrorCode = "CMD_PARSE"
	ErrCmdUnknown ErrorCode = "CMD_UNKNOWN"
	ErrCmdArg     ErrorCode = "CMD_ARG"

	// Hardware abstraction errors
	ErrHALChannel ErrorCode = "HAL_CHANNEL"
	ErrHALIO      ErrorCode = "HAL_IO"

	// Runtime errors
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// DeviceError is the unified error type for the host system.
type DeviceError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the config option or command argument involved.
	Field string

	// Err wraps the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// SetField records the config option or argument name.
func (e *DeviceError) SetField(field string) *DeviceError {
	e.Field = field
	return e
}

// New creates a new DeviceError.
func New(code ErrorCode, message string) *DeviceError {
	return &DeviceError{Code: code, Message: message}
}

// Wrap wraps an existing error with a category and message.
func Wrap(err error, code ErrorCode, message string) *DeviceError {
	return &DeviceError{Code: code, Message: message, Err: err}
}

// ConfigFileError creates an error for an unreadable or unparseable
// config file.
func ConfigFileError(path string, err error) *DeviceError {
	return Wrap(err, ErrConfigFile, fmt.Sprintf("cannot load config file '%s'", path))
}

// ConfigValidationError creates an error for a limit value that fails
// validation.
func ConfigValidationError(field, reason string) *DeviceError {
	return New(ErrConfigValidation, reason).SetField(field)
}

// CmdParseError creates an error for an unparseable command line.
func CmdParseError(line, reason string) *DeviceError {
	return New(ErrCmdParse, fmt.Sprintf("cannot parse command %q: %s", line, reason))
}

// CmdUnknownError creates an error for an unrecognized command.
func CmdUnknownError(name string) *DeviceError {
	return New(ErrCmdUnknown, fmt.Sprintf("unknown command: %s", name))
}

// CmdArgError creates an error for a missing or invalid command argument.
func CmdArgError(cmd, arg, reason string) *DeviceError {
	return New(ErrCmdArg, fmt.Sprintf("command %s: argument '%s': %s", cmd, arg, reason)).SetField(arg)
}

// HALChannelError creates an error for an unknown or misused HAL channel.
func HALChannelError(channel string) *DeviceError {
	return New(ErrHALChannel, fmt.Sprintf("no such channel: %s", channel))
}

// HALIOError creates an error for a failed hardware transaction.
func HALIOError(op string, err error) *DeviceError {
	return Wrap(err, ErrHALIO, fmt.Sprintf("hardware %s failed", op))
}

// InitError creates an error for a component initialization failure.
func InitError(component string, err error) *DeviceError {
	return Wrap(err, ErrRuntimeInit, fmt.Sprintf("failed to initialize %s", component))
}

// Is checks whether an error carries the given error code.
func Is(err error, code ErrorCode) bool {
	if devErr, ok := err.(*DeviceError); ok {
		return devErr.Code == code
	}
	return false
}

// IsConfig checks whether an error is a configuration error.
func IsConfig(err error) bool {
	return Is(err, ErrConfigFile) || Is(err, ErrConfigField) || Is(err, ErrConfigValidation)
}

// IsCommand checks whether an error is a host command error.
func IsCommand(err error) bool {
	return Is(err, ErrCmdParse) || Is(err, ErrCmdUnknown) || Is(err, ErrCmdArg)
}
