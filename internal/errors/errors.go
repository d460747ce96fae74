package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"syscall"
)

type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeInternal      ErrorType = "INTERNAL"
	ErrorTypeConfig        ErrorType = "CONFIG"
	ErrorTypeProcess       ErrorType = "PROCESS"
	ErrorTypeFileExists    ErrorType = "FILE_EXISTS"
	ErrorTypeIsDirectory   ErrorType = "IS_DIRECTORY"
	ErrorTypeNoPermissions ErrorType = "NO_PERMISSIONS"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Internal(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
		Err:     err,
	}
}

// ConfigError marks a setup problem that makes every other operation impossible.
func ConfigError(message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// ProcessDetails is attached to PROCESS errors.
type ProcessDetails struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
}

func ProcessError(command string, exitCode int, stderr string, err error) *Error {
	msg := fmt.Sprintf("tf %s exited with code %d", command, exitCode)
	if stderr != "" {
		msg = fmt.Sprintf("tf %s: %s", command, stderr)
	}
	return &Error{
		Type:    ErrorTypeProcess,
		Message: msg,
		Code:    http.StatusBadGateway,
		Details: ProcessDetails{Command: command, ExitCode: exitCode, Stderr: stderr},
		Err:     err,
	}
}

// FromFS maps a filesystem error onto the fixed vocabulary surfaced to callers.
// Errors that are not filesystem errors are returned unchanged.
func FromFS(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return err
	}

	var path string
	var pathErr *fs.PathError
	if stderrors.As(err, &pathErr) {
		path = pathErr.Path
	}

	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return &Error{Type: ErrorTypeNotFound, Message: "file not found: " + path, Code: http.StatusNotFound, Err: err}
	case stderrors.Is(err, fs.ErrExist):
		return &Error{Type: ErrorTypeFileExists, Message: "file exists: " + path, Code: http.StatusConflict, Err: err}
	case stderrors.Is(err, fs.ErrPermission):
		return &Error{Type: ErrorTypeNoPermissions, Message: "no permissions: " + path, Code: http.StatusForbidden, Err: err}
	case stderrors.Is(err, syscall.EISDIR):
		return &Error{Type: ErrorTypeIsDirectory, Message: "is a directory: " + path, Code: http.StatusBadRequest, Err: err}
	}
	return err
}

// TypeOf returns the ErrorType carried by err, or INTERNAL when err is untyped.
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeInternal
}

// HTTPStatus returns the status code an API boundary should answer with.
func HTTPStatus(err error) int {
	var typed *Error
	if stderrors.As(err, &typed) && typed.Code != 0 {
		return typed.Code
	}
	return http.StatusInternalServerError
}

// As and Is forward to the standard library so callers need only this package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
