package kerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a stable error category that callers can switch on.
type Code string

const (
	CodeUnknown        Code = "unknown"
	CodeAuthentication Code = "authentication"
	CodeNetwork        Code = "network"
	CodeNotFound       Code = "not_found"
	CodeServer         Code = "server"
)

// Error carries a Code plus the underlying error. Status is the HTTP status
// returned by the render service, or zero when the request never completed.
// Message is suitable for showing to a user as is.
type Error struct {
	Code    Code
	Status  int
	Message string
	err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// New wraps an error with the provided code. If err is nil a nil is returned.
func New(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, err: err}
}

// Newf builds a coded error from a display message.
func Newf(code Code, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Code: code, Message: msg, err: errors.New(msg)}
}

// Wrap attaches a code and a display message to err.
func Wrap(code Code, message string, err error) error {
	if err == nil {
		err = errors.New(message)
	}
	return &Error{Code: code, Message: message, err: err}
}

// FromStatus maps a non-2xx HTTP status onto a Code. The message is kept for
// display; callers usually pass the `detail` field of a problem body.
func FromStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}
	return &Error{
		Code:    codeForStatus(status),
		Status:  status,
		Message: message,
		err:     errors.New(message),
	}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeAuthentication
	case http.StatusNotFound:
		return CodeNotFound
	default:
		return CodeServer
	}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// StatusOf returns the HTTP status attached to err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsCode helps callers compare codes without type assertions.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsAuthentication(err error) bool { return IsCode(err, CodeAuthentication) }
func IsNetwork(err error) bool        { return IsCode(err, CodeNetwork) }
func IsNotFound(err error) bool       { return IsCode(err, CodeNotFound) }
func IsServer(err error) bool         { return IsCode(err, CodeServer) }
