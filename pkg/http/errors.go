package http

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error element of the response envelope.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam attaches a detail such as a partial batch count.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(message string) *AppError {
	return NewAppError("ERR_TOO_MANY_REQUESTS", "", message, http.StatusTooManyRequests)
}

// InternalError creates a 500 error. The message is what clients see; the
// cause should go through WithError.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// ErrorRule binds a sentinel error to an envelope code and HTTP status.
type ErrorRule struct {
	Err    error
	Code   string
	Status int
}

// ErrorMapper turns errors into AppErrors. Rules are tried in order with
// errors.Is; an error that already is an AppError passes through and
// anything unmatched becomes a 500.
type ErrorMapper []ErrorRule

func (m ErrorMapper) Map(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, r := range m {
		if errors.Is(err, r.Err) {
			return NewAppError(r.Code, "", err.Error(), r.Status).WithError(err)
		}
	}
	return InternalError("internal error").WithError(err)
}
