// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/diffeo/go-modelrest/forms"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, the resource should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest wraps errors caused by the request parameters or body,
// such as lookups on unknown fields.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// BadRequest builds an ErrBadRequest from a message.
func BadRequest(format string, args ...interface{}) ErrBadRequest {
	return ErrBadRequest{Err: fmt.Errorf(format, args...)}
}

// Messages for malformed requests.
var (
	ErrMalformed   = ErrBadRequest{Err: errors.New("The data sent in the request was malformed")}
	ErrNoPK        = ErrBadRequest{Err: errors.New("The request must specify a pk argument")}
	ErrNotSinglePK = ErrBadRequest{Err: errors.New("The request must specify a single pk argument")}
)

// ErrValidation is returned when data submitted through a form does
// not validate.  Its response body lists the errors by field.
type ErrValidation struct {
	Message string
	Errors  forms.Errors
}

func (e ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "The data sent in the request was invalid"
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrValidation) HTTPStatus() int {
	return http.StatusBadRequest
}

// Body returns the response content for the error.
func (e ErrValidation) Body() map[string]interface{} {
	errs := make(map[string]interface{}, len(e.Errors))
	for field, messages := range e.Errors {
		list := make([]interface{}, len(messages))
		for i, m := range messages {
			list[i] = m
		}
		errs[field] = list
	}
	return map[string]interface{}{
		"message": e.Error(),
		"errors":  errs,
	}
}

// ErrAlreadyRegistered is returned when a resource is registered at a
// URL prefix that is already taken.
type ErrAlreadyRegistered struct {
	Prefix string
}

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("A resource is already registered at %s", e.Prefix)
}

// ErrNotRegistered is returned when unregistering a URL prefix with
// no resource.
type ErrNotRegistered struct {
	Prefix string
}

func (e ErrNotRegistered) Error() string {
	return fmt.Sprintf("No resource is registered at %s", e.Prefix)
}

// ErrorResponse is the body sent for handler failures that have no
// more specific representation.
type ErrorResponse struct {
	// Error is a short code, "error" or "panic".
	Error string `mapstructure:"error"`

	// Message is the human-readable error text.
	Message string `mapstructure:"message"`

	// Stack is the goroutine stack of a recovered panic.
	Stack string `mapstructure:"stack"`
}

// FromPanic populates an error response based on a panic.
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}

// errorStatus picks the HTTP status for a handler error.
func errorStatus(err error) int {
	if errS, hasStatus := err.(ErrorStatus); hasStatus {
		return errS.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// errorContent picks the response content for a handler error.
// Client errors are reported as their message text; validation
// errors carry their field errors.
func errorContent(err error, status int) interface{} {
	if v, ok := err.(ErrValidation); ok {
		return v.Body()
	}
	if status >= 500 {
		return ErrorResponse{Error: "error", Message: err.Error()}
	}
	return err.Error()
}
