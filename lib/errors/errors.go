// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors contains the error types of the back-office.
//
// Handlers abort a request with Fail(), which panics with a Panic value. The
// error middleware recovers the panic, logs the diagnostic message and shows
// the user message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is returned when an identifier lookup misses.
var ErrNotFound = New("not found")

// Error extends the built-in error interface with a message that is displayed to the end user.
type Error interface {
	// Error that is displayed in the logs and debug messages. Should contain diagnostical information.
	Error() string
	// Error that is displayed to the end user.
	UserError(t func(string, map[string]string) string) string
}

var _ Error = &errorWrapper{}

type errorWrapper struct {
	error
	message string
	params  map[string]string
}

func (ew *errorWrapper) UserError(t func(string, map[string]string) string) string {
	if t != nil {
		return t(ew.message, ew.params)
	}
	return ew.message
}

func (ew *errorWrapper) Cause() error {
	return ew.error
}

func (ew *errorWrapper) Unwrap() error {
	return ew.error
}

// Wrap wraps an error message into a Error.
func Wrap(err error, message string, params map[string]string) Error {
	return &errorWrapper{
		error:   err,
		message: message,
		params:  params,
	}
}

// NewError creates a new verbose error message.
//
// If err is an empty string, then message will be used it instead.
func NewError(err, message string, params map[string]string) Error {
	if err == "" {
		err = message
	}

	return Wrap(errors.New(err), message, params)
}

// New is a replacement function for errors.New().
//
// This function constructs a Error where both the diagnostic error and the end user error is the same.
func New(message string) error {
	return NewError(message, message, nil)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// NotFound wraps ErrNotFound with a diagnostic message naming the missing object.
func NotFound(kind string, id interface{}) error {
	return &errorWrapper{
		error:   fmt.Errorf("%s %v: %w", kind, id, ErrNotFound),
		message: "Can't find the requested object",
	}
}

// ConfigurationError is returned when an admin resource or a service is set up incorrectly.
//
// These errors surface when the server is assembled, never while serving a request.
type ConfigurationError struct {
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return "configuration error in " + e.Subject + ": " + e.Reason
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(subject, reason string, args ...interface{}) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}

	return &ConfigurationError{
		Subject: subject,
		Reason:  reason,
	}
}

// MultiError collects errors, e.g. from event subscribers.
type MultiError []error

func (me MultiError) Error() string {
	msgs := make([]string, len(me))
	for i, err := range me {
		msgs[i] = err.Error()
	}

	return strings.Join(msgs, "\n")
}

// NewMultiError returns nil for an empty error list, so the result can be returned as an error directly.
func NewMultiError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	return MultiError(errs)
}

var _ Error = Panic{}

// Fail aborts the request by panicking with a Panic.
func Fail(code int, err error) {
	panic(Panic{
		Code: code,
		Err:  err,
	})
}

// FailNotFound aborts the request with a 404 when err is ErrNotFound, and with a 500 otherwise.
func FailNotFound(err error) {
	if err == nil {
		return
	}

	if Is(err, ErrNotFound) {
		Fail(http.StatusNotFound, err)
	}

	Fail(http.StatusInternalServerError, err)
}

// Panic is a custom panic data structure for the ErrorHandler.
type Panic struct {
	Code          int
	Err           error
	StackTrace    string
	DisplayErrors bool
}

func (p Panic) Error() string {
	return p.Err.Error()
}

func (p Panic) String() string {
	return p.Err.Error()
}

func (p Panic) Unwrap() error {
	return p.Err
}

func (p Panic) UserError(t func(string, map[string]string) string) string {
	if ve, ok := p.Err.(Error); ok {
		return ve.UserError(t)
	}

	return ""
}
