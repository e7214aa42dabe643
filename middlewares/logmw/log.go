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

// Package logmw gives every request its own logger.
//
// Handlers log through the leveled helpers, tagging each line with a
// component (the package or service) and a category (what happened):
//
//	logmw.Warn(r, "admin", "batch").Log("msg", "invalid batch ids", "error", err)
package logmw

import (
	"net/http"

	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/requestmw"
	"github.com/fatih/color"
)

const MiddlewareDependencyLog = "*logmw.LoggerMiddleware"

// Common categories.
const (
	CategoryFormatError       = "format error"
	CategoryValidationFailure = "validation failure"
	CategoryTracing           = "tracing"
	CategoryInputError        = "input error"
)

const (
	categoryKey  = "category"
	componentKey = "component"
)

type loggerKey struct{}

var reqidColor = color.New(color.FgRed)

var _ middleware.Middleware = &LoggerMiddleware{}

// LoggerMiddleware puts a logger into the request context.
//
// The logger carries the request id when the request id middleware runs earlier.
type LoggerMiddleware struct {
	logger log.Logger

	middleware.NoDependencies
}

func New(logger log.Logger) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger,
	}
}

func (lm *LoggerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := lm.logger
		if reqid := requestmw.GetRequestID(r); reqid != "" {
			l = log.With(l, "requestid", log.Colored{Color: reqidColor, Value: reqid})
		}

		next.ServeHTTP(w, Update(r, l))
	})
}

// Update replaces the logger of the request.
func Update(r *http.Request, logger log.Logger) *http.Request {
	return util.SetContext(r, loggerKey{}, logger)
}

// Logger returns the logger of the request. Without the middleware the log lines are dropped.
func Logger(r *http.Request) log.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(log.Logger); ok {
		return l
	}

	return log.NewNopLogger()
}

// With adds context to the request logger for the rest of the handler chain.
func With(r *http.Request, keyvals ...interface{}) *http.Request {
	return Update(r, log.With(Logger(r), keyvals...))
}

func leveled(lvl func(log.Logger) log.Logger, r *http.Request, component, category interface{}) log.Logger {
	l := lvl(Logger(r))
	if component != nil {
		l = log.With(l, componentKey, component)
	}
	if category != nil {
		l = log.With(l, categoryKey, category)
	}

	return l
}

func Debug(r *http.Request, component, category interface{}) log.Logger {
	return leveled(log.Debug, r, component, category)
}

func Info(r *http.Request, component, category interface{}) log.Logger {
	return leveled(log.Info, r, component, category)
}

func Warn(r *http.Request, component, category interface{}) log.Logger {
	return leveled(log.Warn, r, component, category)
}

func Error(r *http.Request, component, category interface{}) log.Logger {
	return leveled(log.Error, r, component, category)
}
