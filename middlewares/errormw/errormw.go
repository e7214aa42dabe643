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

// Package errormw recovers panics and renders them as error pages.
package errormw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/render"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
	"gorm.io/gorm"
)

const (
	MiddlewareDependencyError = "*errormw.ErrorHandlerMiddleware"
	component                 = "error middleware"
	categoryRecovered         = "recovered"
)

var _ middleware.Middleware = &ErrorHandlerMiddleware{}

// ErrorHandlerMiddleware recovers the panics of the handlers, e.g. the ones raised with errors.Fail.
//
// With displayErrors, the page shows the error and the stack trace. Never enable it in production.
type ErrorHandlerMiddleware struct {
	displayErrors bool
}

func New(displayErrors bool) *ErrorHandlerMiddleware {
	return &ErrorHandlerMiddleware{
		displayErrors: displayErrors,
	}
}

func (e *ErrorHandlerMiddleware) Dependencies() []string {
	return []string{logmw.MiddlewareDependencyLog, translationmw.MiddlewareDependencyTranslation}
}

func (e *ErrorHandlerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			p := toPanic(rec)
			p.DisplayErrors = e.displayErrors
			p.StackTrace = string(debug.Stack())

			renderPanic(p, w, r)
		}()

		next.ServeHTTP(w, r)
	})
}

// toPanic turns a recovered value into an errors.Panic. Values that were not raised with errors.Fail get a status by their error.
func toPanic(rec interface{}) errors.Panic {
	if p, ok := rec.(errors.Panic); ok {
		return p
	}

	err, ok := rec.(error)
	if !ok {
		err = errors.New(fmt.Sprint(rec))
	}

	return errors.Panic{
		Code: statusOf(err),
		Err:  err,
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case db.IsConstraintError(err):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func renderPanic(p errors.Panic, w http.ResponseWriter, r *http.Request) {
	t := translationmw.GetTranslate(r)
	page := NewErrorPageData(p.Code, r)

	switch {
	case p.DisplayErrors && p.Err != nil:
		page.Message = p.Error()
	case p.UserError(t) != "":
		page.Message = p.UserError(t)
	default:
		page.Message = t(http.StatusText(p.Code), nil)
	}

	if p.DisplayErrors {
		page.Logs = p.StackTrace
	}

	if p.Err != nil {
		logger := logmw.Info(r, component, categoryRecovered)
		if p.Code >= http.StatusInternalServerError {
			logger = logmw.Error(r, component, categoryRecovered)
		}
		logger.Log("code", p.Code, "error", p.Err)
		logmw.Debug(r, component, logmw.CategoryTracing).Log("stacktrace", p.StackTrace)
	}

	render.NewRenderer().
		SetCode(p.Code).
		HTML(ErrorPage, page).
		JSON(page.Map()).
		XML(page.XML(), false).
		YAML(page.Map()).
		Text(page.Text()).
		Render(w, r)
}
