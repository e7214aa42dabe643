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

package securitymw

import (
	"mime"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
)

const (
	MiddlewareDependencyCSRF = "*securitymw.CSRFMiddleware"

	// HeaderCSRFToken carries the token of script requests.
	HeaderCSRFToken = "X-CSRF-Token"

	csrfComponent  = "csrf"
	csrfSessionKey = "_csrf"
	csrfTokenBytes = 32
)

// ErrCSRF is the error of the requests that fail the token check.
var ErrCSRF = errors.New("CSRF token validation failed")

var _ middleware.Middleware = &CSRFMiddleware{}

// CSRFMiddleware compares a token of the request with the token stored in the session.
type CSRFMiddleware struct {
	source string
	token  func(r *http.Request) string
	checks func(r *http.Request) bool
}

// NewCSRFMiddleware checks the X-CSRF-Token header of POST, PUT, DELETE and PATCH requests.
//
// HTML form submissions (urlencoded and multipart bodies) are let through:
// they carry the token in a hidden field, and lib/form checks it. Handlers
// that read form bodies without lib/form must check the token themselves.
func NewCSRFMiddleware() *CSRFMiddleware {
	return &CSRFMiddleware{
		source: "header",
		token: func(r *http.Request) string {
			return r.Header.Get(HeaderCSRFToken)
		},
		checks: func(r *http.Request) bool {
			return isUnsafe(r.Method) && !isFormSubmission(r)
		},
	}
}

// NewCSRFGetMiddleware checks the token in the urlParam query parameter on every request.
//
// It protects links that change state, so it belongs on individual routes, not on the server.
func NewCSRFGetMiddleware(urlParam string) *CSRFMiddleware {
	return &CSRFMiddleware{
		source: "query",
		token: func(r *http.Request) string {
			return r.URL.Query().Get(urlParam)
		},
		checks: func(r *http.Request) bool {
			return true
		},
	}
}

func (c *CSRFMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.checks(r) {
			submitted := c.token(r)
			if !ValidToken(submitted, sessionmw.GetSession(r)[csrfSessionKey]) {
				logmw.Debug(r, csrfComponent, logmw.CategoryValidationFailure).Log(
					"source", c.source,
					"submitted", submitted != "",
				)
				errors.Fail(http.StatusForbidden, ErrCSRF)
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (c *CSRFMiddleware) Dependencies() []string {
	return []string{logmw.MiddlewareDependencyLog, sessionmw.MiddlewareDependencySession}
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}

	return false
}

func isFormSubmission(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}

	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// GetCSRFToken returns the CSRF token of the session, creating one when the session has none.
func GetCSRFToken(r *http.Request) string {
	s := sessionmw.GetSession(r)
	if token := s[csrfSessionKey]; token != "" {
		return token
	}

	token := util.RandomSecret(csrfTokenBytes)
	s[csrfSessionKey] = token

	return token
}
