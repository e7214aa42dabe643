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
	"crypto/subtle"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/middlewares/errormw"
)

// HeaderAdminKey carries the admin key when it is not in the "key" query parameter.
const HeaderAdminKey = "X-Admin-Key"

// ValidToken compares a submitted token with the expected one in constant time. Empty tokens are never valid.
func ValidToken(submitted, expected string) bool {
	if submitted == "" || expected == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(submitted), []byte(expected)) == 1
}

// AdminKeyMiddleware protects maintenance endpoints, like reloading the configuration, with a shared key.
type AdminKeyMiddleware string

func (key AdminKeyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ValidToken(submittedAdminKey(r), string(key)) {
			errors.Fail(http.StatusForbidden, errors.New("invalid admin key"))
		}

		next.ServeHTTP(w, r)
	})
}

func submittedAdminKey(r *http.Request) string {
	if key := r.Header.Get(HeaderAdminKey); key != "" {
		return key
	}

	return r.URL.Query().Get("key")
}

func (key AdminKeyMiddleware) Dependencies() []string {
	return []string{
		errormw.MiddlewareDependencyError,
	}
}
