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
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/middleware"
)

const MiddlewareDependencyHSTS = "*securitymw.HSTSMiddleware"

var _ middleware.Middleware = &HSTSMiddleware{}

// HSTSMiddleware adds the Strict-Transport-Security header to the responses of HTTPS requests.
//
// It is configured by the "hsts" section. A zero MaxAge disables the header.
type HSTSMiddleware struct {
	MaxAge            time.Duration
	IncludeSubDomains bool
	Preload           bool
	// TrustForwardedProto treats requests with X-Forwarded-Proto: https as HTTPS requests, e.g. behind a TLS terminating proxy.
	TrustForwardedProto bool

	middleware.NoDependencies
}

func (h *HSTSMiddleware) Wrap(next http.Handler) http.Handler {
	header := h.String()
	if header == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.secure(r) {
			w.Header().Set("Strict-Transport-Security", header)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HSTSMiddleware) secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}

	return h.TrustForwardedProto && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// String returns the value of the header.
func (h *HSTSMiddleware) String() string {
	if h.MaxAge <= 0 {
		return ""
	}

	directives := []string{"max-age=" + strconv.FormatInt(int64(h.MaxAge/time.Second), 10)}
	if h.IncludeSubDomains {
		directives = append(directives, "includeSubDomains")
	}
	if h.Preload {
		directives = append(directives, "preload")
	}

	return strings.Join(directives, "; ")
}
