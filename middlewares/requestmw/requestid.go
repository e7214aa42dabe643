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

package requestmw

import (
	"context"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/google/uuid"
)

const (
	MiddlewareDependencyRequestID = "*requestmw.RequestIDMiddleware"
	HeaderRequestID               = "X-Request-ID"
)

type requestIDKey struct{}

var _ middleware.Middleware = &RequestIDMiddleware{}

// RequestIDMiddleware tags every request with an id, and sends it back in the X-Request-ID header.
//
// An incoming X-Request-ID is kept when it is a UUID, so that an id assigned by a proxy can be followed.
type RequestIDMiddleware struct {
	middleware.NoDependencies

	// Generate creates the id of a request without a usable incoming one.
	Generate func() string
}

func NewRequestIDMiddleware() *RequestIDMiddleware {
	return &RequestIDMiddleware{
		Generate: uuid.NewString,
	}
}

func (m *RequestIDMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.requestID(r.Header.Get(HeaderRequestID))
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, util.SetContext(r, requestIDKey{}, id))
	})
}

func (m *RequestIDMiddleware) requestID(incoming string) string {
	if id, err := uuid.Parse(incoming); err == nil {
		return id.String()
	}

	return m.Generate()
}

// GetRequestID returns the id of the request, or an empty string outside of the middleware.
func GetRequestID(r *http.Request) string {
	return RequestIDFromContext(r.Context())
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
