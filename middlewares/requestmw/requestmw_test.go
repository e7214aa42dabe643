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

package requestmw_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/middlewares/requestmw"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("RequestID Middleware", func() {
	stack := middleware.NewStack(nil)
	stack.Push(requestmw.NewRequestIDMiddleware())

	It("should generate a request id", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			id := requestmw.GetRequestID(r)
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(id))
		})

		body := string(w.Body.Bytes())
		Expect(body).NotTo(BeZero())
		_, err := uuid.Parse(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Header().Get(requestmw.HeaderRequestID)).To(Equal(body))
	})

	It("should keep a valid incoming request id", func() {
		incoming := uuid.NewString()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(requestmw.HeaderRequestID, incoming)

		var id string
		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id = requestmw.GetRequestID(r)
		})).ServeHTTP(w, r)

		Expect(id).To(Equal(incoming))
	})

	It("should replace an invalid incoming request id", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(requestmw.HeaderRequestID, "<script>")

		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

		Expect(w.Header().Get(requestmw.HeaderRequestID)).NotTo(Equal("<script>"))
	})
})

var _ = Describe("Request id generation", func() {
	It("uses the configured generator", func() {
		mw := requestmw.NewRequestIDMiddleware()
		mw.Generate = func() string { return "fixed" }

		var fromContext string
		w := httptest.NewRecorder()
		mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = requestmw.RequestIDFromContext(r.Context())
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(fromContext).To(Equal("fixed"))
		Expect(w.Header().Get(requestmw.HeaderRequestID)).To(Equal("fixed"))
	})

	It("is empty outside of the middleware", func() {
		Expect(requestmw.GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil))).To(BeEmpty())
	})
})

var _ = Describe("RequestLogger Middleware", func() {
	lw := bytes.NewBuffer(nil)
	logger := log.NewDevLogger(lw, level.AllowAll())
	stack := middleware.NewStack(nil)
	stack.Push(requestmw.NewRequestLoggerMiddleware(logger))

	It("should log the request", func() {
		abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		logs := string(lw.Bytes())
		Expect(logs).To(ContainSubstring("GET"))
		Expect(logs).To(ContainSubstring("/"))
		Expect(logs).To(ContainSubstring(strconv.Itoa(http.StatusTeapot)))
	})
})

var _ = Describe("RequestLogger levels", func() {
	var lw *bytes.Buffer
	var stack *middleware.Stack

	BeforeEach(func() {
		lw = bytes.NewBuffer(nil)
		stack = middleware.NewStack(nil)
		stack.Push(requestmw.NewRequestIDMiddleware())
		stack.Push(requestmw.NewRequestLoggerMiddleware(log.NewProdLogger(lw, level.AllowAll())))
	})

	DescribeTable("the level follows the status code",
		func(code int, expected string) {
			abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				w.Write([]byte("hello"))
			})

			logs := lw.String()
			Expect(logs).To(ContainSubstring("level=" + expected))
			Expect(logs).To(ContainSubstring("code=" + strconv.Itoa(code)))
			Expect(logs).To(ContainSubstring("size=5"))
			Expect(logs).To(ContainSubstring("requestid="))
		},
		Entry("ok", http.StatusOK, "info"),
		Entry("redirect", http.StatusFound, "info"),
		Entry("not found", http.StatusNotFound, "warn"),
		Entry("server error", http.StatusBadGateway, "error"),
	)

	It("should log the query string", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/admin/product?page=2", nil)
		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

		Expect(lw.String()).To(ContainSubstring("http://example.com/admin/product?page=2"))
	})
})
