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

package securitymw_test

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/errormw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/securitymw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("CSRF Middlewares", func() {
	logger, conf, cmw := abtest.SetupConfigMiddleware()

	smw := sessionmw.New("", time.Hour)
	conf.MaybeRegisterSchema(smw)

	stack := middleware.NewStack(nil)
	stack.Push(cmw)
	stack.Push(logmw.New(logger))
	stack.Push(smw)
	stack.Push(translationmw.New(logger, []language.Tag{language.English}))
	stack.Push(errormw.New(true))
	stack.Push(securitymw.NewCSRFMiddleware())

	stackGet := middleware.NewStack(nil)
	stackGet.Push(cmw)
	stackGet.Push(logmw.New(logger))
	stackGet.Push(smw)
	stackGet.Push(translationmw.New(logger, []language.Tag{language.English}))
	stackGet.Push(errormw.New(true))
	stackGet.Push(securitymw.NewCSRFMiddleware())
	stackGet.Push(securitymw.NewCSRFGetMiddleware("token"))

	It("should reject requests with an invalid csrf token", func() {
		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("POST", "/", nil)
		Expect(reqerr).NotTo(HaveOccurred())
		msg := util.RandomString(64)
		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(msg))
		})).ServeHTTP(w, r)

		Expect(w.Code).To(Equal(http.StatusForbidden))
		body := string(w.Body.Bytes())
		Expect(body).NotTo(ContainSubstring(msg))
	})

	It("should generate a token", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			token := securitymw.GetCSRFToken(r)
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(token))
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		body := string(w.Body.Bytes())
		Expect(body).NotTo(BeZero())
	})

	It("should reject GET requests with an invalid csrf token in the url", func() {
		msg := util.RandomString(64)
		w := abtest.TestMiddleware(stackGet, func(w http.ResponseWriter, r *http.Request) {
			token := securitymw.GetCSRFToken(r)
			Expect(token).NotTo(BeZero())
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(msg))
		})

		Expect(w.Code).To(Equal(http.StatusForbidden))
		body := string(w.Body.Bytes())
		Expect(body).NotTo(ContainSubstring(msg))
	})

	It("should accept GET requests with the token in the url", func() {
		handler := stack.Wrap(middleware.Func(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				q.Set("token", securitymw.GetCSRFToken(r))
				r.URL.RawQuery = q.Encode()
				next.ServeHTTP(w, r)
			})
		}).Wrap(securitymw.NewCSRFGetMiddleware("token").Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))))

		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("GET", "/", nil)
		Expect(reqerr).NotTo(HaveOccurred())
		handler.ServeHTTP(w, r)

		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("should keep the token for the session", func() {
		abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			token := securitymw.GetCSRFToken(r)
			Expect(token).To(HaveLen(64))
			Expect(securitymw.GetCSRFToken(r)).To(Equal(token))
		})
	})

	It("should leave form submissions to the form", func() {
		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("POST", "/", strings.NewReader("a=b"))
		Expect(reqerr).NotTo(HaveOccurred())
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})).ServeHTTP(w, r)

		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("should accept a JSON request with the token in the header", func() {
		withToken := middleware.NewStack(nil)
		withToken.Push(cmw)
		withToken.Push(logmw.New(logger))
		withToken.Push(smw)
		withToken.Push(translationmw.New(logger, []language.Tag{language.English}))
		withToken.Push(errormw.New(true))
		withToken.Push(middleware.Func(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.Header.Set("X-CSRF-Token", securitymw.GetCSRFToken(r))
				next.ServeHTTP(w, r)
			})
		}))
		withToken.Push(securitymw.NewCSRFMiddleware())

		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("POST", "/", strings.NewReader("{}"))
		Expect(reqerr).NotTo(HaveOccurred())
		r.Header.Set("Content-Type", "application/json")
		withToken.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})).ServeHTTP(w, r)

		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	DescribeTable("token comparison",
		func(submitted, token string, valid bool) {
			Expect(securitymw.ValidToken(submitted, token)).To(Equal(valid))
		},
		Entry("equal", "abc", "abc", true),
		Entry("different", "abc", "abd", false),
		Entry("empty submission", "", "abc", false),
		Entry("no session token", "", "", false),
	)
})

var _ = Describe("HSTS Middleware", func() {
	stack := middleware.NewStack(nil)
	stack.Push(&securitymw.HSTSMiddleware{
		MaxAge:            time.Hour,
		IncludeSubDomains: true,
	})

	It("should add the header to the response", func() {
		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("GET", "/", nil)
		Expect(reqerr).NotTo(HaveOccurred())
		r.TLS = &tls.ConnectionState{}
		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})).ServeHTTP(w, r)

		header := w.Header().Get("Strict-Transport-Security")
		Expect(header).To(Equal("max-age=3600; includeSubDomains"))
	})

	It("should not add the header to plain HTTP responses", func() {
		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("GET", "/", nil)
		Expect(reqerr).NotTo(HaveOccurred())
		r.Header.Set("X-Forwarded-Proto", "https")
		stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

		Expect(w.Header().Get("Strict-Transport-Security")).To(BeEmpty())
	})

	It("should trust the proxy when configured", func() {
		proxied := middleware.NewStack(nil)
		proxied.Push(&securitymw.HSTSMiddleware{
			MaxAge:              365 * 24 * time.Hour,
			Preload:             true,
			TrustForwardedProto: true,
		})

		w := httptest.NewRecorder()
		r, reqerr := abtest.NewRequest("GET", "/", nil)
		Expect(reqerr).NotTo(HaveOccurred())
		r.Header.Set("X-Forwarded-Proto", "https")
		proxied.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

		Expect(w.Header().Get("Strict-Transport-Security")).To(Equal("max-age=31536000; preload"))
	})
})

var _ = Describe("RestrictAddress Middleware", func() {
	stack := middleware.NewStack(nil)
	stack.Push(securitymw.NewRestrictPrivateAddressMiddleware())

	DescribeTable("the ip address blocking",
		func(ip string, code int) {
			Expect(testRestrictAddress(stack, ip)).To(Equal(code))
		},
		Entry("192.168.1.1", "192.168.1.1", http.StatusOK),
		Entry("8.8.4.4", "8.8.4.4", http.StatusForbidden),
		Entry("loopback v6", "[::1]", http.StatusOK),
		Entry("public v6", "[2001:4860:4860::8888]", http.StatusForbidden),
		Entry("mapped v4", "[::ffff:10.1.2.3]", http.StatusOK),
		Entry("garbage", "not-an-ip", http.StatusForbidden),
	)

	It("should reject invalid networks", func() {
		_, err := securitymw.NewRestrictAddressMiddleware("10.0.0.0/33")
		Expect(err).To(HaveOccurred())
	})

	It("should allow custom networks", func() {
		m, err := securitymw.NewRestrictAddressMiddleware("203.0.113.0/24")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Allowed("203.0.113.7:443")).To(BeTrue())
		Expect(m.Allowed("192.168.1.1:443")).To(BeFalse())
	})
})

var _ = Describe("AdminKey Middleware", func() {
	handler := securitymw.AdminKeyMiddleware("s3cr3t").Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	It("should accept the key in the query", func() {
		w := httptest.NewRecorder()
		r, err := abtest.NewRequest("GET", "/cache-clear?key=s3cr3t", nil)
		Expect(err).NotTo(HaveOccurred())
		handler.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("should accept the key in the header", func() {
		w := httptest.NewRecorder()
		r, err := abtest.NewRequest("GET", "/cache-clear", nil)
		Expect(err).NotTo(HaveOccurred())
		r.Header.Set(securitymw.HeaderAdminKey, "s3cr3t")
		handler.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("should abort without the key", func() {
		r, err := abtest.NewRequest("GET", "/cache-clear?key=guess", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(func() {
			handler.ServeHTTP(httptest.NewRecorder(), r)
		}).To(Panic())
	})
})

var _ = Describe("LengthLimit Middleware", func() {
	It("should refuse announced large bodies", func() {
		handler := securitymw.LengthLimitMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		w := httptest.NewRecorder()
		r, err := abtest.NewRequest("POST", "/", strings.NewReader("too long"))
		Expect(err).NotTo(HaveOccurred())
		handler.ServeHTTP(w, r)
		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
		Expect(w.Header().Get("Connection")).To(Equal("close"))
	})

	It("should cut unannounced large bodies", func() {
		var readErr error
		handler := securitymw.LengthLimitMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr = io.ReadAll(r.Body)
		}))
		w := httptest.NewRecorder()
		r, err := abtest.NewRequest("POST", "/", strings.NewReader("too long"))
		Expect(err).NotTo(HaveOccurred())
		r.ContentLength = -1
		handler.ServeHTTP(w, r)
		Expect(readErr).To(HaveOccurred())
	})
})

func testRestrictAddress(stack *middleware.Stack, ip string) int {
	w := httptest.NewRecorder()
	r, reqerr := abtest.NewRequest("GET", "/", nil)
	Expect(reqerr).NotTo(HaveOccurred())
	r.RemoteAddr = ip + ":12345"
	stack.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	})).ServeHTTP(w, r)

	return w.Code
}
