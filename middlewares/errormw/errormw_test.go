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

package errormw_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/render"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/errormw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/requestmw"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var _ = Describe("Error Middleware", func() {
	logger, _, cmw := abtest.SetupConfigMiddleware()
	stack := middleware.NewStack(nil)
	stack.Push(requestmw.NewRequestIDMiddleware())
	stack.Push(logmw.New(logger))
	stack.Push(cmw)

	stack.Push(translationmw.New(logger, []language.Tag{language.English}))
	stack.Push(errormw.New(true))

	It("should recover a panic and reply with an internal server error", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			panic("")
		})

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("should display an error message", func() {
		msg := util.RandomString(16)
		vmsg := util.RandomString(32)
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			errors.Fail(http.StatusNotFound, errors.NewError(msg, vmsg, nil))
		})

		Expect(w.Code).To(Equal(http.StatusNotFound))
		body := string(w.Body.Bytes())
		Expect(body).To(ContainSubstring(msg))
		Expect(body).NotTo(ContainSubstring(vmsg))
	})

	It("should turn a missing record into a not found page", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			panic(gorm.ErrRecordNotFound)
		})

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should reply with a not found status for FailNotFound", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			errors.FailNotFound(errors.NotFound("product", 42))
		})

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should reply with a conflict for a constraint violation", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			panic(gorm.ErrForeignKeyViolated)
		})

		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("should render the error as JSON", func() {
		w := requestWithAccept(stack, "application/json", func(w http.ResponseWriter, r *http.Request) {
			errors.Fail(http.StatusBadRequest, errors.New("broken"))
		})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var body map[string]string
		Expect(json.Unmarshal(bytes.TrimPrefix(w.Body.Bytes(), []byte(render.JSONSecurityPrefix)), &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("message", "broken"))
		Expect(body).To(HaveKey("requestid"))
		Expect(body).To(HaveKey("logs"))
	})

	It("should render the error as XML", func() {
		w := requestWithAccept(stack, "application/xml", func(w http.ResponseWriter, r *http.Request) {
			errors.Fail(http.StatusBadRequest, errors.New("broken"))
		})

		Expect(w.Body.String()).To(ContainSubstring(`<error code="400">`))
		Expect(w.Body.String()).To(ContainSubstring(`<message>broken</message>`))
	})
})

var _ = Describe("Error Middleware in production", func() {
	logger, _, cmw := abtest.SetupConfigMiddleware()
	stack := middleware.NewStack(nil)
	stack.Push(requestmw.NewRequestIDMiddleware())
	stack.Push(logmw.New(logger))
	stack.Push(cmw)
	stack.Push(translationmw.New(logger, []language.Tag{language.English}))
	stack.Push(errormw.New(false))

	It("should hide the internal error", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			panic(fmt.Errorf("dial %s: refused", "secret connection string"))
		})

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("secret"))
		Expect(w.Body.String()).To(ContainSubstring(http.StatusText(http.StatusInternalServerError)))
		Expect(w.Body.String()).NotTo(ContainSubstring("<pre>"))
	})

	It("should show the user facing message", func() {
		w := abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			errors.Fail(http.StatusNotFound, errors.NewError("internal", "The product does not exist.", nil))
		})

		Expect(w.Body.String()).To(ContainSubstring("The product does not exist."))
		Expect(w.Body.String()).NotTo(ContainSubstring("internal"))
	})
})

func requestWithAccept(stack *middleware.Stack, accept string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r, err := abtest.NewRequest(http.MethodGet, "/", nil)
	Expect(err).NotTo(HaveOccurred())
	r.Header.Set("Accept", accept)

	stack.Wrap(handler).ServeHTTP(w, r)

	return w
}
