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

package configmw_test

import (
	"net/http"
	"reflect"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const customHeader = "X-Custom-Header"

var _ = Describe("Config middleware", func() {
	logger := abtest.GetLogger()
	conf := abtest.GetConfig(logger)

	It("should put the store on the request", func() {
		stack := middleware.NewStack(nil)
		stack.Push(configmw.NewConfigMiddleware(conf))

		abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			cfg := configmw.GetConfig(r)
			Expect(cfg).To(BeIdenticalTo(conf))

			session, err := cfg.Get("session")
			Expect(err).NotTo(HaveOccurred())
			Expect(session).NotTo(BeNil())

			var sc sessionmw.Config
			Expect(configmw.Load(r, "session", &sc)).To(Succeed())
			Expect(sc.CookieURL).To(Equal("/"))
		})
	})
})

var _ = Describe("Config-wrapped middleware", func() {
	var conf *config.Store
	var value string

	BeforeEach(func() {
		logger := abtest.GetLogger()
		conf = abtest.GetConfig(logger)
		value = util.RandomString(12)
	})

	run := func(key string, t reflect.Type) http.Header {
		stack := middleware.NewStack(nil)
		stack.Push(logmw.New(abtest.GetLogger()))
		stack.Push(configmw.NewConfigMiddleware(conf))
		wrapped := configmw.WrapMiddleware(key, t)
		conf.MaybeRegisterSchema(wrapped)
		stack.Push(wrapped)

		return abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {}).Header()
	}

	It("should unwrap a middleware with a value receiver", func() {
		mp := config.NewMemoryConfigProvider()
		mp.Save("testmw", testMiddleware{Value: value})
		conf.AddProviders(mp)

		Expect(run("testmw", reflect.TypeOf(testMiddleware{})).Get(customHeader)).To(Equal(value))
	})

	It("should unwrap a middleware with a pointer receiver", func() {
		mp := config.NewMemoryConfigProvider()
		mp.Save("ptrmw", ptrMiddleware{Value: value})
		conf.AddProviders(mp)

		Expect(run("ptrmw", reflect.TypeOf(ptrMiddleware{})).Get(customHeader)).To(Equal(value))
	})

	It("should depend on the wrapped middleware's dependencies", func() {
		wrapped := configmw.WrapMiddleware("deps", reflect.TypeOf(dependentMiddleware{}))
		Expect(wrapped.Dependencies()).To(ContainElement("*sessionmw.SessionMiddleware"))
		Expect(wrapped.ConfigSchema()).To(HaveKeyWithValue("deps", reflect.TypeOf(dependentMiddleware{})))
	})

	It("should skip the middleware without configuration", func() {
		Expect(run("missingmw", reflect.TypeOf(testMiddleware{})).Get(customHeader)).To(BeEmpty())
	})
})

type testMiddleware struct {
	Value string

	middleware.NoDependencies
}

func (m testMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(customHeader, m.Value)
		next.ServeHTTP(w, r)
	})
}

type ptrMiddleware struct {
	Value string
}

func (m *ptrMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(customHeader, m.Value)
		next.ServeHTTP(w, r)
	})
}

func (m *ptrMiddleware) Dependencies() []string {
	return nil
}

type dependentMiddleware struct {
	testMiddleware
}

func (dependentMiddleware) Dependencies() []string {
	return []string{"*sessionmw.SessionMiddleware"}
}
