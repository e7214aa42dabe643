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

package server_test

import (
	"net/http"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/util"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var c *abtest.TestClient

	BeforeEach(func() {
		c = abtest.NewHTTPTestClient(baseURL)
	})

	It("should be able to retrieve data from context", func() {
		c.Request("GET", "/context", nil, nil, func(resp *http.Response) {
			body := c.ReadBody(resp, false)
			Expect(body).To(Equal("true"))
		}, http.StatusOK)

		c.Request("GET", "/contextChanged", nil, nil, func(resp *http.Response) {
			body := c.ReadBody(resp, false)
			Expect(body).To(Equal("false"))
		}, http.StatusOK)
	})

	It("should be able to retrieve a parameter", func() {
		random := util.RandomString(16)
		c.Request("GET", "/echo/"+random, nil, nil, func(resp *http.Response) {
			body := c.ReadBody(resp, false)
			Expect(body).To(Equal(random))
		}, http.StatusOK)
	})

	It("should expose the route name to the handler", func() {
		c.Request("GET", "/product/update/5", nil, nil, func(resp *http.Response) {
			Expect(c.ReadBody(resp, false)).To(Equal("product_update"))
		}, http.StatusOK)
	})

	Describe("URL generation", func() {
		It("should substitute the path parameters", func() {
			u, err := srv.URL("product_update", map[string]string{"id": "5"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(Equal("/product/update/5"))
		})

		It("should put the unused parameters into the query string", func() {
			u, err := srv.URL("product_update", map[string]string{"id": "a b", "page": "2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(Equal("/product/update/a%20b?page=2"))
		})

		It("should substitute catch-all parameters", func() {
			u, err := srv.URL("files", map[string]string{"filepath": "/css/admin.css"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(Equal("/files/css/admin.css"))
		})

		It("should fail on a missing parameter", func() {
			_, err := srv.URL("product_update", nil)
			Expect(err).To(HaveOccurred())
		})

		It("should fail on an unknown route", func() {
			_, err := srv.URL("nope", nil)
			Expect(err).To(HaveOccurred())
			Expect(srv.HasRoute("nope")).To(BeFalse())
			Expect(srv.HasRoute("files")).To(BeTrue())
		})

		It("should list the named routes", func() {
			Expect(srv.Routes()).To(HaveLen(2))
			Expect(srv.Routes()[0].Name).To(Equal("files"))
		})

		It("should refuse to register a route name twice with another path", func() {
			Expect(func() {
				srv.HandleNamed("files", http.MethodGet, "/other/*filepath", http.NotFoundHandler())
			}).To(Panic())
		})
	})
})
