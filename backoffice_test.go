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

package backoffice_test

import (
	"bytes"
	"io/ioutil"
	"net/http"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/log"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	It("should migrate the schema of the services", func() {
		Expect(mockServer.Conn.Migrator().HasTable(&testRecord{})).To(BeTrue())

		c := clientFactory()
		c.Request("GET", "/records", nil, nil, func(resp *http.Response) {
			c.AssertJSON(resp, &[]testRecord{}, Equal(&[]testRecord{{1, "a"}, {2, "b"}}))
		}, http.StatusOK)
	})

	It("should hand out a CSRF token", func() {
		c := clientFactory()
		c.GetToken()
		Expect(c.Token).NotTo(BeEmpty())
	})

	It("should identify itself", func() {
		c := clientFactory()
		c.Request("GET", "/empty", nil, nil, func(resp *http.Response) {
			Expect(resp.Header.Get("X-Powered-By")).To(Equal("Backoffice " + backoffice.VERSION))
		}, http.StatusNoContent)
	})

	It("should return a 404 page for unknown paths", func() {
		c := clientFactory()
		page := c.Page("/does-not-exist", http.StatusNotFound)
		Expect(page).To(ContainSubstring("404"))
	})
})

var _ = Describe("Logger configuration", func() {
	It("should keep the given logger without a log section", func() {
		fallback := abtest.GetLogger()
		logger, err := backoffice.NewLogger(ioutil.Discard, backoffice.Config{}, fallback)
		Expect(err).NotTo(HaveOccurred())
		Expect(logger).To(BeIdenticalTo(fallback))
	})

	It("should build the logger of the log section", func() {
		conf := backoffice.Config{}
		conf.Log.Level = "warn"
		buf := bytes.NewBuffer(nil)

		logger, err := backoffice.NewLogger(buf, conf, abtest.GetLogger())
		Expect(err).NotTo(HaveOccurred())
		log.Info(logger).Log("msg", "hidden")
		log.Error(logger).Log("msg", "shown")
		Expect(buf.String()).To(Equal("level=error msg=shown\n"))
	})

	It("should reject an unknown level", func() {
		conf := backoffice.Config{}
		conf.Log.Level = "loud"
		_, err := backoffice.NewLogger(ioutil.Discard, conf, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Decoder", func() {
	It("should decode data from a JSON endpoint", func() {
		c := clientFactory()
		c.GetToken()

		By("failing on invalid data")
		buf := bytes.NewBufferString("[<>?<<><]]]}}}}")
		c.Request("POST", "/decode", buf, nil, nil, http.StatusBadRequest)

		By("failing on invalid content type")
		c.Request("POST", "/decode", nil, func(req *http.Request) {
			req.Header.Set("Content-Type", "xxx/invalid")
		}, nil, http.StatusUnsupportedMediaType)

		By("returning the POST data")
		data := testDecode{
			A: 65536,
			B: "asdf",
		}
		c.Request("POST", "/decode", c.JSONBuffer(data), nil, func(resp *http.Response) {
			c.AssertJSON(resp, &testDecode{}, Equal(&data))
		}, http.StatusOK)
	})

	It("should refuse a request without a CSRF token", func() {
		c := clientFactory()
		c.Request("POST", "/decode", c.JSONBuffer(testDecode{}), nil, nil, http.StatusForbidden)
	})
})

var _ = Describe("Error", func() {
	It("should handle panic", func() {
		c := clientFactory()
		c.Request("GET", "/panic", nil, nil, nil, http.StatusInternalServerError)
	})

	It("should handle a failing endpoint", func() {
		c := clientFactory()
		c.Request("GET", "/fail", nil, nil, nil, http.StatusTeapot)
	})
})

var _ = Describe("Binary", func() {
	It("should retrieve the exact same data", func() {
		c := clientFactory()
		c.Request("GET", "/binary", nil, nil, func(resp *http.Response) {
			b, err := ioutil.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(binaryData))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("test.bin"))
		}, http.StatusOK)
	})
})

var _ = Describe("Empty endpoint", func() {
	It("should return http.StatusNoContent", func() {
		c := clientFactory()
		c.Request("GET", "/empty", nil, nil, nil, http.StatusNoContent)
	})
})

var _ = Describe("Maintenance endpoints", func() {
	It("should require the admin key to clear the caches", func() {
		c := clientFactory()
		c.Request("GET", "/cache-clear", nil, nil, nil, http.StatusForbidden)
		c.Request("GET", "/cache-clear?key="+abtest.FakeAdminKey, nil, nil, nil, http.StatusNoContent)
		c.Request("GET", "/cache-clear", nil, func(req *http.Request) {
			req.Header.Set("X-Admin-Key", abtest.FakeAdminKey)
		}, nil, http.StatusNoContent)
	})

	It("should expose the metrics to private addresses only", func() {
		By("refusing a public address")
		c := clientFactory()
		c.Request("GET", "/metrics", nil, nil, nil, http.StatusForbidden)

		By("serving the loopback address")
		hc := httpFactory()
		hc.Request("GET", "/empty", nil, nil, nil, http.StatusNoContent)
		hc.Request("GET", "/metrics", nil, func(req *http.Request) {
			req.Header.Set("Accept", "text/plain")
		}, func(resp *http.Response) {
			b, err := ioutil.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(ContainSubstring("backoffice_http_requests_total"))
		}, http.StatusOK)
	})
})

var _ = Describe("Pager", func() {
	It("should default to the first page", func() {
		r, _ := http.NewRequest("GET", "/?page=x", nil)
		Expect(backoffice.Pager(r)).To(Equal(1))

		r, _ = http.NewRequest("GET", "/?page=-3", nil)
		Expect(backoffice.Pager(r)).To(Equal(1))

		r, _ = http.NewRequest("GET", "/?page=3", nil)
		Expect(backoffice.Pager(r)).To(Equal(3))
	})
})
