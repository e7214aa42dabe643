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

package logmw_test

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/requestmw"
	"github.com/go-kit/kit/log/level"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Log Middleware", func() {
	out := bytes.NewBuffer(nil)

	logger := log.NewJSONLogger(out, level.AllowAll())

	stack := middleware.NewStack(nil)
	stack.Push(requestmw.NewRequestIDMiddleware())
	stack.Push(logmw.New(logger))

	It("should record log messages in the request buffer", func() {
		msg := util.RandomString(64)
		abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			m := map[string]func(*http.Request, interface{}, interface{}) log.Logger{
				"debug": logmw.Debug,
				"info":  logmw.Info,
				"warn":  logmw.Warn,
				"error": logmw.Error,
			}

			for lvl, logger := range m {
				logger(r, "logmw", "test").Log("msg", msg)
				assertLog(lvl, msg, out)
			}
		})
	})

	It("should tag the lines with the request id", func() {
		var reqid string
		abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			reqid = requestmw.GetRequestID(r)
			logmw.Info(r, nil, nil).Log("msg", "tagged")
		})

		data := make(map[string]string)
		Expect(json.Unmarshal(out.Bytes(), &data)).To(Succeed())
		out.Reset()
		Expect(reqid).NotTo(BeEmpty())
		Expect(data["requestid"]).To(Equal(reqid))
		Expect(data).NotTo(HaveKey("component"))
	})
})

var _ = Describe("Request logger", func() {
	It("should drop the logs without the middleware", func() {
		r, err := abtest.NewRequest("GET", "/", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(logmw.Info(r, "logmw", "test").Log("msg", "dropped")).To(Succeed())
	})

	It("should add context for the following handlers", func() {
		out := bytes.NewBuffer(nil)
		stack := middleware.NewStack(nil)
		stack.Push(logmw.New(log.NewJSONLogger(out, level.AllowAll())))

		abtest.TestMiddleware(stack, func(w http.ResponseWriter, r *http.Request) {
			r = logmw.With(r, "slug", "product")
			logmw.Info(r, "admin", "persist").Log("msg", "saved")
		})

		data := make(map[string]string)
		Expect(json.Unmarshal(out.Bytes(), &data)).To(Succeed())
		Expect(data["slug"]).To(Equal("product"))
		Expect(data["msg"]).To(Equal("saved"))
	})
})

func assertLog(lvl string, msg string, buf *bytes.Buffer) {
	loggedBytes := buf.Bytes()
	buf.Reset()
	data := make(map[string]string)
	Expect(json.Unmarshal(loggedBytes, &data)).NotTo(HaveOccurred())
	Expect(data["level"]).To(Equal(lvl))
	Expect(data["category"]).To(Equal("test"))
	Expect(data["component"]).To(Equal("logmw"))
	Expect(data["msg"]).To(Equal(msg))
}
