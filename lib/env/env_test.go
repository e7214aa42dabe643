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

package env_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"errors"
	"net/netip"
	"reflect"
	"time"

	"github.com/alien-bunny/backoffice/lib/env"
)

type scalars struct {
	Port    int
	Name    string
	Debug   bool
	Workers uint
	Ratio   float64
}

type flags struct {
	Count int
	On    bool
}

type withFunc struct {
	Callback func()
}

type settings struct {
	Timeout time.Duration
	Hosts   []string
	DB      *struct {
		DSN string `env:"dsn"`
	}
	Cache *struct {
		Size int
	}
	Listen  netip.Addr
	Skipped string `env:"-"`
	hidden  string
}

func unmarshalerFor(prefix string, vars map[string]string) *env.Unmarshaler {
	u := env.NewUnmarshaler()
	u.Prefix = prefix
	u.Loader = func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}

	return u
}

var _ = Describe("Unmarshaler", func() {
	DescribeTable("scalar fields",
		func(vars map[string]string, prefix string, expected interface{}) {
			v := reflect.New(reflect.TypeOf(expected).Elem()).Interface()
			u := unmarshalerFor(prefix, vars)
			u.Strict = true
			Expect(u.Unmarshal(v)).To(Succeed())
			Expect(v).To(Equal(expected))
		},
		Entry("with a prefix", map[string]string{
			"SVC_PORT":    "0x1f90",
			"SVC_NAME":    "backoffice",
			"SVC_DEBUG":   "TRUE",
			"SVC_WORKERS": "4",
			"SVC_RATIO":   "0.25",
		}, "SVC", &scalars{8080, "backoffice", true, 4, 0.25}),
		Entry("without a prefix", map[string]string{
			"COUNT": "-3",
			"ON":    "0",
		}, "", &flags{-3, false}),
		Entry("missing variables leave zero values", map[string]string{}, "", &flags{}),
	)

	It("reads durations, lists, tags, pointers and text unmarshalers", func() {
		u := unmarshalerFor("APP", map[string]string{
			"APP_TIMEOUT": "1m30s",
			"APP_HOSTS":   "a.example.com, b.example.com,",
			"APP_DB_DSN":  "file::memory:",
			"APP_LISTEN":  "127.0.0.1",
			"APP_SKIPPED": "nope",
			"APP_HIDDEN":  "nope",
		})
		s := &settings{}
		Expect(u.Unmarshal(s)).To(Succeed())

		Expect(s.Timeout).To(Equal(90 * time.Second))
		Expect(s.Hosts).To(Equal([]string{"a.example.com", "b.example.com"}))
		Expect(s.DB).NotTo(BeNil())
		Expect(s.DB.DSN).To(Equal("file::memory:"))
		Expect(s.Cache).To(BeNil())
		Expect(s.Listen).To(Equal(netip.MustParseAddr("127.0.0.1")))
		Expect(s.Skipped).To(BeEmpty())
		Expect(s.hidden).To(BeEmpty())
	})

	It("keeps an already allocated pointer", func() {
		u := unmarshalerFor("", map[string]string{"CACHE_SIZE": "64"})
		s := &settings{}
		s.Cache = &struct{ Size int }{Size: 1}
		cache := s.Cache
		Expect(u.Unmarshal(s)).To(Succeed())
		Expect(s.Cache).To(BeIdenticalTo(cache))
		Expect(s.Cache.Size).To(Equal(64))
	})

	DescribeTable("invalid values",
		func(vars map[string]string, variable string) {
			err := unmarshalerFor("", vars).Unmarshal(&settings{})
			var perr *env.ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Variable).To(Equal(variable))
		},
		Entry("duration", map[string]string{"TIMEOUT": "soon"}, "TIMEOUT"),
		Entry("nested int", map[string]string{"CACHE_SIZE": "big"}, "CACHE_SIZE"),
		Entry("text unmarshaler", map[string]string{"LISTEN": "localhost"}, "LISTEN"),
	)

	It("rejects an invalid bool", func() {
		err := unmarshalerFor("", map[string]string{"ON": "maybe"}).Unmarshal(&flags{})
		Expect(err).To(MatchError(ContainSubstring("env: invalid value of ON")))
	})

	It("fails when a non-pointer is given", func() {
		err := env.NewUnmarshaler().Unmarshal(flags{})
		Expect(err).To(MatchError("env: Unmarshal(non-pointer env_test.flags)"))
	})

	It("fails when nil is given", func() {
		Expect(env.NewUnmarshaler().Unmarshal(nil)).To(MatchError("env: Unmarshal(nil)"))
	})

	It("reports unsupported fields only in strict mode", func() {
		u := unmarshalerFor("", map[string]string{})
		Expect(u.Unmarshal(&withFunc{})).To(Succeed())

		u.Strict = true
		Expect(u.Unmarshal(&withFunc{})).To(MatchError("env: Unmarshal(func())"))
	})
})
