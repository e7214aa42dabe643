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

// Package abtest contains helpers for testing servers, middlewares and services.
package abtest

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
	"github.com/go-kit/kit/log/level"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var (
	FakeKey      = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 1, 2}
	FakeAdminKey = "00000000000000000000000000000000"
	LoggerWriter = ioutil.Discard
)

func init() {
	if os.Getenv("VERBOSE") == "1" {
		LoggerWriter = os.Stdout
	}
}

// DataMockerFunc fills the test database.
type DataMockerFunc func(conn *gorm.DB) error

func GetLogger() log.Logger {
	return log.NewDevLogger(LoggerWriter, level.AllowAll())
}

// DBConfig returns a configuration for a private in-memory sqlite database.
//
// The database lives as long as at least one connection is open, so the pool is limited to one connection.
func DBConfig() db.Config {
	return db.Config{
		Dialect:            db.DialectSQLite,
		DSN:                fmt.Sprintf("file:%s?mode=memory&cache=shared", util.RandomString(16)),
		MaxIdleConnections: 1,
		MaxOpenConnections: 1,
	}
}

// OpenDB opens a fresh in-memory database and migrates the given models into it.
func OpenDB(models ...interface{}) *gorm.DB {
	conn, err := db.Open(DBConfig(), GetLogger())
	if err != nil {
		panic(err)
	}

	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			panic(err)
		}
	}

	return conn
}

// GetConfig returns a configuration store with the test server, database and session sections.
func GetConfig(logger log.Logger) *config.Store {
	conf := config.NewStore(logger)
	conf.RegisterSchema("config", reflect.TypeOf(backoffice.Config{}))
	conf.RegisterSchema("session", reflect.TypeOf(sessionmw.Config{}))

	mp := config.NewMemoryConfigProvider()
	mp.Save("config", serverConfig())
	mp.Save("session", sessionConfig())
	conf.AddProviders(mp)

	return conf
}

// SetupConfigMiddleware creates a logger, a test configuration store and a middleware that serves the store.
func SetupConfigMiddleware() (log.Logger, *config.Store, *configmw.ConfigMiddleware) {
	logger := GetLogger()
	conf := GetConfig(logger)

	return logger, conf, configmw.NewConfigMiddleware(conf)
}

func TestMiddleware(stack *middleware.Stack, handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r, reqerr := NewRequest("GET", "/", nil)
	Expect(reqerr).NotTo(HaveOccurred())

	stack.Wrap(handler).ServeHTTP(w, r)

	return w
}

func NewRequest(method, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	r.Header.Set("Host", "test")
	r.Host = "test"

	return r, nil
}

func serverConfig() backoffice.Config {
	c := backoffice.Config{
		AdminKey: FakeAdminKey,
	}

	c.Cookie.Prefix = "BACKOFFICE_TEST"
	c.Directories.Assets = "-"
	c.Log.DisplayErrors = true
	c.Metrics.Enabled = true

	return c
}

func sessionConfig() sessionmw.Config {
	return sessionmw.Config{
		Key:       hex.EncodeToString(FakeKey),
		CookieURL: "/",
	}
}
