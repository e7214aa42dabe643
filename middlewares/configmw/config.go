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

// Package configmw exposes the configuration store on the request.
//
// It can also build a middleware from a configuration section, so a
// middleware like HSTS is turned on, off or tuned by editing the
// configuration and reloading it.
package configmw

import (
	"net/http"
	"reflect"

	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
)

const (
	MiddlewareDependencyConfig = "*configmw.ConfigMiddleware"
	CategoryConfigNotFound     = "config not found"

	component = "configmw"
)

type storeKey struct{}

// GetConfig returns the configuration store.
func GetConfig(r *http.Request) *config.Store {
	return r.Context().Value(storeKey{}).(*config.Store)
}

// Load reads a configuration section of the request's store into v.
func Load(r *http.Request, key string, v interface{}) error {
	return GetConfig(r).Load(key, v)
}

var _ middleware.Middleware = &ConfigMiddleware{}

type ConfigMiddleware struct {
	store *config.Store

	middleware.NoDependencies
}

func NewConfigMiddleware(store *config.Store) *ConfigMiddleware {
	return &ConfigMiddleware{
		store: store,
	}
}

func (c *ConfigMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, util.SetContext(r, storeKey{}, c.store))
	})
}

var (
	_ middleware.Middleware       = &ConfiguredMiddleware{}
	_ config.ConfigSchemaProvider = &ConfiguredMiddleware{}
)

// ConfiguredMiddleware runs the middleware stored in a configuration section.
//
// The section's schema is the middleware type itself. Value and pointer
// receivers both work. Without the section the middleware is skipped.
type ConfiguredMiddleware struct {
	key string
	t   reflect.Type
}

// WrapMiddleware creates a ConfiguredMiddleware for the section key with t as the middleware type.
func WrapMiddleware(key string, t reflect.Type) *ConfiguredMiddleware {
	return &ConfiguredMiddleware{key: key, t: t}
}

func (m *ConfiguredMiddleware) ConfigSchema() map[string]reflect.Type {
	return map[string]reflect.Type{
		m.key: m.t,
	}
}

func (m *ConfiguredMiddleware) Dependencies() []string {
	deps := []string{MiddlewareDependencyConfig, logmw.MiddlewareDependencyLog}
	if mw, ok := reflect.New(m.t).Interface().(middleware.Middleware); ok {
		deps = append(deps, mw.Dependencies()...)
	}

	return deps
}

func (m *ConfiguredMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := GetConfig(r).Get(m.key)
		if err != nil {
			logmw.Info(r, component, CategoryConfigNotFound).Log("error", err, "key", m.key)
		}

		handler := next
		if mw := asMiddleware(v); mw != nil {
			handler = mw.Wrap(next)
		}

		handler.ServeHTTP(w, r)
	})
}

func asMiddleware(v interface{}) middleware.Middleware {
	if v == nil {
		return nil
	}

	if mw, ok := v.(middleware.Middleware); ok {
		return mw
	}

	ptr := reflect.New(reflect.TypeOf(v))
	ptr.Elem().Set(reflect.ValueOf(v))
	mw, _ := ptr.Interface().(middleware.Middleware)

	return mw
}
