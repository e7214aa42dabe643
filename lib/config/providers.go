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

package config

import (
	"os"
	"strings"
	"sync"

	"github.com/alien-bunny/backoffice/lib/env"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/imdario/mergo"
)

var _ Provider = &EnvConfigProvider{}

// EnvConfigProvider reads sections from environment variables.
//
// The variables of a section are named after the upper case key and the
// field path, e.g. CONFIG_PORT or DATABASE_CONNECTIONSTRING. With a prefix
// the names become BACKOFFICE_CONFIG_PORT. The environment is read once and
// cached until Reset.
type EnvConfigProvider struct {
	Prefix    string
	Separator string

	mtx       sync.Mutex
	variables map[string]string
}

func NewEnvConfigProvider() *EnvConfigProvider {
	return &EnvConfigProvider{
		Separator: "_",
	}
}

func (e *EnvConfigProvider) environment() map[string]string {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if e.variables == nil {
		e.variables = make(map[string]string)
		for _, ev := range os.Environ() {
			if name, value, ok := strings.Cut(ev, "="); ok {
				e.variables[name] = value
			}
		}
	}

	return e.variables
}

// Reset makes the provider read the environment again.
func (e *EnvConfigProvider) Reset() {
	e.mtx.Lock()
	e.variables = nil
	e.mtx.Unlock()
}

func (e *EnvConfigProvider) prefixedKey(key string) string {
	key = strings.ToUpper(key)
	if e.Prefix == "" {
		return key
	}

	return strings.ToUpper(e.Prefix) + e.Separator + key
}

func (e *EnvConfigProvider) Has(key string) bool {
	prefix := e.prefixedKey(key) + e.Separator
	for name := range e.environment() {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func (e *EnvConfigProvider) Unmarshal(key string, v interface{}) error {
	variables := e.environment()

	u := env.NewUnmarshaler()
	u.Prefix = e.prefixedKey(key)
	u.Separator = e.Separator
	u.Loader = func(name string) (string, bool) {
		val, found := variables[name]
		return val, found
	}

	return u.Unmarshal(v)
}

var _ WritableProvider = &MemoryConfigProvider{}

// MemoryConfigProvider keeps sections in memory. Tests and runtime overrides use it.
type MemoryConfigProvider struct {
	mtx   sync.RWMutex
	store map[string]interface{}
}

func NewMemoryConfigProvider() *MemoryConfigProvider {
	m := &MemoryConfigProvider{}
	m.Reset()
	return m
}

// Reset removes every section.
func (m *MemoryConfigProvider) Reset() {
	m.mtx.Lock()
	m.store = make(map[string]interface{})
	m.mtx.Unlock()
}

func (m *MemoryConfigProvider) CanSave(key string) bool {
	return true
}

func (m *MemoryConfigProvider) Save(key string, v interface{}) error {
	m.mtx.Lock()
	m.store[key] = v
	m.mtx.Unlock()

	return nil
}

// Delete removes a section.
func (m *MemoryConfigProvider) Delete(key string) {
	m.mtx.Lock()
	delete(m.store, key)
	m.mtx.Unlock()
}

func (m *MemoryConfigProvider) Has(key string) bool {
	m.mtx.RLock()
	_, found := m.store[key]
	m.mtx.RUnlock()

	return found
}

func (m *MemoryConfigProvider) Unmarshal(key string, v interface{}) error {
	m.mtx.RLock()
	val, found := m.store[key]
	m.mtx.RUnlock()

	if !found {
		return errors.New("config section not found: " + key)
	}

	return mergo.Merge(v, val)
}
