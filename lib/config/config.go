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

// Package config loads typed configuration sections from a stack of providers.
//
// Each section has a key and a registered Go type (its schema). When a section
// is requested, every provider that has the key unmarshals into a fresh value
// of the schema type, and the values are merged in provider order: earlier
// providers win, later ones fill the gaps.
package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/imdario/mergo"
)

type ConfigSchemaProvider interface {
	ConfigSchema() map[string]reflect.Type
}

type Config interface {
	Get(key string) (interface{}, error)
}

type Provider interface {
	Has(key string) bool
	Unmarshal(key string, v interface{}) error
}

type WritableProvider interface {
	Provider
	CanSave(key string) bool
	Save(key string, v interface{}) error
}

var _ Config = &Store{}

type Store struct {
	mtx        sync.RWMutex
	collection *Collection
	schemas    map[string]reflect.Type
	logger     log.Logger
}

func NewStore(logger log.Logger) *Store {
	return &Store{
		collection: NewCollection(),
		schemas:    make(map[string]reflect.Type),
		logger:     logger,
	}
}

// AddProviders appends providers to the store. Earlier providers take precedence.
func (s *Store) AddProviders(providers ...Provider) {
	s.collection.AddProviders(providers...)
}

// MaybeRegisterSchema registers the schemas of v if it implements ConfigSchemaProvider.
//
// It is safe to call on a nil store, which makes configuration optional for servers in tests.
func (s *Store) MaybeRegisterSchema(v interface{}) {
	if s == nil {
		return
	}

	if csp, ok := v.(ConfigSchemaProvider); ok {
		for name, t := range csp.ConfigSchema() {
			s.RegisterSchema(name, t)
		}
	}
}

func (s *Store) RegisterSchema(name string, schema reflect.Type) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if existing, found := s.schemas[name]; found && existing != schema {
		panic("schema " + name + " is already registered")
	}

	s.schemas[name] = schema
}

// ClearCache forgets the loaded sections, so the next Get reads the providers again.
func (s *Store) ClearCache() {
	s.collection.ClearCache()

	if s.logger != nil {
		log.Debug(s.logger).Log("msg", "configuration cache cleared")
	}
}

// Errors of the Store.
var (
	ErrUnknownSection = errors.New("unknown configuration section")
	ErrNotSaved       = errors.New("no provider accepts the configuration section")
)

func (s *Store) schema(key string) (reflect.Type, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if t, found := s.schemas[key]; found {
		return t, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownSection, key)
}

// Get returns a configuration section as a value of its schema type.
//
// A section that no provider has is returned as nil without an error.
func (s *Store) Get(key string) (interface{}, error) {
	t, err := s.schema(key)
	if err != nil {
		return nil, err
	}

	return s.collection.get(key, t)
}

// Load reads a configuration section into v, which must be a pointer to the schema type.
//
// v is left untouched when no provider has the section.
func (s *Store) Load(key string, v interface{}) error {
	val, err := s.Get(key)
	if err != nil || val == nil {
		return err
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Type() != reflect.TypeOf(val) {
		return fmt.Errorf("cannot load %s into %T", key, v)
	}
	rv.Elem().Set(reflect.ValueOf(val))

	return nil
}

// Save writes a section to the first provider that accepts it.
func (s *Store) Save(key string, v interface{}) error {
	t, err := s.schema(key)
	if err != nil {
		return err
	}
	if reflect.TypeOf(v) != t {
		return fmt.Errorf("cannot save %T as %s, expected %s", v, key, t)
	}

	return s.collection.set(key, v)
}

// Collection merges the sections of its providers and caches the results.
type Collection struct {
	mtx       sync.RWMutex
	cache     map[string]interface{}
	providers []Provider
}

func NewCollection() *Collection {
	return &Collection{
		cache: make(map[string]interface{}),
	}
}

func (c *Collection) AddProviders(providers ...Provider) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.providers = append(c.providers, providers...)
	c.cache = make(map[string]interface{})
}

func (c *Collection) ClearCache() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.cache = make(map[string]interface{})
}

func (c *Collection) get(key string, t reflect.Type) (interface{}, error) {
	c.mtx.RLock()
	val, found := c.cache[key]
	providers := c.providers
	c.mtx.RUnlock()

	if found {
		return val, nil
	}

	val, err := merge(providers, key, t)
	if err != nil {
		return nil, err
	}

	c.mtx.Lock()
	c.cache[key] = val
	c.mtx.Unlock()

	return val, nil
}

// merge unmarshals the section from every provider that has it. Values of earlier providers win.
func merge(providers []Provider, key string, t reflect.Type) (interface{}, error) {
	var merged reflect.Value

	for _, provider := range providers {
		if !provider.Has(key) {
			continue
		}

		current := reflect.New(t)
		if err := provider.Unmarshal(key, current.Interface()); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}

		if !merged.IsValid() {
			merged = current
			continue
		}

		if err := mergo.Merge(merged.Interface(), current.Elem().Interface()); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", key, err)
		}
	}

	if !merged.IsValid() {
		return nil, nil
	}

	return merged.Elem().Interface(), nil
}

func (c *Collection) set(key string, v interface{}) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	for _, provider := range c.providers {
		wp, ok := provider.(WritableProvider)
		if !ok || !wp.CanSave(key) {
			continue
		}

		if err := wp.Save(key, v); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		c.cache[key] = v

		return nil
	}

	return fmt.Errorf("%w: %s", ErrNotSaved, key)
}
