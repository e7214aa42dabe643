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

// Package middleware contains the middleware stack of the server.
//
// A middleware declares the middlewares it needs to run after. They are
// identified by the string form of their type, like
// "*sessionmw.SessionMiddleware", and every package exports its own name as a
// MiddlewareDependency constant. A Stack refuses a middleware or a handler
// whose dependencies were not pushed before.
package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type HandlerWrapper interface {
	Wrap(http.Handler) http.Handler
}

type HasMiddlewareDependencies interface {
	Dependencies() []string
}

type Middleware interface {
	HandlerWrapper
	HasMiddlewareDependencies
}

// NoDependencies can be embedded into middlewares that run anywhere in the stack.
type NoDependencies struct{}

func (NoDependencies) Dependencies() []string {
	return nil
}

// Func turns a wrapper function into a Middleware without dependencies.
type Func func(http.Handler) http.Handler

func (f Func) Wrap(next http.Handler) http.Handler {
	return f(next)
}

func (Func) Dependencies() []string {
	return nil
}

// WrapHandler attaches dependencies to a handler. The server checks them when the handler is added to a route.
func WrapHandler(h http.Handler, dependencies ...string) http.Handler {
	return &dependentHandler{
		Handler: h,
		deps:    dependencies,
	}
}

func WrapHandlerFunc(f func(http.ResponseWriter, *http.Request), dependencies ...string) http.Handler {
	return WrapHandler(http.HandlerFunc(f), dependencies...)
}

type dependentHandler struct {
	http.Handler
	deps []string
}

func (h *dependentHandler) Dependencies() []string {
	return h.deps
}

// Unwrap returns the original handler.
func (h *dependentHandler) Unwrap() http.Handler {
	return h.Handler
}

// Stack is an ordered list of middlewares. A child stack sees the middlewares of its parent.
type Stack struct {
	parent      *Stack
	middlewares []Middleware
	provided    map[string]bool
}

func NewStack(parent *Stack) *Stack {
	return &Stack{
		parent:   parent,
		provided: make(map[string]bool),
	}
}

// Push adds a middleware to the end of the stack.
func (s *Stack) Push(m Middleware) error {
	if err := s.check(m); err != nil {
		return err
	}

	s.middlewares = append(s.middlewares, m)

	return nil
}

// Shift adds a middleware to the beginning of the stack.
func (s *Stack) Shift(m Middleware) error {
	if err := s.check(m); err != nil {
		return err
	}

	s.middlewares = append([]Middleware{m}, s.middlewares...)

	return nil
}

func (s *Stack) check(m Middleware) error {
	if err := s.satisfies(m.Dependencies()); err != nil {
		return err
	}

	s.provided[fmt.Sprintf("%T", m)] = true

	return nil
}

// ValidateHandler checks the dependencies of a handler created with WrapHandler.
func (s *Stack) ValidateHandler(h http.Handler) error {
	if d, ok := h.(HasMiddlewareDependencies); ok {
		return s.satisfies(d.Dependencies())
	}

	return nil
}

func (s *Stack) satisfies(deps []string) error {
	for _, dep := range deps {
		if !s.has(dep) {
			return DependencyError{
				NotFound: dep,
				Provided: s.Provided(),
			}
		}
	}

	return nil
}

func (s *Stack) has(dep string) bool {
	for current := s; current != nil; current = current.parent {
		if current.provided[dep] {
			return true
		}
	}

	return false
}

// Provided returns the sorted names of the middlewares on this stack and its parents.
func (s *Stack) Provided() []string {
	var names []string
	for current := s; current != nil; current = current.parent {
		for name := range current.provided {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}

// Wrap wraps a handler with the middlewares. The first middleware of the stack runs first.
func (s *Stack) Wrap(handler http.Handler) http.Handler {
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		handler = s.middlewares[i].Wrap(handler)
	}

	return handler
}

// DependencyError is returned when a middleware or a handler misses a dependency.
type DependencyError struct {
	NotFound string
	Provided []string
}

func (e DependencyError) Error() string {
	msg := fmt.Sprintf("dependency %q is not found", e.NotFound)
	if len(e.Provided) > 0 {
		msg += " (provided: " + strings.Join(e.Provided, ", ") + ")"
	}

	return msg
}
