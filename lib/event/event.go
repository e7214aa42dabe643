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

// Package event is a synchronous publish/subscribe mechanism.
//
// The server dispatches lifecycle events (migration, configuration reload)
// and services dispatch their own, like the admin's persist and batch events.
package event

import (
	"sync"

	"github.com/alien-bunny/backoffice/lib/errors"
)

// ErrorStrategy tells the dispatcher what to do with the error of a subscriber.
type ErrorStrategy int

const (
	// ErrorStrategyIgnore drops the errors.
	ErrorStrategyIgnore ErrorStrategy = iota
	// ErrorStrategyStop skips the remaining subscribers after an error.
	ErrorStrategyStop
	// ErrorStrategyAggregate runs every subscriber and returns all errors.
	ErrorStrategyAggregate
)

// Event is dispatched to the subscribers of its name.
//
// Both methods must return the same value on every call.
type Event interface {
	Name() string
	ErrorStrategy() ErrorStrategy
}

type Subscriber interface {
	Handle(e Event) error
}

// SubscriberFunc adapts a function to a Subscriber.
type SubscriberFunc func(e Event) error

func (f SubscriberFunc) Handle(e Event) error {
	return f(e)
}

// Action is a Subscriber that needs neither the event nor an error, e.g. a cache clear.
type Action func()

func (a Action) Handle(Event) error {
	a()
	return nil
}

// Dispatcher keeps the subscriptions and delivers the events in subscription order.
//
// It is safe to subscribe while other goroutines dispatch.
type Dispatcher struct {
	mtx         sync.RWMutex
	subscribers map[string][]Subscriber
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe adds subscribers to the event with the given name.
func (d *Dispatcher) Subscribe(name string, subscribers ...Subscriber) error {
	for _, s := range subscribers {
		if s == nil {
			return errors.New("nil subscriber for " + name)
		}
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.subscribers[name] = append(d.subscribers[name], subscribers...)

	return nil
}

// HasSubscribers tells if an event has at least one subscriber.
func (d *Dispatcher) HasSubscribers(name string) bool {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	return len(d.subscribers[name]) > 0
}

func (d *Dispatcher) subscribersOf(name string) []Subscriber {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	return append([]Subscriber(nil), d.subscribers[name]...)
}

// Dispatch runs the subscribers of the event and returns their errors according to its ErrorStrategy.
func (d *Dispatcher) Dispatch(e Event) []error {
	strategy := e.ErrorStrategy()

	var errs []error
	for _, s := range d.subscribersOf(e.Name()) {
		err := s.Handle(e)
		if err == nil || strategy == ErrorStrategyIgnore {
			continue
		}

		errs = append(errs, err)
		if strategy == ErrorStrategyStop {
			break
		}
	}

	return errs
}

// DispatchError is Dispatch with the errors joined into a single error value.
func (d *Dispatcher) DispatchError(e Event) error {
	return errors.NewMultiError(d.Dispatch(e))
}
