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

// Package metricsmw collects prometheus metrics about the served requests.
package metricsmw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MiddlewareDependencyMetrics = "*metricsmw.Middleware"

	Namespace = "backoffice"

	metricsKey = "abmetrics"
)

var _ middleware.Middleware = &Middleware{}

// Middleware measures the requests and keeps the registry of the application metrics.
type Middleware struct {
	middleware.NoDependencies
	registry *prometheus.Registry
	requests metrics.Counter
	duration metrics.Histogram

	mtx      sync.Mutex
	counters map[string]metrics.Counter
}

// New creates a middleware with its own registry.
func New() *Middleware {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of served HTTP requests.",
	}, []string{"method", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	reg.MustRegister(requests, duration)

	return &Middleware{
		registry: reg,
		requests: kitprometheus.NewCounter(requests),
		duration: kitprometheus.NewHistogram(duration),
		counters: make(map[string]metrics.Counter),
	}
}

// Registry returns the prometheus registry of the middleware.
func (m *Middleware) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the metrics in the prometheus text format.
func (m *Middleware) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Counter returns a counter, registering it on first use.
//
// Later calls with the same name return the same counter; help and labels are taken from the first call.
func (m *Middleware) Counter(name, help string, labels ...string) metrics.Counter {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if c, found := m.counters[name]; found {
		return c
	}

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	m.registry.MustRegister(cv)

	c := kitprometheus.NewCounter(cv)
	m.counters[name] = c

	return c
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriterWrapper: util.ResponseWriterWrapper{ResponseWriter: w}}

		next.ServeHTTP(sw, util.SetContext(r, metricsKey, m))

		code := sw.code
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.With("method", r.Method, "code", strconv.Itoa(code)).Add(1)
		m.duration.With("method", r.Method).Observe(time.Since(start).Seconds())
	})
}

// GetMetrics returns the middleware from the request, or nil when metrics are disabled.
func GetMetrics(r *http.Request) *Middleware {
	m, _ := r.Context().Value(metricsKey).(*Middleware)
	return m
}

type statusWriter struct {
	util.ResponseWriterWrapper
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}
