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

// Package server wraps httprouter with a middleware stack, services and named routes.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	stdlog "log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/event"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

const (
	paramKey     = "abparam"
	routeNameKey = "abroutename"
)

// Service is a collection of endpoints that logically belong together or operate on the same part of the database schema.
type Service interface {
	// Name returns the name of this service instance.
	Name() string
	// Register the Service endpoints
	Register(*Server) error
}

type ServiceName string

func (n ServiceName) Name() string {
	return string(n)
}

// Route is a named route.
type Route struct {
	Name   string
	Method string
	Path   string
}

// Server is the main server struct.
type Server struct {
	Router          *httprouter.Router
	config          *config.Store
	master          bool
	middlewareStack *middleware.Stack
	Logger          log.Logger
	TLSConfig       *tls.Config
	HTTPServer      *http.Server
	services        []Service
	events          *event.Dispatcher

	routesMtx sync.RWMutex
	routes    map[string]Route
}

// NewServer creates a new server.
func NewServer(config *config.Store, logger log.Logger) *Server {
	s := &Server{
		Router:          httprouter.New(),
		config:          config,
		middlewareStack: middleware.NewStack(nil),
		Logger:          logger,
		routes:          make(map[string]Route),
		events:          event.NewDispatcher(),
	}
	s.Router.RedirectTrailingSlash = true
	s.Router.RedirectFixedPath = true
	s.Router.HandleMethodNotAllowed = true
	s.Router.HandleOPTIONS = true

	return s
}

// IsMaster tells if this server is in master mode.
//
// See SetMaster()
func (s *Server) IsMaster() bool {
	return s.master
}

// SetMaster enables master mode on this server.
//
// Only a master server migrates the database schema. If you run more than
// one instance, deploy the master first.
func (s *Server) SetMaster() {
	s.master = true
}

// Config returns the configuration store of the server.
func (s *Server) Config() *config.Store {
	return s.config
}

// Events returns the event dispatcher of the server.
func (s *Server) Events() *event.Dispatcher {
	return s.events
}

// Use adds middlewares to the top of the middleware stack.
func (s *Server) Use(m middleware.Middleware) {
	if merr := s.middlewareStack.Push(m); merr != nil {
		panic(merr)
	}
	s.config.MaybeRegisterSchema(m)
}

// UseF adds a middleware function to the top of the middleware stack.
func (s *Server) UseF(m func(http.Handler) http.Handler) {
	s.Use(middleware.Func(m))
}

// UseTop adds middlewares to the bottom of the middleware stack.
func (s *Server) UseTop(m middleware.Middleware) {
	if merr := s.middlewareStack.Shift(m); merr != nil {
		panic(merr)
	}
	s.config.MaybeRegisterSchema(m)
}

// UseTopF adds a middleware function to the bottom of the middleware stack.
func (s *Server) UseTopF(m func(http.Handler) http.Handler) {
	s.UseTop(middleware.Func(m))
}

// Handler creates a http.Handler from the server (using the middlewares and the router).
func (s *Server) Handler() http.Handler {
	return s.middlewareStack.Wrap(s.Router)
}

// Handle adds a handler to the router.
//
// The middleware list will be applied to this handler only.
func (s *Server) Handle(method, path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.handle("", method, path, handler, middlewares)
}

// HandleNamed adds a handler to the router under a route name.
//
// The name can be used to generate URLs with URL(), and it is available
// to the handler through GetRouteName().
func (s *Server) HandleNamed(name, method, path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.routesMtx.Lock()
	if existing, found := s.routes[name]; found && existing.Path != path {
		s.routesMtx.Unlock()
		panic(fmt.Sprintf("route %q is already registered to %s", name, existing.Path))
	}
	s.routes[name] = Route{
		Name:   name,
		Method: method,
		Path:   path,
	}
	s.routesMtx.Unlock()

	s.handle(name, method, path, handler, middlewares)
}

func (s *Server) handle(name, method, path string, handler http.Handler, middlewares []middleware.Middleware) {
	ms := s.middlewareStack
	h := handler

	// callstack cleanup
	if hu, ok := h.(HandlerUnwrapper); ok {
		h = hu.Unwrap()
	}

	if len(middlewares) > 0 {
		ms = middleware.NewStack(s.middlewareStack)
		for _, m := range middlewares {
			if merr := ms.Push(m); merr != nil {
				panic(merr)
			}
		}

		h = ms.Wrap(h)
	}

	if verr := ms.ValidateHandler(handler); verr != nil {
		panic(verr)
	}

	s.config.MaybeRegisterSchema(handler)

	s.Router.Handle(method, path, httprouter.Handle(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		r = util.SetContext(r, paramKey, p)
		if name != "" {
			r = util.SetContext(r, routeNameKey, name)
		}
		h.ServeHTTP(w, r)
	}))
}

// Get adds a GET handler to the router.
func (s *Server) Get(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodGet, path, handler, middlewares...)
}

// Post adds a POST handler to the router.
func (s *Server) Post(path string, handler http.Handler, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodPost, path, handler, middlewares...)
}

// GetF adds a GET HandlerFunc to the router.
func (s *Server) GetF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodGet, path, handler, middlewares...)
}

// PostF adds a POST HandlerFunc to the router.
func (s *Server) PostF(path string, handler http.HandlerFunc, middlewares ...middleware.Middleware) {
	s.Handle(http.MethodPost, path, handler, middlewares...)
}

// GetParams returns the path parameter values from the request.
func GetParams(r *http.Request) httprouter.Params {
	p, _ := r.Context().Value(paramKey).(httprouter.Params)
	return p
}

// GetRouteName returns the name of the matched route, or an empty string for unnamed routes.
func GetRouteName(r *http.Request) string {
	name, _ := r.Context().Value(routeNameKey).(string)
	return name
}

// Routes returns the named routes, sorted by name.
func (s *Server) Routes() []Route {
	s.routesMtx.RLock()
	defer s.routesMtx.RUnlock()

	routes := make([]Route, 0, len(s.routes))
	for _, route := range s.routes {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Name < routes[j].Name
	})

	return routes
}

// HasRoute tells if a named route exists.
func (s *Server) HasRoute(name string) bool {
	s.routesMtx.RLock()
	_, found := s.routes[name]
	s.routesMtx.RUnlock()

	return found
}

// URL generates the path of a named route.
//
// Parameters matching a path segment (":id" or "*filepath") are substituted,
// the rest become the query string.
func (s *Server) URL(name string, params map[string]string) (string, error) {
	s.routesMtx.RLock()
	route, found := s.routes[name]
	s.routesMtx.RUnlock()
	if !found {
		return "", errors.NewError(fmt.Sprintf("route %q is not found", name), "Page not found", nil)
	}

	used := make(map[string]bool)
	segments := strings.Split(route.Path, "/")
	for i, segment := range segments {
		if len(segment) < 2 || (segment[0] != ':' && segment[0] != '*') {
			continue
		}

		key := segment[1:]
		value, ok := params[key]
		if !ok {
			return "", fmt.Errorf("missing parameter %q for route %q", key, name)
		}
		used[key] = true

		if segment[0] == '*' {
			segments[i] = strings.TrimPrefix(value, "/")
		} else {
			segments[i] = url.PathEscape(value)
		}
	}

	u := strings.Join(segments, "/")

	query := url.Values{}
	for k, v := range params {
		if !used[k] {
			query.Set(k, v)
		}
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u, nil
}

// AddStaticLocalDir adds a local directory to the router.
func (s *Server) AddStaticLocalDir(prefix, path string) *Server {
	s.Router.ServeFiles(prefix+"/*filepath", http.Dir(path))

	return s
}

// AddStaticFS serves a file system (e.g. embedded assets) under a prefix.
func (s *Server) AddStaticFS(prefix string, fs http.FileSystem) *Server {
	s.Router.ServeFiles(prefix+"/*filepath", fs)

	return s
}

// RegisterService adds a service on the server.
//
// See the Service interface for more information.
func (s *Server) RegisterService(svc Service) error {
	if svc.Name() == "" {
		return errors.New("empty service name")
	}

	s.services = append(s.services, svc)
	s.config.MaybeRegisterSchema(svc)

	if err := svc.Register(s); err != nil {
		return fmt.Errorf("registering service %s: %w", svc.Name(), err)
	}

	return nil
}

func (s *Server) GetServices() []Service {
	return s.services[:]
}

// StartHTTPS starts the server.
func (s *Server) StartHTTPS(addr, certFile, keyFile string) error {
	return s.startServer(addr, certFile, keyFile, false)
}

func (s *Server) startServer(addr, certFile, keyFile string, forceHTTP bool) error {
	s.HTTPServer = &http.Server{
		Addr:      addr,
		Handler:   s.Handler(),
		TLSConfig: s.TLSConfig,
	}

	s.Logger.Log("serveraddr", addr)

	s.HTTPServer.ErrorLog = stdlog.New(log.NewStdlibAdapter(s.Logger), "", stdlog.LstdFlags)

	var err error
	if !forceHTTP && ((certFile != "" && keyFile != "") || s.HTTPServer.TLSConfig != nil) {
		err = s.HTTPServer.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = s.HTTPServer.ListenAndServe()
	}

	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// StartHTTP starts the server.
func (s *Server) StartHTTP(addr string) error {
	return s.startServer(addr, "", "", true)
}

// Shutdown stops a started server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.HTTPServer == nil {
		return nil
	}

	return s.HTTPServer.Shutdown(ctx)
}

// EnableAutocert adds autocert to the server.
//
// caDirEndpoint points to a ca directory endpoint. cacheDir defaults to "private/autocert-cache"
// when empty. The account key is generated and kept in the cache directory.
func (s *Server) EnableAutocert(caDirEndpoint, cacheDir string, hostPolicy autocert.HostPolicy) error {
	if cacheDir == "" {
		cacheDir = "private/autocert-cache"
	}

	m := &autocert.Manager{
		Client: &acme.Client{
			DirectoryURL: caDirEndpoint,
		},
		Prompt:     autocert.AcceptTOS,
		HostPolicy: hostPolicy,
		Cache:      autocert.DirCache(cacheDir),
	}

	if s.TLSConfig == nil {
		s.TLSConfig = &tls.Config{}
	}

	s.TLSConfig.GetCertificate = m.GetCertificate

	return nil
}

// EnableLetsEncrypt adds autocert to the server with LetsEncrypt CA dir.
//
// See the documentation of EnableAutocert for cacheDir and hostPolicy.
func (s *Server) EnableLetsEncrypt(cacheDir string, hostPolicy autocert.HostPolicy) error {
	return s.EnableAutocert(acme.LetsEncryptURL, cacheDir, hostPolicy)
}

type HandlerUnwrapper interface {
	Unwrap() http.Handler
}
