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

// Package rendermw gives every request a render.Renderer that is rendered after the handler returns.
package rendermw

import (
	"net/http"

	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/render"
	"github.com/alien-bunny/backoffice/lib/util"
)

const (
	MiddlewareDependencyRender = "*rendermw.RendererMiddleware"

	renderKey = "render"
)

var _ middleware.Middleware = &RendererMiddleware{}

// RendererMiddleware holds back the status code of the response until the renderer runs.
//
// Middlewares after this one (e.g. the session middleware, which sets its
// cookie in WriteHeader) see a ResponseWriter whose WriteHeader only records
// the code. The headers are sent with the first Write or by the renderer.
// Responses to HEAD requests have no body.
type RendererMiddleware struct {
	middleware.NoDependencies
}

func New() *RendererMiddleware {
	return &RendererMiddleware{}
}

func (m *RendererMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w = headResponseWriter{util.ResponseWriterWrapper{ResponseWriter: w}}
		}

		renderer := render.NewRenderer()
		r = util.SetContext(r, renderKey, renderer)

		next.ServeHTTP(&rendererResponseWriter{
			ResponseWriterWrapper: util.ResponseWriterWrapper{ResponseWriter: w},
			renderer:              renderer,
		}, r)

		renderer.Render(w, r)
	})
}

// Render returns the Renderer of the request.
func Render(r *http.Request) *render.Renderer {
	return r.Context().Value(renderKey).(*render.Renderer)
}

var (
	_ http.Hijacker = &rendererResponseWriter{}
	_ http.Flusher  = &rendererResponseWriter{}
	_ http.Pusher   = &rendererResponseWriter{}
)

type rendererResponseWriter struct {
	util.ResponseWriterWrapper
	renderer *render.Renderer
}

// Write sends the headers with the recorded code first. The renderer won't render after that.
func (rw *rendererResponseWriter) Write(b []byte) (int, error) {
	if !rw.renderer.IsRendered() {
		code := rw.renderer.Code
		if code == 0 {
			code = http.StatusOK
		}
		rw.ResponseWriter.WriteHeader(code)
		rw.renderer.SetRendered()
	}

	return rw.ResponseWriter.Write(b)
}

// WriteHeader records the code on the renderer. A 200 does not overwrite a code that is already set.
func (rw *rendererResponseWriter) WriteHeader(code int) {
	if rw.renderer.Code == 0 || (code != http.StatusOK && code != 0) {
		rw.renderer.SetCode(code)
	}
}

// headResponseWriter drops the body.
type headResponseWriter struct {
	util.ResponseWriterWrapper
}

func (w headResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}
