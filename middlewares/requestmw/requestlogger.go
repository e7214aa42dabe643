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

package requestmw

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/fatih/color"
)

const MiddlewareDependencyRequestlogger = "*requestmw.RequestLoggerMiddleware"

// DefaultSlowRequest is the duration above which a request is logged as a warning.
const DefaultSlowRequest = 2 * time.Second

var _ middleware.Middleware = &RequestLoggerMiddleware{}

// RequestLoggerMiddleware writes one log line per request.
//
// Successful requests are logged on info level, client errors and slow
// requests on warning level, server errors on error level. The values are
// colored when the development logger is used.
type RequestLoggerMiddleware struct {
	logger log.Logger
	Slow   time.Duration

	middleware.NoDependencies
}

var statusColors = [...]*color.Color{
	color.New(color.FgBlack, color.BgWhite),
	color.New(color.FgWhite, color.BgGreen),
	color.New(color.FgWhite, color.BgBlue),
	color.New(color.FgWhite, color.BgYellow),
	color.New(color.FgWhite, color.BgRed),
}

var (
	methodColor = color.New(color.FgCyan)
	urlColor    = color.New(color.FgBlue)
	reqidColor  = color.New(color.FgRed)
	timeColor   = color.New(color.Bold)
	plainColor  = color.New(color.Reset)
)

func NewRequestLoggerMiddleware(logger log.Logger) *RequestLoggerMiddleware {
	return &RequestLoggerMiddleware{
		logger: logger,
		Slow:   DefaultSlowRequest,
	}
}

func (rl *RequestLoggerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &requestLoggerResponseWriter{
			ResponseWriterWrapper: util.ResponseWriterWrapper{ResponseWriter: w},
			code:                  http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		keyvals := []interface{}{
			"method", log.Colored{Color: methodColor, Value: r.Method},
			"url", log.Colored{Color: urlColor, Value: requestURL(r)},
			"code", statusValue(rw.code),
			"size", rw.size,
			"duration", log.Colored{Color: timeColor, Value: formatDuration(elapsed)},
		}
		if reqid := GetRequestID(r); reqid != "" {
			keyvals = append(keyvals, "requestid", log.Colored{Color: reqidColor, Value: reqid})
		}

		rl.leveled(rw.code, elapsed).Log(keyvals...)
	})
}

func (rl *RequestLoggerMiddleware) leveled(code int, elapsed time.Duration) log.Logger {
	switch {
	case code >= http.StatusInternalServerError:
		return log.Error(rl.logger)
	case code >= http.StatusBadRequest, rl.Slow > 0 && elapsed > rl.Slow:
		return log.Warn(rl.logger)
	}

	return log.Info(rl.logger)
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func statusValue(code int) log.Colored {
	c := plainColor
	if class := code/100 - 1; class >= 0 && class < len(statusColors) {
		c = statusColors[class]
	}

	return log.Colored{Color: c, Value: strconv.Itoa(code)}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	}

	return fmt.Sprintf("%dns", d.Nanoseconds())
}

var _ http.Hijacker = &requestLoggerResponseWriter{}
var _ http.Flusher = &requestLoggerResponseWriter{}

type requestLoggerResponseWriter struct {
	util.ResponseWriterWrapper
	code        int
	size        int
	wroteHeader bool
}

func (rw *requestLoggerResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.code = code
		rw.wroteHeader = true
	}
	rw.ResponseWriterWrapper.WriteHeader(code)
}

func (rw *requestLoggerResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriterWrapper.Write(b)
	rw.size += n
	return n, err
}
