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

// Package sessionmw keeps the session in a signed cookie.
package sessionmw

import (
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
)

const (
	MiddlewareDependencySession = "*sessionmw.SessionMiddleware"
	sessionComponent            = "session middleware"
	sessionContextKey           = "SESSION"
	cookieSuffix                = "_SESSION"
)

// GetSession returns the session of the request.
func GetSession(r *http.Request) session.Session {
	return r.Context().Value(sessionContextKey).(session.Session)
}

// Config is the "session" configuration section.
type Config struct {
	// Key is the hex encoded secret key that signs the cookies. Generate one with the gensecret command.
	Key string `json:"key"`
	// CookieURL sets the domain and the path of the cookie. An https URL makes the cookie secure.
	CookieURL string `json:"cookie_url"`
	// SameSite is one of lax (the default), strict or none.
	SameSite string `json:"same_site"`
}

func (c Config) sameSite() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

var _ middleware.Middleware = &SessionMiddleware{}

type SessionMiddleware struct {
	prefix       string
	expiresAfter time.Duration
}

// New creates a session middleware.
//
// The cookie is named prefix + "_SESSION". It expires expiresAfter the last response.
func New(prefix string, expiresAfter time.Duration) *SessionMiddleware {
	return &SessionMiddleware{
		prefix:       prefix,
		expiresAfter: expiresAfter,
	}
}

func (s *SessionMiddleware) ConfigSchema() map[string]reflect.Type {
	return map[string]reflect.Type{
		"session": reflect.TypeOf(Config{}),
	}
}

func (s *SessionMiddleware) Dependencies() []string {
	return []string{
		logmw.MiddlewareDependencyLog,
		configmw.MiddlewareDependencyConfig,
	}
}

func (s *SessionMiddleware) cookieName() string {
	return s.prefix + cookieSuffix
}

func (s *SessionMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c Config
		if err := configmw.GetConfig(r).Load("session", &c); err != nil || c.Key == "" {
			logmw.Error(r, sessionComponent, configmw.CategoryConfigNotFound).Log("error", err)
			http.Error(w, "session not configured", http.StatusInternalServerError)
			return
		}

		key, err := session.ParseSecretKey(c.Key)
		if err != nil {
			logmw.Error(r, sessionComponent, logmw.CategoryFormatError).Log("error", err)
			http.Error(w, "invalid session key", http.StatusInternalServerError)
			return
		}

		cookieURL, err := url.Parse(c.CookieURL)
		if err != nil {
			logmw.Error(r, sessionComponent, logmw.CategoryFormatError).Log("error", err, "cookie_url", c.CookieURL)
			http.Error(w, "bad cookie url", http.StatusInternalServerError)
			return
		}

		sess, hadCookie, err := s.read(r, key)
		if err != nil {
			logmw.Warn(r, sessionComponent, logmw.CategoryFormatError).Log("msg", "session cookie dropped", "error", err)
		}

		r = util.SetContext(r, sessionContextKey, sess)

		srw := &sessionResponseWriter{
			ResponseWriterWrapper: util.ResponseWriterWrapper{ResponseWriter: w},
			r:                     r,
			write: func(sess session.Session) *http.Cookie {
				return s.cookie(r, sess, key, cookieURL, c.sameSite(), hadCookie)
			},
		}

		next.ServeHTTP(srw, r)
		srw.WriteHeader(http.StatusOK)
	})
}

// read decodes the session cookie. A missing or invalid cookie gives an empty session.
func (s *SessionMiddleware) read(r *http.Request, key session.SecretKey) (session.Session, bool, error) {
	c, err := r.Cookie(s.cookieName())
	if err != nil || c.Value == "" {
		return make(session.Session), false, nil
	}

	sess, err := session.DecodeSession(c.Value, key)

	return sess, true, err
}

// cookie creates the cookie of sess. An empty session deletes an existing cookie, and sets nothing otherwise.
func (s *SessionMiddleware) cookie(r *http.Request, sess session.Session, key session.SecretKey, cookieURL *url.URL, sameSite http.SameSite, hadCookie bool) *http.Cookie {
	value, err := session.EncodeSession(sess, key)
	if err != nil {
		logmw.Error(r, sessionComponent, logmw.CategoryFormatError).Log("msg", "session not saved", "error", err)
		return nil
	}
	if value == "" && !hadCookie {
		return nil
	}

	c := &http.Cookie{
		Name:     s.cookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: sameSite,
		Expires:  time.Now().Add(s.expiresAfter),
	}
	if value == "" {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}

	if cookieURL != nil && cookieURL.Host != "" {
		c.Domain = cookieURL.Hostname()
		if cookieURL.Path != "" {
			c.Path = cookieURL.Path
		}
		c.Secure = cookieURL.Scheme == "https"
	}

	return c
}

var (
	_ http.ResponseWriter = &sessionResponseWriter{}
	_ http.Hijacker       = &sessionResponseWriter{}
	_ http.Flusher        = &sessionResponseWriter{}
	_ http.Pusher         = &sessionResponseWriter{}
)

// sessionResponseWriter sets the session cookie right before the headers are sent.
type sessionResponseWriter struct {
	util.ResponseWriterWrapper
	r       *http.Request
	write   func(session.Session) *http.Cookie
	written bool
}

func (srw *sessionResponseWriter) Write(b []byte) (int, error) {
	if !srw.written {
		srw.WriteHeader(http.StatusOK)
	}

	return srw.ResponseWriterWrapper.Write(b)
}

func (srw *sessionResponseWriter) WriteHeader(code int) {
	if srw.written {
		return
	}
	srw.written = true

	if cookie := srw.write(GetSession(srw.r)); cookie != nil {
		logmw.Debug(srw.r, sessionComponent, logmw.CategoryTracing).Log("sessioncookie", cookie.Name, "delete", cookie.MaxAge < 0)
		http.SetCookie(srw.ResponseWriterWrapper.ResponseWriter, cookie)
	}

	srw.ResponseWriterWrapper.WriteHeader(code)
}
