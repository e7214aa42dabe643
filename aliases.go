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

package backoffice

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/decoder"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/render"
	"github.com/alien-bunny/backoffice/lib/server"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/dbmw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/rendermw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
)

// Request scoped helpers. They need the middlewares that Pet installs.

func LogDebug(r *http.Request, component, category interface{}) log.Logger {
	return logmw.Debug(r, component, category)
}

func LogInfo(r *http.Request, component, category interface{}) log.Logger {
	return logmw.Info(r, component, category)
}

func LogWarn(r *http.Request, component, category interface{}) log.Logger {
	return logmw.Warn(r, component, category)
}

func LogError(r *http.Request, component, category interface{}) log.Logger {
	return logmw.Error(r, component, category)
}

// GetDB returns the database connection of the request, bound to the request context.
func GetDB(r *http.Request) *gorm.DB {
	return dbmw.GetConnection(r)
}

func GetConfig(r *http.Request) *config.Store {
	return configmw.GetConfig(r)
}

func Fail(code int, ferr error) {
	errors.Fail(code, ferr)
}

// MaybeFail fails with the given code when ferr is not nil and it is not one of the excluded errors.
func MaybeFail(code int, ferr error, excludedErrors ...error) {
	if ferr == nil {
		return
	}

	for _, e := range excludedErrors {
		if errors.Is(ferr, e) {
			return
		}
	}

	errors.Fail(code, ferr)
}

func Render(r *http.Request) *render.Renderer {
	return rendermw.Render(r)
}

func GetSession(r *http.Request) session.Session {
	return sessionmw.GetSession(r)
}

// AddFlash translates a message and queues it for the next page.
func AddFlash(r *http.Request, kind, message string, params map[string]string) {
	GetSession(r).AddFlash(kind, Translate(r, message, params))
}

func GetParams(r *http.Request) httprouter.Params {
	return server.GetParams(r)
}

func MustDecode(r *http.Request, v interface{}) {
	decoder.MustDecode(r, v)
}

func Translate(r *http.Request, message string, params map[string]string) string {
	return translationmw.GetTranslate(r)(message, params)
}

func TranslatePlural(r *http.Request, count int, singular, plural string, params map[string]string) string {
	return translationmw.GetPluralTranslate(r)(count, singular, plural, params)
}

func GetLanguage(r *http.Request) language.Tag {
	return translationmw.GetLanguage(r)
}
