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

// Package translationmw negotiates the language of a request and provides the translation functions bound to it.
package translationmw

import (
	"net/http"
	"reflect"

	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/translation"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"golang.org/x/text/language"
)

const (
	MiddlewareDependencyTranslation = "*translationmw.TranslationMiddleware"
	translationKey                  = "translation"
	pluralKey                       = "translationplural"
	languageKey                     = "language"
)

var _ middleware.Middleware = &TranslationMiddleware{}

// TranslationMiddleware asks the negotiators in order, and picks the first supported language one of them offers.
//
// English is used when none of them offers a supported language.
type TranslationMiddleware struct {
	translator  *translation.Translator
	negotiators []LanguageNegotiator
	supported   []language.Tag
	matcher     language.Matcher
	logger      log.Logger

	// Formatter formats the parameters of the messages. Defaults to HTML.
	Formatter translation.Formatter
	// Filter can reject a negotiated language, e.g. one that is not enabled for the current site.
	Filter func(*http.Request, language.Tag) bool
}

func New(logger log.Logger, supportedLanguages []language.Tag, negotiators ...LanguageNegotiator) *TranslationMiddleware {
	return &TranslationMiddleware{
		translator:  translation.NewTranslator(logger),
		negotiators: negotiators,
		supported:   supportedLanguages,
		matcher:     language.NewMatcher(supportedLanguages),
		logger:      logger,
		Formatter:   &translation.HTMLFormatter{},
	}
}

func (m *TranslationMiddleware) ConfigSchema() map[string]reflect.Type {
	schema := make(map[string]reflect.Type)

	for _, negotiator := range m.negotiators {
		if p, ok := negotiator.(config.ConfigSchemaProvider); ok {
			for n, t := range p.ConfigSchema() {
				schema[n] = t
			}
		}
	}

	return schema
}

func (m *TranslationMiddleware) Dependencies() []string {
	return []string{
		configmw.MiddlewareDependencyConfig,
		logmw.MiddlewareDependencyLog,
	}
}

// Translator returns the translator, e.g. to add the messages of a service.
func (m *TranslationMiddleware) Translator() *translation.Translator {
	return m.translator
}

// Languages returns the supported languages, the default first.
func (m *TranslationMiddleware) Languages() []language.Tag {
	return m.supported
}

// LoadDirectory loads the dictionaries of dir into the translator.
//
// Dictionaries of languages that are not supported are loaded, but a warning is logged.
func (m *TranslationMiddleware) LoadDirectory(dir string) error {
	loaded, err := m.translator.LoadDirectory(dir)
	if err != nil {
		return err
	}

	for _, lang := range loaded {
		if _, _, confidence := m.matcher.Match(lang); confidence != language.Exact {
			log.Warn(m.logger).Log("msg", "dictionary of an unsupported language", "language", lang.String(), "directory", dir)
		}
	}
	log.Debug(m.logger).Log("msg", "dictionaries loaded", "directory", dir, "count", len(loaded))

	return nil
}

func (m *TranslationMiddleware) negotiateLanguage(r *http.Request) language.Tag {
	for _, negotiator := range m.negotiators {
		lang := negotiator.NegotiateLanguage(r)
		if len(lang) == 0 {
			continue
		}

		_, idx, confidence := m.matcher.Match(lang...)
		if confidence == language.No {
			continue
		}
		if tag := m.supported[idx]; m.Filter == nil || m.Filter(r, tag) {
			return tag
		}
	}

	return language.English
}

func (m *TranslationMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := m.negotiateLanguage(r)

		r = util.SetContext(r, languageKey, lang)
		r = util.SetContext(r, translationKey, m.translator.Instance(lang, m.Formatter))
		r = util.SetContext(r, pluralKey, m.translator.PluralInstance(lang, m.Formatter))
		w.Header().Set("Content-Language", lang.String())

		next.ServeHTTP(w, r)
	})
}

// GetTranslate returns the translation function of the request's language.
func GetTranslate(r *http.Request) func(message string, params map[string]string) string {
	return r.Context().Value(translationKey).(func(string, map[string]string) string)
}

// GetPluralTranslate returns the plural translation function of the request's language.
func GetPluralTranslate(r *http.Request) func(count int, singular, plural string, params map[string]string) string {
	return r.Context().Value(pluralKey).(func(int, string, string, map[string]string) string)
}

// GetLanguage returns the negotiated language.
func GetLanguage(r *http.Request) language.Tag {
	return r.Context().Value(languageKey).(language.Tag)
}
