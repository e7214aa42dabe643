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

package translationmw

import (
	"net/http"
	"reflect"

	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
	"golang.org/x/text/language"
)

const dynamicDefaultLanguageKey = "defaultLanguage"

// LanguageNegotiator offers the languages a request asks for, in order of preference.
type LanguageNegotiator interface {
	NegotiateLanguage(r *http.Request) []language.Tag
}

// AcceptLanguage reads the Accept-Language header.
type AcceptLanguage struct{}

func (AcceptLanguage) NegotiateLanguage(r *http.Request) []language.Tag {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return nil
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}

	return tags
}

// SessionLanguage reads the language stored with SetSessionLanguage.
type SessionLanguage struct{}

func (SessionLanguage) NegotiateLanguage(r *http.Request) []language.Tag {
	if lang, found := sessionmw.GetSession(r)[languageKey]; found {
		return parseTags(lang)
	}

	return nil
}

// SetSessionLanguage stores the language choice of the user.
func SetSessionLanguage(r *http.Request, lang language.Tag) {
	if sess := sessionmw.GetSession(r); sess != nil {
		sess[languageKey] = lang.String()
	}
}

// CookieLanguage reads the cookie with the given name.
type CookieLanguage string

func (name CookieLanguage) NegotiateLanguage(r *http.Request) []language.Tag {
	c, err := r.Cookie(string(name))
	if err != nil {
		return nil
	}

	return parseTags(c.Value)
}

// URLParamLanguage reads the query parameter with the given name, e.g. ?lang=hu.
type URLParamLanguage string

func (p URLParamLanguage) NegotiateLanguage(r *http.Request) []language.Tag {
	return parseTags(r.URL.Query().Get(string(p)))
}

// StaticDefaultLanguage always offers the same language. Put it last.
type StaticDefaultLanguage language.Tag

func (lang StaticDefaultLanguage) NegotiateLanguage(r *http.Request) []language.Tag {
	return []language.Tag{language.Tag(lang)}
}

// DefaultLanguage is the configuration of DynamicDefaultLanguage.
type DefaultLanguage struct {
	Language string
}

// DynamicDefaultLanguage offers the language in the "defaultLanguage" configuration section.
type DynamicDefaultLanguage struct{}

func (DynamicDefaultLanguage) ConfigSchema() map[string]reflect.Type {
	return map[string]reflect.Type{
		dynamicDefaultLanguageKey: reflect.TypeOf(DefaultLanguage{}),
	}
}

func (DynamicDefaultLanguage) NegotiateLanguage(r *http.Request) []language.Tag {
	l, err := configmw.GetConfig(r).Get(dynamicDefaultLanguageKey)
	if err != nil {
		logmw.Warn(r, "dynamic default language", configmw.CategoryConfigNotFound).Log("error", err)
		return nil
	}
	if l == nil {
		return []language.Tag{language.English}
	}

	tags := parseTags(l.(DefaultLanguage).Language)
	if len(tags) == 0 {
		logmw.Warn(r, "dynamic default language", configmw.CategoryConfigNotFound).Log("error", "invalid language", "language", l.(DefaultLanguage).Language)
	}

	return tags
}

func parseTags(value string) []language.Tag {
	if value == "" {
		return nil
	}

	tag, err := language.Parse(value)
	if err != nil {
		return nil
	}

	return []language.Tag{tag}
}
