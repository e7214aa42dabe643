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

// Package translation translates the messages of the user interface.
//
// Messages are English source strings with placeholders. A placeholder is a
// word prefixed with one of the following characters, which select how the
// value is formatted:
//
//	!name  raw, inserted as is
//	@name  normal, escaped for the output
//	#name  emphasized
package translation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/alien-bunny/backoffice/lib/log"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
)

// DELIMITER separates the variants of a translated plural message.
//
// Languages with more than two plural forms list the variants in the order
// of pluralVariants: other, few, many, two, zero.
const DELIMITER = "\x03"

var pluralVariants = []plural.Form{plural.Other, plural.Few, plural.Many, plural.Two, plural.Zero}

// Translator holds the dictionaries of the supported languages.
//
// It is safe for concurrent use.
type Translator struct {
	mtx          sync.RWMutex
	dictionaries map[language.Tag]map[string]string
	logger       log.Logger
}

func NewTranslator(logger log.Logger) *Translator {
	return &Translator{
		dictionaries: make(map[language.Tag]map[string]string),
		logger:       logger,
	}
}

// SetTranslations merges translations into the dictionary of lang.
func (t *Translator) SetTranslations(lang language.Tag, translations map[string]string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	dict, ok := t.dictionaries[lang]
	if !ok {
		dict = make(map[string]string, len(translations))
		t.dictionaries[lang] = dict
	}

	for message, translation := range translations {
		dict[message] = translation
	}
}

// Languages returns the languages that have a dictionary.
func (t *Translator) Languages() []language.Tag {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	langs := make([]language.Tag, 0, len(t.dictionaries))
	for lang := range t.dictionaries {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		return langs[i].String() < langs[j].String()
	})

	return langs
}

// lookup finds the translation of message, falling back to the base language of regional variants.
func (t *Translator) lookup(lang language.Tag, message string) (string, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	if translated, ok := t.dictionaries[lang][message]; ok && translated != "" {
		return translated, true
	}

	if base, conf := lang.Base(); conf == language.Exact {
		if baseLang, err := language.Compose(base); err == nil && baseLang != lang {
			translated, ok := t.dictionaries[baseLang][message]
			return translated, ok && translated != ""
		}
	}

	return "", false
}

func (t *Translator) translateMessage(lang language.Tag, message string) string {
	translated, ok := t.lookup(lang, message)
	if !ok {
		log.Debug(t.logger).Log("msg", "untranslated message", "message", message, "language", lang.String())
		return message
	}

	return translated
}

// replacePlaceholders substitutes the parameters. Longer names are replaced first, so @count does not clobber @counter.
func replacePlaceholders(formatter Formatter, message string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		value := params[name]
		if name == "" {
			panic("empty translation parameter")
		}
		switch name[0] {
		case '!':
			value = formatter.FormatRaw(value)
		case '@':
			value = formatter.FormatNormal(value)
		case '#':
			value = formatter.FormatEmphasized(value)
		default:
			panic(fmt.Sprintf("invalid translation parameter %q", name))
		}
		pairs = append(pairs, name, value)
	}

	return strings.NewReplacer(pairs...).Replace(message)
}

// Translate translates message to lang and fills in the parameters.
//
// English messages are the source strings, they are never looked up.
func (t *Translator) Translate(lang language.Tag, formatter Formatter, message string, params map[string]string) string {
	if lang != language.English {
		message = t.translateMessage(lang, message)
	}

	if len(params) > 0 {
		return replacePlaceholders(formatter, message, params)
	}

	return message
}

// FormatPlural picks the singular or the plural message for count using the CLDR plural rules of lang.
//
// The @count parameter is always set.
func (t *Translator) FormatPlural(lang language.Tag, formatter Formatter, count int, singular, pluralMessage string, params map[string]string) string {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged["@count"] = strconv.Itoa(count)

	form := plural.Cardinal.MatchPlural(lang, abs(count), 0, 0, 0, 0)
	if form == plural.One {
		return t.Translate(lang, formatter, singular, merged)
	}

	variants := strings.Split(t.Translate(lang, formatter, pluralMessage, merged), DELIMITER)
	for i, f := range pluralVariants {
		if f == form && i < len(variants) {
			return variants[i]
		}
	}

	return variants[0]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Instance binds the translator to a language and a formatter.
func (t *Translator) Instance(lang language.Tag, formatter Formatter) func(message string, params map[string]string) string {
	return func(message string, params map[string]string) string {
		return t.Translate(lang, formatter, message, params)
	}
}

// PluralInstance binds FormatPlural to a language and a formatter.
func (t *Translator) PluralInstance(lang language.Tag, formatter Formatter) func(count int, singular string, plural string, params map[string]string) string {
	return func(count int, singular, pluralMessage string, params map[string]string) string {
		return t.FormatPlural(lang, formatter, count, singular, pluralMessage, params)
	}
}
