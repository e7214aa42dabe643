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

// Package decoder decodes request bodies by their content type.
package decoder

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
)

var (
	ErrNoDecoder = errors.New("no decoder found for the request content type")
	ErrCSVTarget = errors.New("csv bodies decode only into *[][]string")
)

// Func decodes body into v.
type Func func(body io.Reader, v interface{}) error

// Decoders maps media types to body decoders.
var Decoders = map[string]Func{
	"application/json": func(body io.Reader, v interface{}) error { return json.NewDecoder(body).Decode(v) },
	"application/yaml": func(body io.Reader, v interface{}) error { return yaml.NewDecoder(body).Decode(v) },
	"application/toml": func(body io.Reader, v interface{}) error { return toml.NewDecoder(body).Decode(v) },
	"application/xml":  decodeXML,
	"text/xml":         decodeXML,
	"text/csv":         decodeCSV,
}

func decodeXML(body io.Reader, v interface{}) error {
	return xml.NewDecoder(body).Decode(v)
}

func decodeCSV(body io.Reader, v interface{}) error {
	records, ok := v.(*[][]string)
	if !ok {
		return ErrCSVTarget
	}

	var err error
	*records, err = csv.NewReader(body).ReadAll()

	return err
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}

	return mt
}

// Decode decodes the request body into v by the Content-Type header, then closes the body.
func Decode(r *http.Request, v interface{}) error {
	dec, ok := Decoders[mediaType(r)]
	if !ok {
		return ErrNoDecoder
	}
	defer r.Body.Close()

	return dec(r.Body, v)
}

// MustDecode is Decode that fails the request instead of returning an error.
//
// An unknown content type is 415, a malformed body 400. When v is a util.Validator, a validation error is 422.
func MustDecode(r *http.Request, v interface{}) {
	switch err := Decode(r, v); {
	case err == ErrNoDecoder:
		errors.Fail(http.StatusUnsupportedMediaType, err)
	case err != nil:
		errors.Fail(http.StatusBadRequest, err)
	}

	if validator, ok := v.(util.Validator); ok {
		if err := validator.Validate(); err != nil {
			errors.Fail(http.StatusUnprocessableEntity, err)
		}
	}
}

// IsStructured tells if the request body is a document that DecodeValues understands.
func IsStructured(r *http.Request) bool {
	mt := mediaType(r)
	_, ok := Decoders[mt]

	return ok && mt != "text/csv"
}

// DecodeValues decodes a structured request body into form values.
//
// Nested objects become bracketed keys ({"product": {"name": "x"}} is product[name]=x), list items are added to the same key.
func DecodeValues(r *http.Request) (url.Values, error) {
	var data map[string]interface{}
	if err := Decode(r, &data); err != nil {
		return nil, err
	}

	values := make(url.Values)
	flatten(values, "", data)

	return values, nil
}

func flatten(values url.Values, prefix string, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(values, nestedKey(prefix, k), val[k])
		}
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(val))
		for k, item := range val {
			converted[fmt.Sprint(k)] = item
		}
		flatten(values, prefix, converted)
	case []interface{}:
		for _, item := range val {
			flatten(values, prefix, item)
		}
	case float64:
		values.Add(prefix, strconv.FormatFloat(val, 'f', -1, 64))
	case nil:
		values[prefix] = append(values[prefix], "")
	default:
		values.Add(prefix, fmt.Sprint(val))
	}
}

func nestedKey(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + "[" + key + "]"
}
