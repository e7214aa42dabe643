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

package render

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"html/template"
	"io"
	"mime"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/golang/gddo/httputil"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
)

const JSONSecurityPrefix = ")]}',\n"

// JSONPrefix is a global switch for the ")]}',\n" JSON response prefix.
//
// The prefix makes JSON responses unusable as a script source, but clients have to strip it.
var JSONPrefix = true

// Media types of the built-in offers.
const (
	MediaTypeHTML      = "text/html"
	MediaTypeText      = "text/plain"
	MediaTypeCSV       = "text/csv"
	MediaTypeJSON      = "application/json"
	MediaTypeXML       = "application/xml"
	MediaTypePrettyXML = "text/xml"
	MediaTypeYAML      = "application/yaml"
	MediaTypeTOML      = "application/toml"
)

// WriterFunc writes the body of an offer.
type WriterFunc func(w io.Writer) error

type offer struct {
	mediaType string
	header    http.Header
	write     WriterFunc
}

// Renderer collects the possible representations of a response and writes the one the client prefers.
//
// The order of the offers is the server's preference, the first one is the
// default. A handler typically offers an HTML page and the raw data:
//
//	backoffice.Render(r).
//		Page(templates, "admin/list.html", data).
//		JSON(data)
//
// A redirect replaces all offers.
type Renderer struct {
	offers   []offer
	rendered bool
	location string
	Code     int // HTTP status code.
}

// NewRenderer creates a new Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// SetCode sets the HTTP status code.
func (r *Renderer) SetCode(code int) *Renderer {
	r.Code = code
	return r
}

// AddOffer adds a representation with its media type.
//
// An offer with the same media type as an earlier one replaces it, keeping its position.
func (r *Renderer) AddOffer(mediaType string, write WriterFunc) *Renderer {
	return r.add(offer{mediaType: mediaType, write: write})
}

func (r *Renderer) add(o offer) *Renderer {
	for i := range r.offers {
		if r.offers[i].mediaType == o.mediaType {
			r.offers[i] = o
			return r
		}
	}

	r.offers = append(r.offers, o)

	return r
}

// Offers returns the media types of the offers in preference order.
func (r *Renderer) Offers() []string {
	types := make([]string, len(r.offers))
	for i, o := range r.offers {
		types[i] = o.mediaType
	}

	return types
}

// Binary offers a downloadable file.
//
// If reader is an io.ReadCloser, it is closed after the copy.
func (r *Renderer) Binary(mediaType, filename string, reader io.Reader) *Renderer {
	header := http.Header{}
	if filename != "" {
		header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}

	return r.add(offer{
		mediaType: mediaType,
		header:    header,
		write: func(w io.Writer) error {
			if rc, ok := reader.(io.ReadCloser); ok {
				defer rc.Close()
			}
			_, err := io.Copy(w, reader)
			return err
		},
	})
}

// Data offers v encoded with one of the data formats.
func (r *Renderer) Data(mediaType string, v interface{}) *Renderer {
	encode := encoders[mediaType]
	if encode == nil {
		panic("render: no encoder for " + mediaType)
	}

	return r.AddOffer(mediaType, func(w io.Writer) error {
		maybeSanitize(v)
		return encode(w, v)
	})
}

var encoders = map[string]func(w io.Writer, v interface{}) error{
	MediaTypeJSON: func(w io.Writer, v interface{}) error {
		if JSONPrefix {
			if _, err := io.WriteString(w, JSONSecurityPrefix); err != nil {
				return err
			}
		}
		return json.NewEncoder(w).Encode(v)
	},
	MediaTypeXML: func(w io.Writer, v interface{}) error {
		return xml.NewEncoder(w).Encode(v)
	},
	MediaTypePrettyXML: func(w io.Writer, v interface{}) error {
		e := xml.NewEncoder(w)
		e.Indent("", "\t")
		return e.Encode(v)
	},
	MediaTypeYAML: func(w io.Writer, v interface{}) error {
		e := yaml.NewEncoder(w)
		if err := e.Encode(v); err != nil {
			return err
		}
		return e.Close()
	},
	MediaTypeTOML: func(w io.Writer, v interface{}) error {
		return toml.NewEncoder(w).Encode(v)
	},
}

// JSON offers v as JSON, prefixed with JSONSecurityPrefix when JSONPrefix is set.
func (r *Renderer) JSON(v interface{}) *Renderer {
	return r.Data(MediaTypeJSON, v)
}

// XML offers v as XML. A pretty XML is indented and sent as text/xml.
func (r *Renderer) XML(v interface{}, pretty bool) *Renderer {
	if pretty {
		return r.Data(MediaTypePrettyXML, v)
	}

	return r.Data(MediaTypeXML, v)
}

func (r *Renderer) YAML(v interface{}) *Renderer {
	return r.Data(MediaTypeYAML, v)
}

func (r *Renderer) TOML(v interface{}) *Renderer {
	return r.Data(MediaTypeTOML, v)
}

// CommonFormats offers v as JSON, YAML, TOML and pretty XML.
func (r *Renderer) CommonFormats(v interface{}) *Renderer {
	return r.JSON(v).YAML(v).TOML(v).XML(v, true)
}

// HTML offers a template executed with v.
func (r *Renderer) HTML(t *template.Template, v interface{}) *Renderer {
	return r.AddOffer(MediaTypeHTML, func(w io.Writer) error {
		maybeSanitize(v)
		return t.Execute(w, v)
	})
}

// Page offers a page of a template set.
//
// The page is looked up when the response is rendered, so a reloaded set is picked up.
func (r *Renderer) Page(set *Templates, name string, v interface{}) *Renderer {
	return r.AddOffer(MediaTypeHTML, func(w io.Writer) error {
		maybeSanitize(v)
		return set.Execute(w, name, v)
	})
}

func (r *Renderer) Text(t string) *Renderer {
	return r.AddOffer(MediaTypeText, func(w io.Writer) error {
		_, err := io.WriteString(w, t)
		return err
	})
}

// CSV offers the records as CSV. Every field goes through EscapeCSVField.
func (r *Renderer) CSV(records [][]string) *Renderer {
	return r.AddOffer(MediaTypeCSV, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		escaped := make([]string, 0)
		for _, record := range records {
			escaped = escaped[:0]
			for _, field := range record {
				escaped = append(escaped, EscapeCSVField(field))
			}
			if err := cw.Write(escaped); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// EscapeCSVField prefixes formula-like fields with a tab.
//
// Spreadsheet programs execute fields beginning with =, -, + or @.
// See: http://georgemauer.net/2017/10/07/csv-injection.html
func EscapeCSVField(content string) string {
	if content == "" {
		return content
	}

	switch content[0] {
	case '=', '-', '+', '@':
		return "\t" + content
	}

	return content
}

// Redirect replaces the offers with a redirect.
func (r *Renderer) Redirect(location string, code int) *Renderer {
	r.location = location
	r.Code = code

	return r
}

// Location returns the target of a redirect, or an empty string.
func (r *Renderer) Location() string {
	return r.location
}

// Render writes the redirect or the offer that fits the Accept header of the request best.
//
// Without offers the response is a 204, unless another code is set. A
// Renderer renders only once. A failing offer panics with its error.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request) {
	if r.rendered {
		return
	}
	r.rendered = true

	if r.location != "" {
		http.Redirect(w, req, r.location, r.Code)
		return
	}

	if len(r.offers) == 0 {
		if r.Code == 0 || r.Code == http.StatusOK {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(r.Code)
		}
		return
	}

	o := r.negotiate(req)
	if len(r.offers) > 1 {
		w.Header().Add("Vary", "Accept")
	}
	w.Header().Set("Content-Type", o.mediaType)
	for name, values := range o.header {
		w.Header()[name] = values
	}

	if r.Code > 0 {
		w.WriteHeader(r.Code)
	}

	if err := o.write(w); err != nil {
		panic(err)
	}
}

func (r *Renderer) negotiate(req *http.Request) offer {
	if len(r.offers) == 1 {
		return r.offers[0]
	}

	mediaType := httputil.NegotiateContentType(req, r.Offers(), r.offers[0].mediaType)
	for _, o := range r.offers {
		if o.mediaType == mediaType {
			return o
		}
	}

	return r.offers[0]
}

// IsRendered checks if the renderer has written its content to an output.
func (r *Renderer) IsRendered() bool {
	return r.rendered
}

// SetRendered marks this Renderer as rendered, so Render will do nothing.
func (r *Renderer) SetRendered() {
	r.rendered = true
}

func maybeSanitize(v interface{}) {
	if sanitizer, ok := v.(util.Sanitizer); ok {
		sanitizer.Sanitize()
	}
}
