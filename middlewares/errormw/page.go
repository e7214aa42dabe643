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

package errormw

import (
	"encoding/xml"
	"html/template"
	"net/http"

	"github.com/alien-bunny/backoffice/middlewares/requestmw"
)

// Palette is the color scheme of a class of error pages.
type Palette struct {
	Foreground string
	Background string
}

// Palettes of the error pages by status class.
var (
	ServerErrorPalette = Palette{Foreground: "fdf6e3", Background: "dc322f"}
	ClientErrorPalette = Palette{Foreground: "fdf6e3", Background: "b58900"}
	OtherPalette       = Palette{Foreground: "fdf6e3", Background: "268bd2"}
)

func paletteFor(code int) Palette {
	switch {
	case code >= 500 && code <= 599:
		return ServerErrorPalette
	case code >= 400 && code <= 499:
		return ClientErrorPalette
	default:
		return OtherPalette
	}
}

// ErrorPageData is the data of the ErrorPage template.
type ErrorPageData struct {
	Palette
	Code      int
	Message   string
	Logs      string
	RequestID string
}

// NewErrorPageData creates the data of an error page with the status text as the message.
func NewErrorPageData(code int, r *http.Request) ErrorPageData {
	return ErrorPageData{
		Palette:   paletteFor(code),
		Code:      code,
		Message:   http.StatusText(code),
		RequestID: requestmw.GetRequestID(r),
	}
}

// Map is the JSON and YAML representation of the page.
func (d ErrorPageData) Map() map[string]string {
	m := map[string]string{"message": d.Message}
	if d.RequestID != "" {
		m["requestid"] = d.RequestID
	}
	if d.Logs != "" {
		m["logs"] = d.Logs
	}

	return m
}

type xmlErrorPage struct {
	XMLName   xml.Name `xml:"error"`
	Code      int      `xml:"code,attr"`
	Message   string   `xml:"message"`
	RequestID string   `xml:"requestid,omitempty"`
	Logs      string   `xml:"logs,omitempty"`
}

// XML is the XML representation of the page. encoding/xml can't marshal maps.
func (d ErrorPageData) XML() interface{} {
	return xmlErrorPage{
		Code:      d.Code,
		Message:   d.Message,
		RequestID: d.RequestID,
		Logs:      d.Logs,
	}
}

// Text is the plain text representation of the page.
func (d ErrorPageData) Text() string {
	text := d.Message
	if d.RequestID != "" {
		text += "\n\nRequestID: " + d.RequestID
	}
	if d.Logs != "" {
		text += "\n\n" + d.Logs
	}

	return text
}

// ErrorPage is the HTML error page.
var ErrorPage = template.Must(template.New("ErrorPage").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8" />
	<title>{{.Code}} {{.Message}}</title>
	<style type="text/css">
		body {
			background-color: #{{.Background}};
			color: #{{.Foreground}};
			font-family: sans-serif;
		}
	</style>
</head>
<body>
	<h1>HTTP Error {{.Code}}</h1>
	<p>{{.Message}}</p>
	{{if .RequestID}}<hr/>
	<p>Request ID: {{.RequestID}}</p>{{end}}
	{{if .Logs}}<hr/>
	<pre>{{.Logs}}</pre>{{end}}
</body>
</html>
`))
