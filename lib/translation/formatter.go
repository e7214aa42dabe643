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

package translation

import (
	"html/template"
	"strings"
	"unicode"

	"github.com/fatih/color"
)

var emphasizedTerminalColor = color.New(color.Bold)

// Formatter formats the parameter values of a message for an output medium.
type Formatter interface {
	FormatRaw(string) string
	FormatNormal(string) string
	FormatEmphasized(string) string
}

type rawFormatter struct{}

func (rawFormatter) FormatRaw(s string) string {
	return s
}

var _ Formatter = &HTMLFormatter{}

// HTMLFormatter escapes values for HTML pages. This is what the admin pages and flash messages use.
type HTMLFormatter struct {
	rawFormatter
}

func (f *HTMLFormatter) FormatNormal(s string) string {
	return template.HTMLEscapeString(s)
}

func (f *HTMLFormatter) FormatEmphasized(s string) string {
	return "<em>" + f.FormatNormal(s) + "</em>"
}

var _ Formatter = &TerminalFormatter{}

// TerminalFormatter is for command line output. Control characters are removed from values, and emphasized values are bold.
type TerminalFormatter struct {
	rawFormatter
}

func (f *TerminalFormatter) FormatNormal(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

func (f *TerminalFormatter) FormatEmphasized(s string) string {
	return emphasizedTerminalColor.Sprint(f.FormatNormal(s))
}

var _ Formatter = PlainFormatter{}

// PlainFormatter leaves every value as is, e.g. for exported files and log messages.
type PlainFormatter struct {
	rawFormatter
}

func (PlainFormatter) FormatNormal(s string) string {
	return s
}

func (PlainFormatter) FormatEmphasized(s string) string {
	return s
}
