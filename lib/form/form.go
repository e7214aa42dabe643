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

// Package form binds request data to Go values through declared fields.
//
// A field points to the value it edits, so binding a submitted form writes
// straight into an entity:
//
//	f := form.New("product",
//		form.Text("name", "Name", &p.Name, form.Required()),
//		form.Int("price", "Price", &p.Price),
//	)
//	f.HandleRequest(r)
//	if f.IsValid() {
//		...
//	}
//
// Inputs are named after the form, e.g. product[name].
package form

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/alien-bunny/backoffice/lib/decoder"
	"github.com/alien-bunny/backoffice/lib/util"
)

const (
	// TokenField is the name of the hidden CSRF token input.
	TokenField = "_token"

	ErrCSRF = "The CSRF token is invalid. Please try to resubmit the form."
)

// Form is a set of fields that are bound together from one request.
type Form struct {
	name    string
	method  string
	fields  []Field
	token   string
	target  interface{}
	checks  []func(*Form)
	values  url.Values
	errors  map[string][]string
	global  []string
	handled bool
}

// New creates a form submitted with POST.
func New(name string, fields ...Field) *Form {
	return &Form{
		name:   name,
		method: http.MethodPost,
		fields: fields,
		errors: make(map[string][]string),
	}
}

// Name returns the name of the form, which prefixes the input names.
func (f *Form) Name() string {
	return f.name
}

// Add appends fields to the form.
func (f *Form) Add(fields ...Field) *Form {
	f.fields = append(f.fields, fields...)
	return f
}

// Method sets the HTTP method the form is submitted with. GET forms read the query string.
func (f *Form) Method(method string) *Form {
	f.method = strings.ToUpper(method)
	return f
}

// GetMethod returns the HTTP method of the form.
func (f *Form) GetMethod() string {
	return f.method
}

// WithCSRF protects the form with a token. A submission without the same token is invalid.
func (f *Form) WithCSRF(token string) *Form {
	f.token = token
	return f
}

// Token returns the CSRF token of the form.
func (f *Form) Token() string {
	return f.token
}

// Bound sets the value the form edits. If it implements util.Validator, it is validated after binding.
func (f *Form) Bound(v interface{}) *Form {
	f.target = v
	return f
}

// Check adds a validation function that runs after the fields are bound.
func (f *Form) Check(check func(*Form)) *Form {
	f.checks = append(f.checks, check)
	return f
}

// Fields returns the fields of the form.
func (f *Form) Fields() []Field {
	return append([]Field(nil), f.fields...)
}

// Field returns a field by name, or nil.
func (f *Form) Field(name string) Field {
	for _, field := range f.fields {
		if field.Name() == name {
			return field
		}
	}

	return nil
}

// InputName returns the name of the HTML input of a field.
func (f *Form) InputName(field string) string {
	return f.name + "[" + field + "]"
}

// AddError records a validation error. An empty field name records a form level error.
func (f *Form) AddError(field, message string) {
	if field == "" {
		f.global = append(f.global, message)
		return
	}

	f.errors[field] = append(f.errors[field], message)
}

// Errors returns the field errors.
func (f *Form) Errors() map[string][]string {
	errs := make(map[string][]string, len(f.errors))
	for k, v := range f.errors {
		errs[k] = append([]string(nil), v...)
	}

	return errs
}

// GlobalErrors returns the form level errors.
func (f *Form) GlobalErrors() []string {
	return append([]string(nil), f.global...)
}

// HandleRequest binds the request to the fields if the form was submitted in it.
//
// A form counts as submitted when the request uses the form's method and carries at least one of its inputs.
func (f *Form) HandleRequest(r *http.Request) {
	if r.Method != f.method {
		return
	}

	values, err := requestValues(r, f.method)
	if err != nil {
		return
	}

	if !f.submittedIn(values) {
		return
	}

	f.handled = true
	f.values = values

	for _, field := range f.fields {
		if err := field.Bind(f.fieldValues(values, field.Name())); err != nil {
			f.AddError(field.Name(), err.Error())
		}
	}

	if f.token != "" {
		submitted := values.Get(f.InputName(TokenField))
		if subtle.ConstantTimeCompare([]byte(submitted), []byte(f.token)) != 1 {
			f.AddError("", ErrCSRF)
		}
	}

	if v, ok := f.target.(util.Validator); ok {
		if err := v.Validate(); err != nil {
			f.AddError("", err.Error())
		}
	}

	for _, check := range f.checks {
		check(f)
	}
}

func requestValues(r *http.Request, method string) (url.Values, error) {
	if method == http.MethodGet {
		return r.URL.Query(), nil
	}

	if decoder.IsStructured(r) {
		return decoder.DecodeValues(r)
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	return r.PostForm, nil
}

func (f *Form) submittedIn(values url.Values) bool {
	prefix := f.name + "["
	for k := range values {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}

	return false
}

func (f *Form) fieldValues(values url.Values, name string) []string {
	input := f.InputName(name)
	return append(values[input], values[input+"[]"]...)
}

// IsSubmitted tells if HandleRequest found the form in the request.
func (f *Form) IsSubmitted() bool {
	return f.handled
}

// IsValid tells if the form was submitted without errors.
func (f *Form) IsValid() bool {
	return f.handled && len(f.errors) == 0 && len(f.global) == 0
}

// Clicked tells if a submit button was used. Buttons can be named with or without the form prefix.
func (f *Form) Clicked(button string) bool {
	if f.values == nil {
		return false
	}

	_, plain := f.values[button]
	_, prefixed := f.values[f.InputName(button)]

	return plain || prefixed
}

// View prepares the form for templates.
func (f *Form) View() *View {
	v := &View{
		Name:   f.name,
		Method: f.method,
		Errors: f.GlobalErrors(),
	}

	if f.token != "" {
		v.Token = &FieldView{
			Name:   f.InputName(TokenField),
			ID:     f.name + "_" + TokenField,
			Widget: WidgetHidden,
			Value:  f.token,
		}
	}

	for _, field := range f.fields {
		fv := FieldView{
			Name:     f.InputName(field.Name()),
			ID:       f.name + "_" + field.Name(),
			Label:    field.Label(),
			Help:     field.Help(),
			Widget:   field.Widget(),
			Required: field.Required(),
			Errors:   f.errors[field.Name()],
		}

		values := field.Values()
		if len(values) > 0 {
			fv.Value = values[0]
		}

		selected := make(map[string]bool, len(values))
		for _, val := range values {
			selected[val] = true
		}

		if of, ok := field.(OptionsField); ok {
			fv.Multiple = of.Multiple()
			if fv.Multiple {
				fv.Name += "[]"
			}
			for _, o := range of.Options() {
				fv.Options = append(fv.Options, OptionView{
					Value:    o.Value,
					Label:    o.Label,
					Selected: selected[o.Value],
				})
			}
		}

		fv.Checked = field.Widget() == WidgetCheckbox && len(values) > 0 && values[0] == "1"

		v.Fields = append(v.Fields, fv)
	}

	return v
}

// View is the template friendly form of a Form.
type View struct {
	Name   string
	Method string
	Token  *FieldView
	Fields []FieldView
	Errors []string
}

// Field returns the view of a field by its name.
func (v *View) Field(name string) *FieldView {
	input := v.Name + "[" + name + "]"
	for i := range v.Fields {
		if v.Fields[i].Name == input || v.Fields[i].Name == input+"[]" {
			return &v.Fields[i]
		}
	}

	return nil
}

// HasErrors tells if the form or any field has errors.
func (v *View) HasErrors() bool {
	if len(v.Errors) > 0 {
		return true
	}

	for _, f := range v.Fields {
		if len(f.Errors) > 0 {
			return true
		}
	}

	return false
}

// FieldView is the template friendly form of a Field.
type FieldView struct {
	Name     string
	ID       string
	Label    string
	Help     string
	Widget   string
	Value    string
	Required bool
	Checked  bool
	Multiple bool
	Options  []OptionView
	Errors   []string
}

type OptionView struct {
	Value    string
	Label    string
	Selected bool
}

// SortOptions orders options by their labels.
func SortOptions(options []Option) {
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Label < options[j].Label
	})
}
