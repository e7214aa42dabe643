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

package form

import (
	"strconv"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/errors"
)

const (
	WidgetText     = "text"
	WidgetTextArea = "textarea"
	WidgetHidden   = "hidden"
	WidgetNumber   = "number"
	WidgetCheckbox = "checkbox"
	WidgetSelect   = "select"
	WidgetDate     = "date"

	DateFormat = "2006-01-02"
)

var (
	ErrBlank         = errors.New("This value should not be blank.")
	ErrInvalidChoice = errors.New("The selected choice is invalid.")
	ErrNotANumber    = errors.New("This value is not a valid number.")
	ErrInvalidDate   = errors.New("This value is not a valid date.")
)

// Field is a form input bound to a value.
type Field interface {
	Name() string
	Label() string
	Help() string
	Widget() string
	Required() bool
	// Bind parses the submitted values and writes them into the bound value.
	Bind(values []string) error
	// Values returns the current value in its submitted form.
	Values() []string
}

// OptionsField is a field with a fixed set of choices.
type OptionsField interface {
	Field
	Options() []Option
	Multiple() bool
}

type Option struct {
	Value string
	Label string
}

// FieldOption configures a field.
type FieldOption func(*base)

// Required makes the field fail validation when it is empty.
func Required() FieldOption {
	return func(b *base) {
		b.required = true
	}
}

// Help sets a help text that is displayed under the field.
func Help(text string) FieldOption {
	return func(b *base) {
		b.help = text
	}
}

type base struct {
	name     string
	label    string
	help     string
	widget   string
	required bool
}

func newBase(name, label, widget string, opts []FieldOption) base {
	b := base{
		name:   name,
		label:  label,
		widget: widget,
	}
	for _, o := range opts {
		o(&b)
	}

	return b
}

func (b *base) Name() string   { return b.name }
func (b *base) Label() string  { return b.label }
func (b *base) Help() string   { return b.help }
func (b *base) Widget() string { return b.widget }
func (b *base) Required() bool { return b.required }

func (b *base) check(values []string) (string, error) {
	v := first(values)
	if b.required && strings.TrimSpace(v) == "" {
		return v, ErrBlank
	}

	return v, nil
}

func first(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

type textField struct {
	base
	target *string
}

// Text is a single line text input.
func Text(name, label string, target *string, opts ...FieldOption) Field {
	return &textField{base: newBase(name, label, WidgetText, opts), target: target}
}

// TextArea is a multi line text input.
func TextArea(name, label string, target *string, opts ...FieldOption) Field {
	return &textField{base: newBase(name, label, WidgetTextArea, opts), target: target}
}

// Hidden is a hidden text input.
func Hidden(name string, target *string, opts ...FieldOption) Field {
	return &textField{base: newBase(name, "", WidgetHidden, opts), target: target}
}

func (f *textField) Bind(values []string) error {
	v, err := f.check(values)
	*f.target = v

	return err
}

func (f *textField) Values() []string {
	return []string{*f.target}
}

type intField struct {
	base
	target *int
}

// Int is a number input for integers.
func Int(name, label string, target *int, opts ...FieldOption) Field {
	return &intField{base: newBase(name, label, WidgetNumber, opts), target: target}
}

func (f *intField) Bind(values []string) error {
	v, err := f.check(values)
	if err != nil {
		return err
	}

	v = strings.TrimSpace(v)
	if v == "" {
		*f.target = 0
		return nil
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return ErrNotANumber
	}
	*f.target = i

	return nil
}

func (f *intField) Values() []string {
	return []string{strconv.Itoa(*f.target)}
}

type floatField struct {
	base
	target *float64
}

// Float is a number input for decimals.
func Float(name, label string, target *float64, opts ...FieldOption) Field {
	return &floatField{base: newBase(name, label, WidgetNumber, opts), target: target}
}

func (f *floatField) Bind(values []string) error {
	v, err := f.check(values)
	if err != nil {
		return err
	}

	v = strings.TrimSpace(v)
	if v == "" {
		*f.target = 0
		return nil
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return ErrNotANumber
	}
	*f.target = n

	return nil
}

func (f *floatField) Values() []string {
	return []string{strconv.FormatFloat(*f.target, 'f', -1, 64)}
}

type boolField struct {
	base
	target *bool
}

// Bool is a checkbox. A missing value unchecks it.
func Bool(name, label string, target *bool, opts ...FieldOption) Field {
	return &boolField{base: newBase(name, label, WidgetCheckbox, opts), target: target}
}

func (f *boolField) Bind(values []string) error {
	v, err := f.check(values)
	if err != nil {
		return err
	}

	switch strings.ToLower(v) {
	case "", "0", "false", "off", "no":
		*f.target = false
	default:
		*f.target = true
	}

	return nil
}

func (f *boolField) Values() []string {
	if *f.target {
		return []string{"1"}
	}

	return nil
}

type dateField struct {
	base
	target *time.Time
}

// Date is a date input. The time of day is dropped.
func Date(name, label string, target *time.Time, opts ...FieldOption) Field {
	return &dateField{base: newBase(name, label, WidgetDate, opts), target: target}
}

func (f *dateField) Bind(values []string) error {
	v, err := f.check(values)
	if err != nil {
		return err
	}

	v = strings.TrimSpace(v)
	if v == "" {
		*f.target = time.Time{}
		return nil
	}

	t, err := time.Parse(DateFormat, v)
	if err != nil {
		return ErrInvalidDate
	}
	*f.target = t

	return nil
}

func (f *dateField) Values() []string {
	if f.target.IsZero() {
		return []string{""}
	}

	return []string{f.target.Format(DateFormat)}
}

type choiceField struct {
	base
	target  *string
	options []Option
}

// Choice is a select box with a single value.
func Choice(name, label string, target *string, options []Option, opts ...FieldOption) OptionsField {
	return &choiceField{base: newBase(name, label, WidgetSelect, opts), target: target, options: options}
}

func (f *choiceField) Options() []Option { return f.options }
func (f *choiceField) Multiple() bool    { return false }

func (f *choiceField) Bind(values []string) error {
	v, err := f.check(values)
	if err != nil {
		return err
	}

	if v != "" && !hasOption(f.options, v) {
		return ErrInvalidChoice
	}
	*f.target = v

	return nil
}

func (f *choiceField) Values() []string {
	return []string{*f.target}
}

type multiChoiceField struct {
	base
	target  *[]string
	options []Option
}

// MultiChoice is a select box with multiple values.
func MultiChoice(name, label string, target *[]string, options []Option, opts ...FieldOption) OptionsField {
	return &multiChoiceField{base: newBase(name, label, WidgetSelect, opts), target: target, options: options}
}

func (f *multiChoiceField) Options() []Option { return f.options }
func (f *multiChoiceField) Multiple() bool    { return true }

func (f *multiChoiceField) Bind(values []string) error {
	if _, err := f.check(values); err != nil {
		return err
	}

	selected := []string{}
	for _, v := range values {
		if v == "" {
			continue
		}
		if !hasOption(f.options, v) {
			return ErrInvalidChoice
		}
		selected = append(selected, v)
	}
	*f.target = selected

	return nil
}

func (f *multiChoiceField) Values() []string {
	return append([]string(nil), *f.target...)
}

func hasOption(options []Option, value string) bool {
	for _, o := range options {
		if o.Value == value {
			return true
		}
	}

	return false
}
