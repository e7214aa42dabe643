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

package admin

import (
	"net/http"
	"strings"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/relation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FilterFormName is the name of the filter form. Its inputs are in the query string, e.g. filter[name].
const FilterFormName = "filter"

// Filter is a GET form on the list page that narrows the query.
//
// Filter fields are never required: an empty value does not filter.
type Filter struct {
	form    *form.Form
	filters []filterField
}

type filterField struct {
	value *string
	apply func(q *gorm.DB, meta *relation.Metadata, value string) (*gorm.DB, error)
}

// NewFilter creates an empty filter form.
func NewFilter() *Filter {
	return &Filter{
		form: form.New(FilterFormName).Method(http.MethodGet),
	}
}

// Form returns the form of the filter.
func (f *Filter) Form() *form.Form {
	return f.form
}

// Add adds a field with the function that applies its value to the query.
//
// The field must write its value to value.
func (f *Filter) Add(field form.Field, value *string, apply func(q *gorm.DB, meta *relation.Metadata, value string) (*gorm.DB, error)) *Filter {
	f.form.Add(field)
	f.filters = append(f.filters, filterField{value: value, apply: apply})

	return f
}

// Text filters a column with a case insensitive substring match.
func (f *Filter) Text(field, label string) *Filter {
	var value string
	return f.Add(form.Text(field, label, &value), &value, func(q *gorm.DB, meta *relation.Metadata, v string) (*gorm.DB, error) {
		col, err := column(meta, field)
		if err != nil {
			return nil, err
		}

		return q.Where(clause.Like{
			Column: clause.Expr{SQL: "LOWER(?)", Vars: []interface{}{col}},
			Value:  "%" + strings.ToLower(v) + "%",
		}), nil
	})
}

// Equal filters a column with an exact match.
func (f *Filter) Equal(field, label string) *Filter {
	var value string
	return f.Add(form.Text(field, label, &value), &value, equal(field))
}

// Choice filters a column by one of the options.
func (f *Filter) Choice(field, label string, options []form.Option) *Filter {
	var value string
	return f.Add(form.Choice(field, label, &value, options), &value, equal(field))
}

// Entity filters by a related entity, chosen from the existing rows.
//
// The association can be of any kind, e.g. the category of products or the tags of a product.
func (f *Filter) Entity(conn *gorm.DB, meta *relation.Metadata, association, label string) *Filter {
	assoc := meta.Association(association)
	if assoc == nil {
		errors.Fail(http.StatusInternalServerError, errors.NewConfigurationError(meta.Type.String(), "unknown association %s", association))
	}

	var value string
	field := &entityFilterField{
		OptionsField: form.Relation(conn, meta, meta.New(), association, label),
		value:        &value,
	}

	return f.Add(field, &value, func(q *gorm.DB, _ *relation.Metadata, v string) (*gorm.DB, error) {
		id, err := assoc.Target().ParseID(v)
		if err != nil {
			return nil, err
		}

		return q.Scopes(assoc.Scope(id)), nil
	})
}

// SelectEntityFilter creates a filter with a single related entity field.
func SelectEntityFilter(conn *gorm.DB, meta *relation.Metadata, association, label string) *Filter {
	return NewFilter().Entity(conn, meta, association, label)
}

// entityFilterField offers the rows of a relation, but only records the chosen identifier.
type entityFilterField struct {
	form.OptionsField
	value *string
}

func (f *entityFilterField) Multiple() bool {
	return false
}

func (f *entityFilterField) Required() bool {
	return false
}

func (f *entityFilterField) Bind(values []string) error {
	*f.value = ""
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, o := range f.Options() {
			if o.Value == v {
				*f.value = v
				return nil
			}
		}
		return form.ErrInvalidChoice
	}

	return nil
}

func (f *entityFilterField) Values() []string {
	if *f.value == "" {
		return nil
	}

	return []string{*f.value}
}

// Apply binds the request to the filter form and narrows q with the submitted values.
//
// An invalid form does not filter.
func (f *Filter) Apply(r *http.Request, meta *relation.Metadata, q *gorm.DB) (*gorm.DB, error) {
	f.form.HandleRequest(r)
	if !f.form.IsValid() {
		return q, nil
	}

	var err error
	for _, ff := range f.filters {
		v := strings.TrimSpace(*ff.value)
		if v == "" {
			continue
		}
		if q, err = ff.apply(q, meta, v); err != nil {
			return nil, err
		}
	}

	return q, nil
}

func equal(field string) func(q *gorm.DB, meta *relation.Metadata, v string) (*gorm.DB, error) {
	return func(q *gorm.DB, meta *relation.Metadata, v string) (*gorm.DB, error) {
		col, err := column(meta, field)
		if err != nil {
			return nil, err
		}

		return q.Where(clause.Eq{Column: col, Value: v}), nil
	}
}

func column(meta *relation.Metadata, field string) (clause.Column, error) {
	col, found := meta.Column(field)
	if !found {
		return clause.Column{}, errors.NewConfigurationError(meta.Type.String(), "unknown filter field %s", field)
	}

	return clause.Column{Table: clause.CurrentTable, Name: col}, nil
}
