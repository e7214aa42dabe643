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
	"fmt"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/relation"
	"gorm.io/gorm"
)

type relationField struct {
	base
	conn    *gorm.DB
	assoc   *relation.Association
	target  *relation.Metadata
	entity  interface{}
	options []Option
	loaded  bool
}

// Relation is a select box of existing rows for an association of entity.
//
// Binding loads the selected rows and assigns them to the association. Collections become multi-selects.
// A missing association is a programming error and fails the request.
func Relation(conn *gorm.DB, meta *relation.Metadata, entity interface{}, association, label string, opts ...FieldOption) OptionsField {
	assoc := meta.Association(association)
	if assoc == nil {
		errors.Fail(http.StatusInternalServerError, errors.NewConfigurationError(meta.Type.String(), "unknown association %s", association))
	}

	return &relationField{
		base:   newBase(association, label, WidgetSelect, opts),
		conn:   conn,
		assoc:  assoc,
		target: assoc.Target(),
		entity: entity,
	}
}

func (f *relationField) Multiple() bool {
	return f.assoc.IsCollection()
}

func (f *relationField) Options() []Option {
	if f.loaded {
		return f.options
	}
	f.loaded = true

	rows := f.target.NewSlice()
	if err := f.conn.Order(f.target.PrimaryColumn()).Find(rows).Error; err != nil {
		errors.Fail(http.StatusInternalServerError, err)
	}

	for _, obj := range relation.Objects(rows) {
		id, _ := f.target.PrimaryValue(obj)
		f.options = append(f.options, Option{
			Value: fmt.Sprint(id),
			Label: EntityLabel(f.target, obj),
		})
	}

	return f.options
}

func (f *relationField) Bind(values []string) error {
	if _, err := f.check(values); err != nil {
		return err
	}

	var ids []string
	for _, v := range values {
		if v != "" {
			ids = append(ids, v)
		}
	}
	if !f.Multiple() && len(ids) > 1 {
		ids = ids[:1]
	}

	if len(ids) == 0 {
		f.assoc.Assign(f.entity, nil)
		return nil
	}

	keys := f.target.ParseIDs(ids)
	if len(keys) != len(ids) {
		return ErrInvalidChoice
	}
	// "1" and "01" select the same row
	ids = ids[:0]
	for _, k := range keys {
		ids = append(ids, fmt.Sprint(k))
	}

	rows := f.target.NewSlice()
	if err := f.conn.Where(fmt.Sprintf("%s IN ?", f.target.PrimaryColumn()), keys).Find(rows).Error; err != nil {
		return errors.Wrap(err, "Failed to load the selected items.", nil)
	}

	objs := relation.Objects(rows)
	if len(objs) != len(unique(ids)) {
		return ErrInvalidChoice
	}

	f.assoc.Assign(f.entity, orderBy(f.target, objs, ids))

	return nil
}

func (f *relationField) Values() []string {
	var values []string
	for _, obj := range f.assoc.Related(f.entity) {
		if id, ok := f.target.PrimaryValue(obj); ok {
			values = append(values, fmt.Sprint(id))
		}
	}

	return values
}

func unique(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set
}

// orderBy keeps the submitted order of the selection.
func orderBy(meta *relation.Metadata, objs []interface{}, ids []string) []interface{} {
	byID := make(map[string]interface{}, len(objs))
	for _, obj := range objs {
		id, _ := meta.PrimaryValue(obj)
		byID[fmt.Sprint(id)] = obj
	}

	ordered := make([]interface{}, 0, len(objs))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if obj, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			ordered = append(ordered, obj)
		}
	}

	return ordered
}

// EntityLabel returns the display label of an entity: its String() method, or its identifier.
func EntityLabel(meta *relation.Metadata, obj interface{}) string {
	if s, ok := obj.(fmt.Stringer); ok {
		return s.String()
	}

	id, _ := meta.PrimaryValue(obj)

	return fmt.Sprint(id)
}
