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

package relation

import (
	"reflect"
	"sort"
)

// Snapshot is the state of the relations of an entity before a form is bound.
type Snapshot struct {
	before map[string][]interface{}
}

// Capture records the related objects of every relation of entity.
//
// Capture must run before the request data is bound to the entity. Pointer
// elements are kept as they are, value elements are copied.
func Capture(meta *Metadata, entity interface{}) Snapshot {
	snap := Snapshot{before: make(map[string][]interface{})}
	if meta == nil || isNil(entity) {
		return snap
	}

	for _, a := range meta.associations {
		related := a.Related(entity)
		items := make([]interface{}, 0, len(related))
		for _, obj := range related {
			if a.collection && !a.elemIsPtr || !a.collection && a.field.FieldType.Kind() != reflect.Ptr {
				obj = clone(obj)
			}
			items = append(items, obj)
		}
		snap.before[a.Name] = items
	}

	return snap
}

func clone(obj interface{}) interface{} {
	v := reflect.ValueOf(obj)
	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())

	return cp.Interface()
}

// Before returns the related objects of a field.
func (s Snapshot) Before(field string) []interface{} {
	return append([]interface{}(nil), s.before[field]...)
}

// Has tells if the field was captured.
func (s Snapshot) Has(field string) bool {
	_, found := s.before[field]
	return found
}

// Fields returns the captured field names.
func (s Snapshot) Fields() []string {
	fields := make([]string, 0, len(s.before))
	for f := range s.before {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	return fields
}
