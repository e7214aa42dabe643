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

// Package relation keeps the inverse side of one-to-many and one-to-one
// relations in sync when an entity is edited through a form.
//
// A form replaces the related collection of an entity (e.g. Category.Products),
// but with gorm the foreign key lives on the related rows (Product.CategoryID).
// Capture records the collection before the form is bound, Reconcile compares
// it with the bound collection, clears the back-reference of the removed
// objects and points the back-reference of the current ones to the entity.
package relation

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Kind is the kind of a relation.
type Kind string

const (
	KindHasOne    Kind = "has_one"
	KindHasMany   Kind = "has_many"
	KindBelongsTo Kind = "belongs_to"
	KindMany2Many Kind = "many_to_many"

	FieldTypeObject = "object"
)

// Field is a column-backed field of an entity.
type Field struct {
	Name   string
	Column string
	Type   string
}

// Accessor parses entity types and caches their metadata.
type Accessor struct {
	conn  *gorm.DB
	mtx   sync.Mutex
	cache map[reflect.Type]*Metadata
}

// NewAccessor creates an Accessor that parses models with the naming strategy of conn.
func NewAccessor(conn *gorm.DB) *Accessor {
	return &Accessor{
		conn:  conn,
		cache: make(map[reflect.Type]*Metadata),
	}
}

// For returns the metadata of the type of model. model must be a pointer to a struct.
func (a *Accessor) For(model interface{}) (*Metadata, error) {
	t := reflect.TypeOf(model)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, errors.NewConfigurationError(fmt.Sprintf("%T", model), "entity must be a pointer to a struct")
	}

	return a.forType(t.Elem())
}

func (a *Accessor) forType(t reflect.Type) (*Metadata, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	return a.load(t)
}

// load must be called with the lock held.
func (a *Accessor) load(t reflect.Type) (*Metadata, error) {
	if m, found := a.cache[t]; found {
		return m, nil
	}

	s, err := db.ParseSchema(a.conn, reflect.New(t).Interface())
	if err != nil {
		return nil, errors.NewConfigurationError(t.String(), err.Error())
	}

	m := &Metadata{
		Type:    t,
		Schema:  s,
		primary: s.PrioritizedPrimaryField,
	}
	// cached before the associations are resolved, so cyclic relations terminate
	a.cache[t] = m

	for _, f := range s.Fields {
		if f.DBName == "" {
			continue
		}
		m.fields = append(m.fields, Field{
			Name:   f.Name,
			Column: f.DBName,
			Type:   string(f.DataType),
		})
	}

	for _, rel := range sortedRelationships(s) {
		target, err := a.load(rel.FieldSchema.ModelType)
		if err != nil {
			return nil, err
		}

		assoc, err := a.association(m, target, rel)
		if err != nil {
			return nil, err
		}
		m.associations = append(m.associations, assoc)
	}

	return m, nil
}

// sortedRelationships returns the relations declared on s in field order.
//
// Relationships.Relations is not used: gorm also registers the reverse side
// of a related schema's relation there, with fields of the other type.
func sortedRelationships(s *schema.Schema) []*schema.Relationship {
	var rels []*schema.Relationship
	for _, group := range [][]*schema.Relationship{
		s.Relationships.HasOne,
		s.Relationships.HasMany,
		s.Relationships.BelongsTo,
		s.Relationships.Many2Many,
	} {
		for _, rel := range group {
			if rel.Schema == s {
				rels = append(rels, rel)
			}
		}
	}

	sort.Slice(rels, func(i, j int) bool {
		return rels[i].Field.StructField.Index[0] < rels[j].Field.StructField.Index[0]
	})

	return rels
}

func (a *Accessor) association(owner, target *Metadata, rel *schema.Relationship) (*Association, error) {
	assoc := &Association{
		Name:   rel.Name,
		target: target,
		field:  rel.Field,
		rel:    rel,
	}

	fieldType := rel.Field.FieldType
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}
	if fieldType.Kind() == reflect.Slice || fieldType.Kind() == reflect.Array {
		assoc.collection = true
		assoc.elemIsPtr = fieldType.Elem().Kind() == reflect.Ptr
	}

	switch rel.Type {
	case schema.HasOne:
		assoc.Kind = KindHasOne
	case schema.HasMany:
		assoc.Kind = KindHasMany
	case schema.BelongsTo:
		assoc.Kind = KindBelongsTo
		assoc.Owning = true
	case schema.Many2Many:
		assoc.Kind = KindMany2Many
		assoc.Owning = true
	default:
		return nil, errors.NewConfigurationError(owner.Type.String(), "unsupported relation %s on %s", rel.Type, rel.Name)
	}

	if assoc.Kind == KindBelongsTo {
		for _, ref := range rel.References {
			if ref.ForeignKey != nil && ref.PrimaryKey != nil {
				assoc.ownFields = append(assoc.ownFields, backField{field: ref.ForeignKey, source: ref.PrimaryKey})
			}
		}
	}

	if assoc.Owning {
		return assoc, nil
	}

	for _, ref := range rel.References {
		if ref.ForeignKey == nil {
			continue
		}
		bf := backField{field: ref.ForeignKey}
		if ref.OwnPrimaryKey {
			bf.source = ref.PrimaryKey
		}
		if ref.PrimaryKey == nil || !ref.OwnPrimaryKey {
			bf.constant = ref.PrimaryValue
		}
		assoc.backFields = append(assoc.backFields, bf)
	}

	if len(assoc.backFields) == 0 {
		return nil, errors.NewConfigurationError(owner.Type.String(), "relation %s has no foreign key", rel.Name)
	}

	// the back-reference pointer: a belongs-to relation on the target that uses the same foreign key
	for _, back := range target.Schema.Relationships.BelongsTo {
		if back.FieldSchema == nil || back.FieldSchema.ModelType != owner.Type {
			continue
		}
		for _, ref := range back.References {
			if ref.ForeignKey != nil && ref.ForeignKey.Name == assoc.backFields[0].field.Name {
				assoc.backPointer = back.Field
			}
		}
	}

	if assoc.backPointer != nil {
		assoc.MappedBy = assoc.backPointer.Name
	} else {
		assoc.MappedBy = assoc.backFields[0].field.Name
	}

	return assoc, nil
}

// Metadata describes an entity type.
type Metadata struct {
	Type         reflect.Type
	Schema       *schema.Schema
	primary      *schema.Field
	fields       []Field
	associations []*Association
}

// Fields returns the column-backed fields, in declaration order.
func (m *Metadata) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Associations returns the relations, in declaration order.
func (m *Metadata) Associations() []*Association {
	return append([]*Association(nil), m.associations...)
}

// Association returns a relation by its field name.
func (m *Metadata) Association(name string) *Association {
	for _, a := range m.associations {
		if a.Name == name {
			return a
		}
	}

	return nil
}

// ExportFields returns the fields and the relations, the latter typed as FieldTypeObject.
func (m *Metadata) ExportFields() []Field {
	fields := m.Fields()
	for _, a := range m.associations {
		fields = append(fields, Field{
			Name: a.Name,
			Type: FieldTypeObject,
		})
	}

	return fields
}

// Column returns the column name of a field. Column names are accepted as well.
func (m *Metadata) Column(name string) (string, bool) {
	for _, f := range m.fields {
		if f.Name == name || f.Column == name {
			return f.Column, true
		}
	}

	return "", false
}

// Table returns the table name of the entity.
func (m *Metadata) Table() string {
	return m.Schema.Table
}

// New creates a new, empty entity.
func (m *Metadata) New() interface{} {
	return reflect.New(m.Type).Interface()
}

// NewSlice creates a pointer to an empty slice of entity pointers, for gorm's Find.
func (m *Metadata) NewSlice() interface{} {
	return reflect.New(reflect.SliceOf(reflect.PtrTo(m.Type))).Interface()
}

// ParseID converts a textual identifier (e.g. from a URL) to the type of the primary field.
func (m *Metadata) ParseID(id string) (interface{}, error) {
	if m.primary == nil {
		return nil, errors.NewConfigurationError(m.Type.String(), "no primary field")
	}

	t := m.primary.FieldType
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(id, 10, 64)
		if err != nil || v.OverflowInt(i) {
			return nil, errors.NotFound(m.Type.Name(), id)
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(id, 10, 64)
		if err != nil || v.OverflowUint(u) {
			return nil, errors.NotFound(m.Type.Name(), id)
		}
		v.SetUint(u)
	case reflect.String:
		v.SetString(id)
	default:
		return id, nil
	}

	return v.Interface(), nil
}

// ParseIDs converts a list of textual identifiers. Invalid ones are skipped.
func (m *Metadata) ParseIDs(ids []string) []interface{} {
	parsed := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if v, err := m.ParseID(id); err == nil {
			parsed = append(parsed, v)
		}
	}

	return parsed
}

// Objects returns the elements of a slice (or a pointer to one) as pointers.
func Objects(slice interface{}) []interface{} {
	v := reflect.Indirect(reflect.ValueOf(slice))
	if v.Kind() != reflect.Slice {
		return nil
	}

	objs := make([]interface{}, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		e := v.Index(i)
		if e.Kind() != reflect.Ptr {
			e = e.Addr()
		} else if e.IsNil() {
			continue
		}
		objs = append(objs, e.Interface())
	}

	return objs
}

// PrimaryField returns the name of the identifier field, or an empty string when there is none.
func (m *Metadata) PrimaryField() string {
	if m.primary == nil {
		return ""
	}

	return m.primary.Name
}

// PrimaryColumn returns the column of the identifier field.
func (m *Metadata) PrimaryColumn() string {
	if m.primary == nil {
		return ""
	}

	return m.primary.DBName
}

// PrimaryValue returns the identifier of an entity. The second return value is false when it is zero.
func (m *Metadata) PrimaryValue(obj interface{}) (interface{}, bool) {
	if m.primary == nil || isNil(obj) {
		return nil, false
	}

	v, zero := m.primary.ValueOf(context.Background(), reflect.Indirect(reflect.ValueOf(obj)))

	return v, !zero
}

type identity struct {
	t   reflect.Type
	key string
	ptr uintptr
}

// Identity returns a comparable key for an object: its type and identifier,
// or its address when the identifier is not set yet.
func (m *Metadata) Identity(obj interface{}) interface{} {
	if v, ok := m.PrimaryValue(obj); ok {
		return identity{t: m.Type, key: fmt.Sprint(v)}
	}

	return identity{t: m.Type, ptr: reflect.ValueOf(obj).Pointer()}
}

type backField struct {
	field    *schema.Field
	source   *schema.Field
	constant string
}

// Association is a relation field of an entity type.
//
// Non-owning sides (has-one, has-many) keep their back-reference on the
// target type: the foreign key columns and, when the target declares it, a
// belongs-to pointer to the owner.
type Association struct {
	Name     string
	Kind     Kind
	Owning   bool
	MappedBy string

	target      *Metadata
	field       *schema.Field
	rel         *schema.Relationship
	collection  bool
	elemIsPtr   bool
	backFields  []backField
	backPointer *schema.Field
	ownFields   []backField
}

// Target returns the metadata of the related type.
func (a *Association) Target() *Metadata {
	return a.target
}

// IsCollection tells if the field holds more than one object.
func (a *Association) IsCollection() bool {
	return a.collection
}

// Related returns the related objects of entity as pointers.
//
// Slice elements are returned as pointers into the slice, so changing them changes the entity.
func (a *Association) Related(entity interface{}) []interface{} {
	if isNil(entity) {
		return nil
	}

	fv := a.field.ReflectValueOf(context.Background(), reflect.Indirect(reflect.ValueOf(entity)))

	var related []interface{}
	switch fv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < fv.Len(); i++ {
			if obj := a.item(fv.Index(i)); obj != nil {
				related = append(related, obj)
			}
		}
	default:
		if obj := a.item(fv); obj != nil {
			related = append(related, obj)
		}
	}

	return related
}

func (a *Association) item(v reflect.Value) interface{} {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		return v.Interface()
	}

	if !v.CanAddr() {
		return nil
	}

	obj := v.Addr().Interface()
	if a.target != nil && a.target.primary != nil {
		// a zero embedded value means "no related object"
		if _, set := a.target.PrimaryValue(obj); !set && reflect.DeepEqual(v.Interface(), reflect.Zero(v.Type()).Interface()) {
			return nil
		}
	}

	return obj
}

// Assign replaces the related objects of entity. objs must be pointers to the target type.
//
// For belongs-to relations the foreign key fields of entity are updated too, so
// saving the entity without its associations still stores the relation.
func (a *Association) Assign(entity interface{}, objs []interface{}) {
	if isNil(entity) {
		return
	}

	ctx := context.Background()
	ev := reflect.Indirect(reflect.ValueOf(entity))
	fv := a.field.ReflectValueOf(ctx, ev)

	if a.collection {
		slice := reflect.MakeSlice(fv.Type(), 0, len(objs))
		for _, obj := range objs {
			if isNil(obj) {
				continue
			}
			v := reflect.ValueOf(obj)
			if !a.elemIsPtr {
				v = v.Elem()
			}
			slice = reflect.Append(slice, v)
		}
		fv.Set(slice)
		return
	}

	var related interface{}
	for _, obj := range objs {
		if !isNil(obj) {
			related = obj
			break
		}
	}

	assign(fv, related)

	for _, of := range a.ownFields {
		var value interface{}
		if related != nil {
			if v, zero := of.source.ValueOf(ctx, reflect.Indirect(reflect.ValueOf(related))); !zero {
				value = v
			}
		}
		assign(of.field.ReflectValueOf(ctx, ev), value)
	}
}

// SetBack points the back-reference of related to owner.
//
// When the owner has no identifier yet, the foreign key is set to the zero value; call SetBack again after the owner is inserted.
func (a *Association) SetBack(related, owner interface{}) {
	if a.Owning || isNil(related) {
		return
	}

	rv := reflect.Indirect(reflect.ValueOf(related))
	ov := reflect.Indirect(reflect.ValueOf(owner))
	ctx := context.Background()

	for _, bf := range a.backFields {
		var value interface{}
		if bf.source != nil {
			value, _ = bf.source.ValueOf(ctx, ov)
		} else {
			value = bf.constant
		}
		assign(bf.field.ReflectValueOf(ctx, rv), value)
	}

	if a.backPointer != nil {
		assign(a.backPointer.ReflectValueOf(ctx, rv), owner)
	}
}

// ClearBack clears the back-reference of related.
func (a *Association) ClearBack(related interface{}) {
	if a.Owning || isNil(related) {
		return
	}

	rv := reflect.Indirect(reflect.ValueOf(related))
	ctx := context.Background()

	for _, bf := range a.backFields {
		assign(bf.field.ReflectValueOf(ctx, rv), nil)
	}

	if a.backPointer != nil {
		assign(a.backPointer.ReflectValueOf(ctx, rv), nil)
	}
}

// BackReference returns the back-reference foreign key value of related, or nil when it is cleared.
func (a *Association) BackReference(related interface{}) interface{} {
	if a.Owning || isNil(related) || len(a.backFields) == 0 {
		return nil
	}

	fv := a.backFields[0].field.ReflectValueOf(context.Background(), reflect.Indirect(reflect.ValueOf(related)))
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	if fv.IsZero() {
		return nil
	}

	return fv.Interface()
}

// assign sets a field, converting between T and *T. A nil value zeroes the field.
func assign(fv reflect.Value, value interface{}) {
	if !fv.CanSet() {
		return
	}

	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return
	}

	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr && fv.Kind() != reflect.Ptr {
		if v.IsNil() {
			fv.Set(reflect.Zero(fv.Type()))
			return
		}
		v = v.Elem()
	}

	if fv.Kind() == reflect.Ptr && v.Kind() != reflect.Ptr {
		p := reflect.New(fv.Type().Elem())
		p.Elem().Set(v.Convert(fv.Type().Elem()))
		fv.Set(p)
		return
	}

	fv.Set(v.Convert(fv.Type()))
}

func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}

	v := reflect.ValueOf(obj)

	return v.Kind() == reflect.Ptr && v.IsNil()
}
