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

// Package export writes the rows of an entity type in a data format.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/relation"
	"github.com/alien-bunny/backoffice/lib/render"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
	"gorm.io/gorm"
)

// Format is an export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"

	DefaultBatchSize = 100
)

var formats = []Format{FormatCSV, FormatJSON, FormatYAML, FormatTOML}

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv",
	FormatJSON: "application/json",
	FormatYAML: "application/yaml",
	FormatTOML: "application/toml",
}

// Formats returns the supported formats.
func Formats() []Format {
	return append([]Format(nil), formats...)
}

// ParseFormat checks a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(name))
	if _, found := contentTypes[f]; !found {
		return "", errors.NewError(fmt.Sprintf("unknown export format %q", name), "Unknown export format.", nil)
	}

	return f, nil
}

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	return contentTypes[f]
}

// Extension returns the file extension of the format.
func (f Format) Extension() string {
	return "." + string(f)
}

// Filter narrows down the exported rows.
type Filter func(*gorm.DB) *gorm.DB

// Exporter streams entities in batches.
type Exporter struct {
	BatchSize int
}

// NewExporter creates an Exporter with the default batch size.
func NewExporter() *Exporter {
	return &Exporter{BatchSize: DefaultBatchSize}
}

// Export writes the selected fields of the entities of meta that match the filter. The filter can be nil.
//
// Relation fields are written with the labels of the related objects.
func (e *Exporter) Export(ctx context.Context, w io.Writer, conn *gorm.DB, format Format, filter Filter, meta *relation.Metadata, fields []string) error {
	if len(fields) == 0 {
		return errors.New("No fields selected.")
	}

	columns, err := resolve(meta, fields)
	if err != nil {
		return err
	}

	enc, err := newEncoder(format, w, fields)
	if err != nil {
		return err
	}

	query := conn.WithContext(ctx).Model(meta.New())
	if filter != nil {
		query = filter(query)
	}
	for _, c := range columns {
		if c.assoc != nil {
			query = query.Preload(c.name)
		}
	}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var encErr error
	rows := meta.NewSlice()
	res := query.FindInBatches(rows, batchSize, func(tx *gorm.DB, batch int) error {
		for _, obj := range relation.Objects(rows) {
			if encErr = enc.record(values(columns, obj)); encErr != nil {
				return encErr
			}
		}
		return nil
	})
	if encErr != nil {
		return encErr
	}
	if res.Error != nil {
		return res.Error
	}

	return enc.close()
}

type column struct {
	name  string
	field reflect.StructField
	assoc *relation.Association
}

func resolve(meta *relation.Metadata, fields []string) ([]column, error) {
	columns := make([]column, 0, len(fields))
	for _, name := range fields {
		if a := meta.Association(name); a != nil {
			columns = append(columns, column{name: name, assoc: a})
			continue
		}

		if _, ok := meta.Column(name); !ok {
			return nil, errors.NewError(fmt.Sprintf("unknown field %q on %s", name, meta.Type), "Unknown export field.", nil)
		}

		sf, ok := meta.Type.FieldByName(name)
		if !ok {
			return nil, errors.NewError(fmt.Sprintf("field %q is not a struct field of %s", name, meta.Type), "Unknown export field.", nil)
		}
		columns = append(columns, column{name: name, field: sf})
	}

	return columns, nil
}

func values(columns []column, obj interface{}) []interface{} {
	v := reflect.Indirect(reflect.ValueOf(obj))
	record := make([]interface{}, len(columns))
	for i, c := range columns {
		if c.assoc != nil {
			record[i] = labels(c.assoc, obj)
			continue
		}
		record[i] = plain(v.FieldByIndex(c.field.Index))
	}

	return record
}

func labels(a *relation.Association, obj interface{}) interface{} {
	var l []string
	for _, related := range a.Related(obj) {
		if s, ok := related.(fmt.Stringer); ok {
			l = append(l, s.String())
			continue
		}
		id, _ := a.Target().PrimaryValue(related)
		l = append(l, fmt.Sprint(id))
	}

	if a.IsCollection() {
		if l == nil {
			l = []string{}
		}
		return l
	}

	if len(l) == 0 {
		return nil
	}

	return l[0]
}

func plain(v reflect.Value) interface{} {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	return v.Interface()
}

type encoder interface {
	record(values []interface{}) error
	close() error
}

func newEncoder(format Format, w io.Writer, fields []string) (encoder, error) {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		return &csvEncoder{w: cw}, cw.Write(fields)
	case FormatJSON:
		return &jsonEncoder{w: w, fields: fields}, nil
	case FormatYAML:
		return &yamlEncoder{w: w, fields: fields}, nil
	case FormatTOML:
		return &tomlEncoder{w: w, fields: fields}, nil
	}

	return nil, errors.NewError(fmt.Sprintf("unknown export format %q", format), "Unknown export format.", nil)
}

type csvEncoder struct {
	w *csv.Writer
}

func (e *csvEncoder) record(values []interface{}) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = render.EscapeCSVField(csvValue(v))
	}

	return e.w.Write(row)
}

func csvValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format(time.RFC3339)
	case []string:
		return strings.Join(val, ", ")
	}

	return fmt.Sprint(v)
}

func (e *csvEncoder) close() error {
	e.w.Flush()
	return e.w.Error()
}

type jsonEncoder struct {
	w       io.Writer
	fields  []string
	started bool
}

func (e *jsonEncoder) record(values []interface{}) error {
	sep := ","
	if !e.started {
		sep = "["
		e.started = true
	}

	var b strings.Builder
	b.WriteString(sep)
	b.WriteString("{")
	for i, f := range e.fields {
		if i > 0 {
			b.WriteString(",")
		}
		key, _ := json.Marshal(f)
		val, err := json.Marshal(values[i])
		if err != nil {
			return err
		}
		b.Write(key)
		b.WriteString(":")
		b.Write(val)
	}
	b.WriteString("}")

	_, err := io.WriteString(e.w, b.String())

	return err
}

func (e *jsonEncoder) close() error {
	end := "]\n"
	if !e.started {
		end = "[]\n"
	}
	_, err := io.WriteString(e.w, end)

	return err
}

type yamlEncoder struct {
	w       io.Writer
	fields  []string
	started bool
}

func (e *yamlEncoder) record(values []interface{}) error {
	item := make(yaml.MapSlice, len(e.fields))
	for i, f := range e.fields {
		item[i] = yaml.MapItem{Key: f, Value: values[i]}
	}

	out, err := yaml.Marshal([]yaml.MapSlice{item})
	if err != nil {
		return err
	}
	e.started = true
	_, err = e.w.Write(out)

	return err
}

func (e *yamlEncoder) close() error {
	if e.started {
		return nil
	}
	_, err := io.WriteString(e.w, "[]\n")

	return err
}

type tomlEncoder struct {
	w      io.Writer
	fields []string
}

func (e *tomlEncoder) record(values []interface{}) error {
	m := make(map[string]interface{}, len(e.fields))
	for i, f := range e.fields {
		m[f] = tomlValue(values[i])
	}

	tree, err := toml.TreeFromMap(m)
	if err != nil {
		return err
	}

	s, err := tree.ToTomlString()
	if err != nil {
		return err
	}

	_, err = io.WriteString(e.w, "[[records]]\n"+s+"\n")

	return err
}

// tomlValue maps values that toml can not represent.
func tomlValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return ""
	case []string:
		items := make([]interface{}, len(val))
		for i, s := range val {
			items[i] = s
		}
		return items
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return rv.Int()
	case reflect.Float32:
		return rv.Float()
	}

	return v
}

func (e *tomlEncoder) close() error {
	return nil
}
