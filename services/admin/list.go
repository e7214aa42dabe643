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
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/relation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// List is one page of the list of a resource.
type List struct {
	Fields    []ListField
	Rows      []Row
	Page      int
	PerPage   int
	Pages     int
	Total     int64
	Sort      string
	Direction string
	// PageLinks are the page numbers around the current page.
	PageLinks []int
	// Query holds the filter and sort parameters that page links keep.
	Query map[string]string
}

// Row is an entity with its formatted list cells.
type Row struct {
	ID     string
	Object interface{}
	Cells  []string
}

// HasPrevious tells if there is a page before the current one.
func (l *List) HasPrevious() bool {
	return l.Page > 1
}

// HasNext tells if there is a page after the current one.
func (l *List) HasNext() bool {
	return l.Page < l.Pages
}

// NextDirection returns the direction a column header link sorts by.
func (l *List) NextDirection(field string) string {
	if l.Sort == field && l.Direction == SortAsc {
		return SortDesc
	}

	return SortAsc
}

// PageQuery returns the parameters of a page link.
func (l *List) PageQuery(page int) map[string]string {
	q := make(map[string]string, len(l.Query)+1)
	for k, v := range l.Query {
		q[k] = v
	}
	q["page"] = strconv.Itoa(page)

	return q
}

// SortQuery returns the parameters of a column header link.
func (l *List) SortQuery(field string) map[string]string {
	q := make(map[string]string, len(l.Query)+2)
	for k, v := range l.Query {
		q[k] = v
	}
	q["sort"] = field
	q["direction"] = l.NextDirection(field)

	return q
}

// Sortable tells if a column can be sorted.
func (l *List) Sortable(field string) bool {
	return field != StringField
}

// pageLinks returns the pages within rng of page.
func pageLinks(page, pages, rng int) []int {
	if pages < 1 {
		return nil
	}

	from := page - rng
	if from < 1 {
		from = 1
	}
	to := page + rng
	if to > pages {
		to = pages
	}

	links := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		links = append(links, p)
	}

	return links
}

// sortOrder reads the sort parameters. Unknown columns fall back to the identifier, ascending.
func sortOrder(r *http.Request, meta *relation.Metadata) (field, column, direction string) {
	field = meta.PrimaryField()
	column = meta.PrimaryColumn()
	direction = SortAsc

	if requested := r.URL.Query().Get("sort"); requested != "" {
		if col, found := meta.Column(requested); found {
			field = requested
			column = col
		}
	}

	if strings.ToLower(r.URL.Query().Get("direction")) == SortDesc {
		direction = SortDesc
	}

	return field, column, direction
}

func pageCount(total int64, perPage int) int {
	if total == 0 {
		return 1
	}

	return int(math.Ceil(float64(total) / float64(perPage)))
}

// loadList queries a page of the resource. q is the (filtered) query of the entity table.
func loadList(r *http.Request, q *gorm.DB, res *Resource, page, perPage int) (*List, error) {
	meta := res.Meta
	field, column, direction := sortOrder(r, meta)

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	pages := pageCount(total, perPage)
	if page > pages {
		page = pages
	}

	fields := res.ListFields()
	for _, f := range fields {
		if meta.Association(f.Name) != nil {
			q = q.Preload(f.Name)
		}
	}

	rows := meta.NewSlice()
	err := q.
		Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: column}, Desc: direction == SortDesc}).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(rows).Error
	if err != nil {
		return nil, err
	}

	l := &List{
		Fields:    fields,
		Page:      page,
		PerPage:   perPage,
		Pages:     pages,
		Total:     total,
		Sort:      field,
		Direction: direction,
		PageLinks: pageLinks(page, pages, PageRange),
		Query:     map[string]string{"sort": field, "direction": direction},
	}

	for _, obj := range relation.Objects(rows) {
		row := Row{
			ID:     res.ID(obj),
			Object: obj,
		}
		for _, f := range fields {
			row.Cells = append(row.Cells, cell(meta, obj, f.Name))
		}
		l.Rows = append(l.Rows, row)
	}

	return l, nil
}

// cell formats a field of an entity for the list page.
func cell(meta *relation.Metadata, obj interface{}, name string) string {
	if name == StringField {
		if s, ok := obj.(fmt.Stringer); ok {
			return s.String()
		}
		return ""
	}

	if a := meta.Association(name); a != nil {
		var labels []string
		for _, related := range a.Related(obj) {
			labels = append(labels, form.EntityLabel(a.Target(), related))
		}
		return strings.Join(labels, ", ")
	}

	v := reflect.Indirect(reflect.ValueOf(obj))
	if f := meta.Schema.LookUpField(name); f != nil {
		v = v.FieldByIndex(f.StructField.Index)
	} else {
		v = v.FieldByName(name)
	}

	return formatValue(v)
}

func formatValue(v reflect.Value) string {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return ""
	}

	switch val := v.Interface().(type) {
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02 15:04")
	case fmt.Stringer:
		return val.String()
	case bool:
		if val {
			return "yes"
		}
		return "no"
	}

	return fmt.Sprint(v.Interface())
}
