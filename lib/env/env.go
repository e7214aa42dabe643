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

// Package env unmarshals environment variables into structs.
//
// Field names are joined with the separator and upper-cased: the field DB.DSN
// with the prefix APP is read from APP_DB_DSN. A field can rename its segment
// with an `env:"name"` tag, or skip it with `env:"-"`. Durations use
// time.ParseDuration, string slices are comma separated, and types
// implementing encoding.TextUnmarshaler parse themselves.
package env

import (
	"encoding"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// InvalidUnmarshalError describes a target that can't be unmarshaled into.
type InvalidUnmarshalError struct {
	Type        reflect.Type
	Unsupported bool
}

func (e *InvalidUnmarshalError) Error() string {
	switch {
	case e.Type == nil:
		return "env: Unmarshal(nil)"
	case e.Type.Kind() != reflect.Ptr && !e.Unsupported:
		return "env: Unmarshal(non-pointer " + e.Type.String() + ")"
	}

	return "env: Unmarshal(" + e.Type.String() + ")"
}

// ParseError is returned when a variable has a value that does not fit its field.
type ParseError struct {
	Variable string
	Err      error
}

func (e *ParseError) Error() string {
	return "env: invalid value of " + e.Variable + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Unmarshaler reads variables through Loader.
//
// In Strict mode, fields of unsupported types are errors instead of being skipped.
type Unmarshaler struct {
	NameConverter func(string) string
	Loader        func(string) (string, bool)
	Prefix        string
	Separator     string
	Strict        bool
}

func NewUnmarshaler() *Unmarshaler {
	return &Unmarshaler{
		NameConverter: strings.ToLower,
		Loader:        os.LookupEnv,
		Separator:     "_",
	}
}

func (u *Unmarshaler) Unmarshal(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &InvalidUnmarshalError{Type: reflect.TypeOf(v)}
	}

	_, err := u.unmarshal(u.Prefix, rv)

	return err
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// unmarshal fills rv from the variables under name. It reports whether any variable was found.
func (u *Unmarshaler) unmarshal(name string, rv reflect.Value) (bool, error) {
	name = strings.ToUpper(name)

	if rv.Kind() != reflect.Ptr && reflect.PtrTo(rv.Type()).Implements(textUnmarshalerType) {
		val, found := u.Loader(name)
		if !found {
			return false, nil
		}
		if err := rv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(val)); err != nil {
			return false, &ParseError{Variable: name, Err: err}
		}
		return true, nil
	}

	switch rv.Kind() {
	case reflect.Struct:
		return u.unmarshalStruct(name, rv)
	case reflect.Ptr:
		if !rv.IsNil() {
			return u.unmarshal(name, rv.Elem())
		}
		nv := reflect.New(rv.Type().Elem())
		found, err := u.unmarshal(name, nv.Elem())
		if found && err == nil {
			rv.Set(nv)
		}
		return found, err
	case reflect.Slice:
		if rv.Type().Elem().Kind() != reflect.String {
			return false, u.unsupported(rv.Type())
		}
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return false, u.unsupported(rv.Type())
	}

	val, found := u.Loader(name)
	if !found {
		return false, nil
	}
	if err := setScalar(rv, val); err != nil {
		return false, &ParseError{Variable: name, Err: err}
	}

	return true, nil
}

func (u *Unmarshaler) unmarshalStruct(name string, rv reflect.Value) (bool, error) {
	found := false
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}

		segment := field.Name
		if tag := field.Tag.Get("env"); tag == "-" {
			continue
		} else if tag != "" {
			segment = tag
		}

		fieldFound, err := u.unmarshal(u.childName(name, segment), rv.Field(i))
		if err != nil {
			return false, err
		}
		found = found || fieldFound
	}

	return found, nil
}

func (u *Unmarshaler) unsupported(t reflect.Type) error {
	if u.Strict {
		return &InvalidUnmarshalError{Type: t, Unsupported: true}
	}

	return nil
}

func setScalar(rv reflect.Value, val string) error {
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(val)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err != nil {
			return err
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == durationType {
			d, err := time.ParseDuration(val)
			if err != nil {
				return err
			}
			rv.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(val, 0, rv.Type().Bits())
		if err != nil {
			return err
		}
		rv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(val, 0, rv.Type().Bits())
		if err != nil {
			return err
		}
		rv.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, rv.Type().Bits())
		if err != nil {
			return err
		}
		rv.SetFloat(f)
	case reflect.Slice:
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		slice := reflect.MakeSlice(rv.Type(), len(items), len(items))
		for i, item := range items {
			slice.Index(i).SetString(item)
		}
		rv.Set(slice)
	default:
		return fmt.Errorf("unsupported type %s", rv.Type())
	}

	return nil
}

func (u *Unmarshaler) childName(current, child string) string {
	if u.NameConverter != nil {
		child = u.NameConverter(child)
	}
	if current == "" {
		return child
	}

	return current + u.Separator + child
}
