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

package config

import (
	"encoding/json"
	"io"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
)

var (
	_ FileType = &JSON{}
	_ FileType = &YAML{}
	_ FileType = &TOML{}
)

// JSON files. Strict rejects unknown fields.
type JSON struct {
	Strict bool
	Prefix string
	Indent string
}

func (*JSON) Extensions() []string {
	return []string{"json"}
}

func (t *JSON) Unmarshal(stream io.Reader, v interface{}) error {
	dec := json.NewDecoder(stream)
	if t.Strict {
		dec.DisallowUnknownFields()
	}

	return dec.Decode(v)
}

func (t *JSON) Marshal(stream io.Writer, v interface{}) error {
	enc := json.NewEncoder(stream)
	enc.SetIndent(t.Prefix, t.Indent)

	return enc.Encode(v)
}

// YAML files. Strict rejects unknown and duplicate fields.
type YAML struct {
	Strict bool
}

func (*YAML) Extensions() []string {
	return []string{"yml", "yaml"}
}

func (t *YAML) Unmarshal(stream io.Reader, v interface{}) error {
	dec := yaml.NewDecoder(stream)
	dec.SetStrict(t.Strict)

	err := dec.Decode(v)
	if err == io.EOF {
		return nil
	}

	return err
}

func (*YAML) Marshal(stream io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(stream)
	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}

// TOML files. Strict rejects unknown fields.
type TOML struct {
	Strict                      bool
	ArraysWithOneElementPerLine bool
	QuoteMapKeys                bool
}

func (*TOML) Extensions() []string {
	return []string{"toml"}
}

func (t *TOML) Unmarshal(stream io.Reader, v interface{}) error {
	return toml.NewDecoder(stream).Strict(t.Strict).Decode(v)
}

func (t *TOML) Marshal(stream io.Writer, v interface{}) error {
	return toml.NewEncoder(stream).
		ArraysWithOneElementPerLine(t.ArraysWithOneElementPerLine).
		QuoteMapKeys(t.QuoteMapKeys).
		Encode(v)
}
