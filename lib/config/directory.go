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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileType is a configuration file format.
type FileType interface {
	Extensions() []string
	Unmarshal(stream io.Reader, v interface{}) error
	Marshal(stream io.Writer, v interface{}) error
}

var _ WritableProvider = &DirectoryConfigProvider{}

// DirectoryConfigProvider reads a section from the file named after its key, e.g. config.toml or database.yaml.
//
// When a key has files of several formats, the first registered file type wins.
// A writable provider saves new sections in the first registered format.
type DirectoryConfigProvider struct {
	base     string
	readOnly bool

	mtx       sync.Mutex
	fileTypes []FileType
}

func NewDirectoryConfigProvider(base string, readOnly bool) *DirectoryConfigProvider {
	return &DirectoryConfigProvider{
		base:     base,
		readOnly: readOnly,
	}
}

// NewDefaultDirectoryConfigProvider creates a read-only directory provider that understands toml, yaml and json files.
func NewDefaultDirectoryConfigProvider(base string) *DirectoryConfigProvider {
	d := NewDirectoryConfigProvider(base, true)
	d.RegisterFiletype(&TOML{})
	d.RegisterFiletype(&YAML{})
	d.RegisterFiletype(&JSON{})

	return d
}

// Base returns the directory of the provider.
func (d *DirectoryConfigProvider) Base() string {
	return d.base
}

func (d *DirectoryConfigProvider) RegisterFiletype(t FileType) {
	d.mtx.Lock()
	d.fileTypes = append(d.fileTypes, t)
	d.mtx.Unlock()
}

func (d *DirectoryConfigProvider) types() []FileType {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.fileTypes
}

// lookup finds the file of key. The returned file type is nil if there is no such file.
func (d *DirectoryConfigProvider) lookup(key string) (FileType, string) {
	name := filepath.Join(d.base, filepath.FromSlash(key))
	for _, t := range d.types() {
		for _, ext := range t.Extensions() {
			fn := name + "." + ext
			if info, err := os.Stat(fn); err == nil && !info.IsDir() {
				return t, fn
			}
		}
	}

	return nil, ""
}

func (d *DirectoryConfigProvider) Has(key string) bool {
	ft, _ := d.lookup(key)
	return ft != nil
}

func (d *DirectoryConfigProvider) Unmarshal(key string, v interface{}) error {
	ft, fn := d.lookup(key)
	if ft == nil {
		return fmt.Errorf("config file not found for %s in %s", key, d.base)
	}

	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ft.Unmarshal(f, v); err != nil {
		return fmt.Errorf("invalid config file %s: %w", fn, err)
	}

	return nil
}

func (d *DirectoryConfigProvider) CanSave(key string) bool {
	return !d.readOnly
}

func (d *DirectoryConfigProvider) Save(key string, v interface{}) error {
	ft, fn := d.lookup(key)
	if ft == nil {
		types := d.types()
		if len(types) == 0 {
			return fmt.Errorf("no file type is registered for %s", d.base)
		}
		ft = types[0]
		fn = filepath.Join(d.base, filepath.FromSlash(key)) + "." + ft.Extensions()[0]
	}

	f, err := os.Create(fn)
	if err != nil {
		return err
	}

	if err := ft.Marshal(f, v); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
