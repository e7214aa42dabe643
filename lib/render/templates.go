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

package render

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/log"
)

// Templates is a set of HTML pages assembled from one or more file systems.
//
// Files whose base name starts with an underscore are partials (layouts,
// blocks). Every page is parsed together with all partials, so pages can
// call a layout and define the blocks it uses. A file in a later source
// replaces the file with the same path in an earlier one, which is how
// applications override the built-in pages.
type Templates struct {
	mtx     sync.RWMutex
	funcs   template.FuncMap
	sources []fs.FS
	pages   map[string]*template.Template
	watcher *config.Watcher
}

// NewTemplates creates a set from the sources. Call Load before executing pages.
func NewTemplates(funcs template.FuncMap, sources ...fs.FS) *Templates {
	t := &Templates{
		funcs: funcs,
		pages: make(map[string]*template.Template),
	}
	for _, source := range sources {
		t.AddSource(source)
	}

	return t
}

// AddSource adds a source that overrides the existing ones.
func (t *Templates) AddSource(source fs.FS) {
	if source == nil {
		return
	}

	t.mtx.Lock()
	t.sources = append(t.sources, source)
	t.mtx.Unlock()
}

// Funcs adds template functions. They are used from the next Load.
func (t *Templates) Funcs(funcs template.FuncMap) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.funcs == nil {
		t.funcs = make(template.FuncMap)
	}
	for k, v := range funcs {
		t.funcs[k] = v
	}
}

// Load parses every page. The previous pages stay in use if parsing fails.
func (t *Templates) Load() error {
	t.mtx.RLock()
	sources := append([]fs.FS(nil), t.sources...)
	funcs := t.funcs
	t.mtx.RUnlock()

	files := make(map[string][]byte)
	for _, source := range sources {
		err := fs.WalkDir(source, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".html" {
				return nil
			}
			content, err := fs.ReadFile(source, p)
			if err != nil {
				return err
			}
			files[p] = content
			return nil
		})
		if err != nil {
			return err
		}
	}

	var partials, pageNames []string
	for name := range files {
		if strings.HasPrefix(path.Base(name), "_") {
			partials = append(partials, name)
		} else {
			pageNames = append(pageNames, name)
		}
	}
	sort.Strings(partials)

	// the root is never executed, only cloned, so its name must not be a page name
	base := template.New("").Funcs(funcs)
	for _, partial := range partials {
		if _, err := base.New(partial).Parse(string(files[partial])); err != nil {
			return fmt.Errorf("%s: %w", partial, err)
		}
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		page, err := base.Clone()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, err := page.New(name).Parse(string(files[name])); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		pages[name] = page
	}

	t.mtx.Lock()
	t.pages = pages
	t.mtx.Unlock()

	return nil
}

// Has tells if a page exists.
func (t *Templates) Has(name string) bool {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	_, found := t.pages[name]

	return found
}

// Execute renders a page.
func (t *Templates) Execute(w io.Writer, name string, data interface{}) error {
	t.mtx.RLock()
	page, found := t.pages[name]
	t.mtx.RUnlock()

	if !found {
		return fmt.Errorf("template %q not found", name)
	}

	return page.ExecuteTemplate(w, name, data)
}

// Watch reloads the set when a file changes under dir.
func (t *Templates) Watch(dir string, logger log.Logger) error {
	var dirs []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w, err := config.NewWatcher(nil, logger, dirs...)
	if err != nil {
		return err
	}

	w.OnChange(func(name string) {
		if err := t.Load(); err != nil {
			log.Error(logger).Log("msg", "failed to reload templates", "file", name, "error", err)
			return
		}
		log.Info(logger).Log("msg", "templates reloaded", "file", name)
	})

	t.mtx.Lock()
	t.watcher = w
	t.mtx.Unlock()

	return nil
}

// Close stops watching.
func (t *Templates) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.watcher == nil {
		return nil
	}

	err := t.watcher.Close()
	t.watcher = nil

	return err
}

// DirFS returns the directory as a source, or nil if it does not exist.
func DirFS(dir string) fs.FS {
	if dir == "" {
		return nil
	}

	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil
	}

	return os.DirFS(dir)
}
