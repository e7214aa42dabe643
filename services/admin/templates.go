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
	"embed"
	"html/template"
	"io/fs"
	"strings"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/render"
)

//go:embed templates
var embedded embed.FS

var funcs = template.FuncMap{
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
}

// newTemplates loads the built-in pages, overridden by the files of dir.
func newTemplates(dir string) (*render.Templates, error) {
	builtin, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}

	sources := []fs.FS{builtin}
	if dir != "" {
		sources = append(sources, render.DirFS(dir))
	}

	t := render.NewTemplates(funcs, sources...)
	if err := t.Load(); err != nil {
		return nil, errors.NewConfigurationError("admin templates", err.Error())
	}

	return t, nil
}

func pageActions() []string {
	return []string{ActionList, ActionCreate, ActionUpdate, ActionDelete, ActionBatch}
}

func checkTemplates(t *render.Templates, resources []*Resource) error {
	if !t.Has(dashboardTemplate) {
		return errors.NewConfigurationError("admin templates", "missing %s", dashboardTemplate)
	}

	for _, res := range resources {
		for _, action := range pageActions() {
			if name := res.Template(action); !t.Has(name) {
				return errors.NewConfigurationError(res.Slug, "missing template %s for %s", name, action)
			}
		}
	}

	return nil
}

const dashboardTemplate = "admin/dashboard.html"
