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
	"html/template"
	"net/http"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
)

// View is the data of every admin page.
type View struct {
	Admin       *Introspector
	Preferences Preferences
	Resource    *Resource
	Resources   []*Resource
	Action      string
	Flashes     []session.Flash

	// Form is the form of the create, update, delete and batch pages.
	Form   *form.View
	Object interface{}

	List         *List
	Filter       *form.View
	Export       *form.View
	BatchActions []string

	// BatchAction and BatchCount describe the batch being confirmed.
	BatchAction string
	BatchCount  int

	translate func(string, map[string]string) string
}

func (c *Core) newView(r *http.Request, res *Resource, action string) *View {
	conf := c.Config()

	return &View{
		Admin: c.Introspect(r),
		Preferences: Preferences{
			TitleText: conf.TitleText,
			TitleLogo: conf.TitleLogo,
		},
		Resource:  res,
		Resources: c.Resources(),
		Action:    action,
		Flashes:   backoffice.GetSession(r).Flashes(),
		translate: translationmw.GetTranslate(r),
	}
}

// T translates a label of the page.
func (v *View) T(message string) template.HTML {
	if v.translate == nil {
		return template.HTML(template.HTMLEscapeString(message))
	}

	return template.HTML(v.translate(message, nil))
}

// Title returns the title of the page.
func (v *View) Title() string {
	if v.Resource == nil {
		return v.Preferences.TitleText
	}

	return v.Resource.Title()
}
