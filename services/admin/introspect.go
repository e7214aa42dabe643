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
	"net/http"
	"reflect"

	"github.com/alien-bunny/backoffice/lib/server"
)

// Introspector answers questions about resources and their actions for the current request.
//
// Templates get it as .Admin.
type Introspector struct {
	core *Core
	r    *http.Request
}

// Introspect binds an Introspector to a request.
func (c *Core) Introspect(r *http.Request) *Introspector {
	return &Introspector{
		core: c,
		r:    r,
	}
}

func (i *Introspector) current() (routeInfo, bool) {
	if i.r == nil {
		return routeInfo{}, false
	}

	return i.core.route(server.GetRouteName(i.r))
}

// resource resolves obj to a resource: by type, by slug when obj is a string,
// or by the current route when obj is nil.
func (i *Introspector) resource(obj interface{}) *Resource {
	switch o := obj.(type) {
	case nil:
		if info, ok := i.current(); ok && info.slug != "" {
			return i.core.Resource(info.slug)
		}
		return nil
	case *Resource:
		return o
	case string:
		return i.core.Resource(o)
	}

	return i.core.ResourceFor(obj)
}

// Actions returns the actions of the resource of obj. An unknown resource has no actions.
func (i *Introspector) Actions(obj interface{}) []string {
	if i.resource(obj) == nil {
		return nil
	}

	return Actions()
}

// EntryActions returns the actions that work on one entity.
func (i *Introspector) EntryActions(obj interface{}) []string {
	if i.resource(obj) == nil {
		return nil
	}

	return []string{ActionUpdate, ActionDelete}
}

// GlobalActions returns the actions that do not need an entity.
func (i *Introspector) GlobalActions(obj interface{}) []string {
	if i.resource(obj) == nil {
		return nil
	}

	return []string{ActionList, ActionCreate}
}

// CurrentAction returns the action of the request, or an empty string outside the admin.
func (i *Introspector) CurrentAction() string {
	info, _ := i.current()
	return info.action
}

// HasAction tells if the resource of obj has an action.
func (i *Introspector) HasAction(action string, obj interface{}) bool {
	for _, a := range i.Actions(obj) {
		if a == action {
			return true
		}
	}

	return false
}

// Identifier returns the name of the identifier field of the resource of obj.
func (i *Introspector) Identifier(obj interface{}) string {
	res := i.resource(obj)
	if res == nil {
		return ""
	}

	return res.Meta.PrimaryField()
}

// Slug returns the slug of the resource of obj.
func (i *Introspector) Slug(obj interface{}) string {
	res := i.resource(obj)
	if res == nil {
		return ""
	}

	return res.Slug
}

// Route returns the route name of an action of the resource of obj, or an empty string.
func (i *Introspector) Route(action string, obj interface{}) string {
	if action == ActionDashboard {
		return DashboardRoute
	}

	res := i.resource(obj)
	if res == nil || !i.HasAction(action, res) {
		return ""
	}

	return res.RouteName(action)
}

// URL generates the path of an action.
//
// The params are entities, slugs or key-value pairs. The first entity (or
// slug) selects the resource, and an entity's identifier becomes the "id"
// parameter. Without one the resource of the current request is used.
func (i *Introspector) URL(action string, params ...interface{}) (string, error) {
	var (
		subject interface{}
		values  = make(map[string]string)
	)

	for n := 0; n < len(params); n++ {
		p := params[n]
		switch v := p.(type) {
		case map[string]string:
			for k, val := range v {
				values[k] = val
			}
			continue
		case string:
			if n+1 < len(params) && i.core.Resource(v) == nil {
				values[v] = fmt.Sprint(params[n+1])
				n++
				continue
			}
			if subject == nil {
				subject = v
			}
			continue
		}

		if subject == nil && isEntity(p) {
			subject = p
			if res := i.core.ResourceFor(p); res != nil {
				if id := res.ID(p); id != "" {
					values["id"] = id
				}
			}
		}
	}

	route := i.Route(action, subject)
	if route == "" {
		return "", fmt.Errorf("no %s action for %v", action, describe(subject))
	}

	return i.core.URL(route, values)
}

func isEntity(v interface{}) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

func describe(subject interface{}) string {
	if subject == nil {
		return "the current request"
	}

	return fmt.Sprintf("%T", subject)
}
