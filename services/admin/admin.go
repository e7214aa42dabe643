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

// Package admin generates back-office pages for gorm models.
//
// A resource is registered on a Core under a slug with a ResourceConfig that
// builds its forms. The resource gets list, create, read, update, delete,
// export and batch pages under the admin prefix (/admin by default). Optional
// behaviour is added by implementing the capability interfaces of this
// package on the ResourceConfig value.
package admin

import (
	"net/http"

	"github.com/alien-bunny/backoffice/lib/export"
	"github.com/alien-bunny/backoffice/lib/form"
)

const (
	ActionList   = "list"
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionBatch  = "batch"

	// ActionDashboard is the page of the admin prefix, it is not bound to a resource.
	ActionDashboard = "dashboard"

	// ButtonSaveAndAdd makes the create page come back empty after saving.
	ButtonSaveAndAdd = "btn_save_and_add"
	// ButtonSaveAndList makes the update page redirect to the list after saving.
	ButtonSaveAndList = "btn_save_and_list"

	// BatchDelete is the name of the default batch action.
	BatchDelete = "delete"

	DefaultPrefix  = "/admin"
	DefaultPerPage = 10
	// PageRange is the number of page links shown on each side of the current page.
	PageRange = 4
)

const (
	component = "admin"

	categoryPersist = "persist"
	categoryBatch   = "batch"
	categoryExport  = "export"
	categoryConfig  = "config"
)

// Actions returns every resource action in the order they are registered.
func Actions() []string {
	return []string{
		ActionList,
		ActionCreate,
		ActionRead,
		ActionUpdate,
		ActionDelete,
		ActionExport,
		ActionBatch,
	}
}

// ResourceConfig is the minimum an application provides for a resource.
type ResourceConfig interface {
	// Entity returns a prototype of the model, e.g. &Product{}.
	Entity() interface{}
	// BuildUpdateForm creates the edit form of entity. The fields must point into entity.
	BuildUpdateForm(r *http.Request, entity interface{}) *form.Form
}

// CreateFormBuilder gives the create page its own form. Without it the update form is used.
type CreateFormBuilder interface {
	BuildCreateForm(r *http.Request, entity interface{}) *form.Form
}

// TemplateProvider overrides the page templates.
//
// An empty return value keeps the default template of the action.
type TemplateProvider interface {
	TemplateFor(action string) string
}

// ListField is a column of the list page.
//
// Name is a field of the entity, or "String" for its fmt.Stringer value.
type ListField struct {
	Name  string
	Label string
}

// ListFieldsProvider sets the columns of the list page.
type ListFieldsProvider interface {
	ListFields() []ListField
}

// BatchHandler runs a batch action on the selected identifiers.
type BatchHandler func(r *http.Request, res *Resource, ids []interface{}) error

// BatchHandlerProvider replaces the batch actions of a resource.
type BatchHandlerProvider interface {
	BatchHandlers() map[string]BatchHandler
}

// BatchActionsProvider restricts and orders the offered batch actions.
type BatchActionsProvider interface {
	BatchActions() []string
}

// FilterProvider adds a filter form to the list page.
type FilterProvider interface {
	FilterForm(r *http.Request) *Filter
}

// TitleProvider names the resource on the pages. The default title is the slug.
type TitleProvider interface {
	Title() string
}

// Config is the "admin" configuration section.
type Config struct {
	Prefix    string          `json:"prefix" yaml:"prefix" toml:"prefix"`
	TitleText string          `json:"title_text" yaml:"title_text" toml:"title_text"`
	TitleLogo string          `json:"title_logo" yaml:"title_logo" toml:"title_logo"`
	Templates string          `json:"templates" yaml:"templates" toml:"templates"`
	Watch     bool            `json:"watch" yaml:"watch" toml:"watch"`
	PerPage   int             `json:"per_page" yaml:"per_page" toml:"per_page"`
	Archive   export.S3Config `json:"archive" yaml:"archive" toml:"archive"`
}

// DefaultConfig returns the configuration used for the missing values.
func DefaultConfig() Config {
	return Config{
		Prefix:    DefaultPrefix,
		TitleText: "Administration",
		PerPage:   DefaultPerPage,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	if c.TitleText == "" {
		c.TitleText = d.TitleText
	}
	if c.PerPage <= 0 {
		c.PerPage = d.PerPage
	}

	return c
}

// Preferences are the configured values every admin page shows.
type Preferences struct {
	TitleText string
	TitleLogo string
}
