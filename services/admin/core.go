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
	"context"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"sync"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/event"
	"github.com/alien-bunny/backoffice/lib/export"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/relation"
	"github.com/alien-bunny/backoffice/lib/render"
	"github.com/alien-bunny/backoffice/lib/server"
	"gorm.io/gorm"
)

// StringField is the list column that shows the fmt.Stringer value of an entity.
const StringField = "String"

// DashboardRoute is the route name of the dashboard.
const DashboardRoute = "admin_dashboard"

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

var _ server.Service = &Core{}

type routeInfo struct {
	slug   string
	action string
}

// Core is the registry of the admin resources, and the service that serves them.
type Core struct {
	conn     *gorm.DB
	logger   log.Logger
	accessor *relation.Accessor
	exporter *export.Exporter

	mtx        sync.RWMutex
	resources  map[string]*Resource
	slugs      []string
	byType     map[reflect.Type]*Resource
	routes     map[string]routeInfo
	server     *server.Server
	config     Config
	templates  *render.Templates
	archiver   export.Archiver
	registered bool
}

// NewCore creates an empty registry. conn is used to parse the models.
func NewCore(conn *gorm.DB, logger log.Logger) *Core {
	return &Core{
		conn:      conn,
		logger:    log.With(logger, "component", component),
		accessor:  relation.NewAccessor(conn),
		exporter:  export.NewExporter(),
		resources: make(map[string]*Resource),
		byType:    make(map[reflect.Type]*Resource),
		routes:    make(map[string]routeInfo),
		config:    DefaultConfig(),
	}
}

// Add registers a resource under a slug.
//
// The configuration is checked right away: a malformed or duplicate slug, an
// entity that is not a gorm model, unknown list fields, or an offered batch
// action without a handler are errors.
func (c *Core) Add(slug string, rc ResourceConfig) error {
	if !slugPattern.MatchString(slug) {
		return errors.NewConfigurationError(slug, "invalid slug, it must match %s", slugPattern.String())
	}

	if rc == nil || rc.Entity() == nil {
		return errors.NewConfigurationError(slug, "missing entity")
	}

	meta, err := c.accessor.For(rc.Entity())
	if err != nil {
		return err
	}

	if meta.PrimaryField() == "" {
		return errors.NewConfigurationError(slug, "%s has no primary key", meta.Type)
	}

	res := &Resource{
		Slug:   slug,
		Config: rc,
		Meta:   meta,
		core:   c,
		title:  slug,
	}

	if tp, ok := rc.(TitleProvider); ok && tp.Title() != "" {
		res.title = tp.Title()
	}

	if res.listFields, err = listFields(slug, meta, rc); err != nil {
		return err
	}

	if res.handlers, res.batchActions, err = batchActions(slug, rc); err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.registered {
		return errors.NewConfigurationError(slug, "the admin service is already registered")
	}

	if _, found := c.resources[slug]; found {
		return errors.NewConfigurationError(slug, "slug is already registered")
	}

	if other, found := c.byType[meta.Type]; found {
		return errors.NewConfigurationError(slug, "%s is already registered as %s", meta.Type, other.Slug)
	}

	c.resources[slug] = res
	c.slugs = append(c.slugs, slug)
	c.byType[meta.Type] = res

	return nil
}

func listFields(slug string, meta *relation.Metadata, rc ResourceConfig) ([]ListField, error) {
	fields := []ListField{
		{Name: meta.PrimaryField(), Label: "ID"},
		{Name: StringField, Label: "Value"},
	}
	if lfp, ok := rc.(ListFieldsProvider); ok {
		fields = lfp.ListFields()
	}

	if len(fields) == 0 {
		return nil, errors.NewConfigurationError(slug, "no list fields")
	}

	for _, f := range fields {
		switch {
		case f.Name == StringField:
			if !reflect.PtrTo(meta.Type).Implements(stringerType) {
				return nil, errors.NewConfigurationError(slug, "%s must implement fmt.Stringer to be listed by its String() value", meta.Type)
			}
		case meta.Association(f.Name) != nil:
		default:
			if _, found := meta.Column(f.Name); !found {
				return nil, errors.NewConfigurationError(slug, "unknown list field %s", f.Name)
			}
		}
	}

	return append([]ListField(nil), fields...), nil
}

func batchActions(slug string, rc ResourceConfig) (map[string]BatchHandler, []string, error) {
	handlers := map[string]BatchHandler{
		BatchDelete: DeleteByIDs,
	}
	if bhp, ok := rc.(BatchHandlerProvider); ok {
		handlers = make(map[string]BatchHandler)
		for name, h := range bhp.BatchHandlers() {
			handlers[name] = h
		}
	}

	var offered []string
	if bap, ok := rc.(BatchActionsProvider); ok {
		offered = append(offered, bap.BatchActions()...)
	} else {
		for name := range handlers {
			offered = append(offered, name)
		}
		sort.Strings(offered)
	}

	for _, name := range offered {
		if handlers[name] == nil {
			return nil, nil, errors.NewConfigurationError(slug, "batch action %s has no handler", name)
		}
	}

	return handlers, offered, nil
}

// Resource returns a resource by its slug.
func (c *Core) Resource(slug string) *Resource {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.resources[slug]
}

// ResourceFor returns the resource of an entity, by the entity's type.
func (c *Core) ResourceFor(obj interface{}) *Resource {
	t := reflect.TypeOf(obj)
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.byType[t]
}

// Resources returns the resources in registration order.
func (c *Core) Resources() []*Resource {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	resources := make([]*Resource, len(c.slugs))
	for i, slug := range c.slugs {
		resources[i] = c.resources[slug]
	}

	return resources
}

// Config returns the loaded configuration. Before Register it returns the defaults.
func (c *Core) Config() Config {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.config
}

// SetArchiver sets where the exports are archived. It replaces the archiver of the configuration.
func (c *Core) SetArchiver(a export.Archiver) {
	c.mtx.Lock()
	c.archiver = a
	c.mtx.Unlock()
}

func (c *Core) getArchiver() export.Archiver {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.archiver
}

// Templates returns the template set of the pages.
func (c *Core) Templates() *render.Templates {
	return c.templates
}

func (c *Core) Name() string {
	return "admin"
}

func (c *Core) ConfigSchema() map[string]reflect.Type {
	return map[string]reflect.Type{
		"admin": reflect.TypeOf(Config{}),
	}
}

// DBModels returns the entities of the resources, so a master server migrates their tables.
func (c *Core) DBModels() []interface{} {
	var models []interface{}
	for _, res := range c.Resources() {
		models = append(models, res.Meta.New())
	}

	return models
}

// Register loads the configuration and the templates, and adds the routes of every resource.
func (c *Core) Register(s *server.Server) error {
	conf := c.Config()
	if err := s.Config().Load("admin", &conf); err != nil {
		return err
	}
	conf = conf.withDefaults()

	templates, err := newTemplates(conf.Templates)
	if err != nil {
		return err
	}

	if conf.Watch && conf.Templates != "" {
		if err := templates.Watch(conf.Templates, c.logger); err != nil {
			return err
		}
	}

	if err := s.Events().Subscribe(backoffice.EventReload, event.SubscriberFunc(func(e event.Event) error {
		return templates.Load()
	})); err != nil {
		return err
	}

	resources := c.Resources()
	if err := checkTemplates(templates, resources); err != nil {
		return err
	}

	c.mtx.Lock()
	c.config = conf
	c.templates = templates
	c.server = s
	c.registered = true
	if c.archiver == nil && conf.Archive.Enabled() {
		archiver, err := export.NewS3Archiver(context.Background(), conf.Archive)
		if err != nil {
			c.mtx.Unlock()
			return err
		}
		c.archiver = archiver
	}
	c.mtx.Unlock()

	log.Info(c.logger).Log("category", categoryConfig, "resources", len(resources), "prefix", conf.Prefix)

	c.handle(s, DashboardRoute, routeInfo{action: ActionDashboard}, conf.Prefix, c.dashboard, http.MethodGet)

	for _, res := range resources {
		base := conf.Prefix + "/" + res.Slug
		paths := map[string]string{
			ActionList:   base,
			ActionCreate: base + "/create",
			ActionRead:   base + "/show/:id",
			ActionUpdate: base + "/update/:id",
			ActionDelete: base + "/delete/:id",
			ActionExport: base + "/export",
			ActionBatch:  base + "/batch",
		}
		methods := map[string][]string{
			ActionList:   {http.MethodGet},
			ActionCreate: {http.MethodGet, http.MethodPost},
			ActionRead:   {http.MethodGet},
			ActionUpdate: {http.MethodGet, http.MethodPost},
			ActionDelete: {http.MethodGet, http.MethodPost},
			ActionExport: {http.MethodPost},
			ActionBatch:  {http.MethodPost},
		}
		handlers := map[string]func(http.ResponseWriter, *http.Request, *Resource){
			ActionList:   c.list,
			ActionCreate: c.create,
			ActionRead:   c.read,
			ActionUpdate: c.update,
			ActionDelete: c.delete,
			ActionExport: c.export,
			ActionBatch:  c.batch,
		}

		for _, action := range Actions() {
			h := handlers[action]
			c.handle(s, res.RouteName(action), routeInfo{slug: res.Slug, action: action}, paths[action], func(w http.ResponseWriter, r *http.Request) {
				h(w, r, res)
			}, methods[action]...)
		}
	}

	return nil
}

func (c *Core) handle(s *server.Server, name string, info routeInfo, path string, h http.HandlerFunc, methods ...string) {
	c.mtx.Lock()
	c.routes[name] = info
	c.mtx.Unlock()

	for _, method := range methods {
		s.HandleNamed(name, method, path, backoffice.WrapHandlerFunc(h))
	}
}

func (c *Core) route(name string) (routeInfo, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	info, found := c.routes[name]

	return info, found
}

// URL generates the path of a named admin route.
func (c *Core) URL(name string, params map[string]string) (string, error) {
	c.mtx.RLock()
	s := c.server
	c.mtx.RUnlock()

	if s == nil {
		return "", errors.New("the admin service is not registered")
	}

	return s.URL(name, params)
}

// Resource is a registered entity type with its configuration.
type Resource struct {
	Slug   string
	Config ResourceConfig
	Meta   *relation.Metadata

	core         *Core
	title        string
	listFields   []ListField
	handlers     map[string]BatchHandler
	batchActions []string
}

// Title returns the display name of the resource.
func (res *Resource) Title() string {
	return res.title
}

// Core returns the registry of the resource.
func (res *Resource) Core() *Core {
	return res.core
}

// ListFields returns the columns of the list page.
func (res *Resource) ListFields() []ListField {
	return append([]ListField(nil), res.listFields...)
}

// BatchActions returns the offered batch actions.
func (res *Resource) BatchActions() []string {
	return append([]string(nil), res.batchActions...)
}

// BatchHandler returns the handler of an offered batch action.
func (res *Resource) BatchHandler(action string) (BatchHandler, bool) {
	for _, name := range res.batchActions {
		if name == action {
			h := res.handlers[name]
			return h, h != nil
		}
	}

	return nil, false
}

// RouteName returns the route name of an action, e.g. admin_product_list.
func (res *Resource) RouteName(action string) string {
	return "admin_" + res.Slug + "_" + action
}

// Template returns the template of an action.
func (res *Resource) Template(action string) string {
	if tp, ok := res.Config.(TemplateProvider); ok {
		if t := tp.TemplateFor(action); t != "" {
			return t
		}
	}

	return "admin/" + action + ".html"
}

// URL generates the path of an action of the resource.
func (res *Resource) URL(action string, params map[string]string) (string, error) {
	return res.core.URL(res.RouteName(action), params)
}

func (res *Resource) updateForm(r *http.Request, entity interface{}) *form.Form {
	return res.Config.BuildUpdateForm(r, entity)
}

func (res *Resource) createForm(r *http.Request, entity interface{}) *form.Form {
	if cfb, ok := res.Config.(CreateFormBuilder); ok {
		return cfb.BuildCreateForm(r, entity)
	}

	return res.Config.BuildUpdateForm(r, entity)
}

// ID returns the identifier of an entity of the resource as a string.
func (res *Resource) ID(obj interface{}) string {
	id, ok := res.Meta.PrimaryValue(obj)
	if !ok {
		return ""
	}

	return fmt.Sprint(id)
}
