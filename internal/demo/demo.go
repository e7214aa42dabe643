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

package demo

import (
	"net/http"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/event"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/relation"
	"github.com/alien-bunny/backoffice/lib/server"
	"github.com/alien-bunny/backoffice/services/admin"
	"gorm.io/gorm"
)

const (
	batchActivate   = "activate"
	batchDeactivate = "deactivate"
)

// Configure registers the catalog resources. The demo rows are inserted after the first migration.
func Configure(conf *config.Store, s *server.Server, conn *gorm.DB) error {
	core := admin.NewCore(conn, log.With(s.Logger, "service", "demo"))

	resources := []struct {
		slug string
		rc   admin.ResourceConfig
	}{
		{"products", &productAdmin{core: core}},
		{"categories", &categoryAdmin{core: core}},
		{"suppliers", &supplierAdmin{core: core}},
		{"tags", tagAdmin{}},
	}
	for _, r := range resources {
		if err := core.Add(r.slug, r.rc); err != nil {
			return err
		}
	}

	if err := s.RegisterService(core); err != nil {
		return err
	}

	if err := s.Events().Subscribe(admin.EventAfterBatch, event.SubscriberFunc(func(e event.Event) error {
		be := e.(*admin.AfterBatchEvent)
		log.Info(s.Logger).Log("msg", "batch action", "resource", be.Resource().Slug, "action", be.Action(), "count", len(be.IDs()))
		return nil
	})); err != nil {
		return err
	}

	return s.Events().Subscribe(backoffice.EventMigrate, event.SubscriberFunc(func(e event.Event) error {
		return Seed(conn)
	}))
}

type productAdmin struct {
	core *admin.Core
}

func (a *productAdmin) meta() *relation.Metadata {
	return a.core.Resource("products").Meta
}

func (a *productAdmin) Entity() interface{} {
	return &Product{}
}

func (a *productAdmin) Title() string {
	return "Products"
}

func (a *productAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	p := entity.(*Product)
	conn := backoffice.GetDB(r)

	return form.New("product",
		form.Text("sku", "SKU", &p.SKU, form.Required()),
		form.Text("name", "Name", &p.Name, form.Required()),
		form.TextArea("description", "Description", &p.Description),
		form.Float("price", "Price", &p.Price, form.Required()),
		form.Int("stock", "Stock", &p.Stock),
		form.Bool("active", "Active", &p.Active, form.Help("Inactive products are hidden from the shop.")),
		form.Date("released_at", "Released", &p.ReleasedAt),
		form.Relation(conn, a.meta(), p, "Category", "Category"),
		form.Relation(conn, a.meta(), p, "Supplier", "Supplier"),
		form.Relation(conn, a.meta(), p, "Tags", "Tags"),
	).Bound(p)
}

func (a *productAdmin) ListFields() []admin.ListField {
	return []admin.ListField{
		{Name: "ID", Label: "ID"},
		{Name: "SKU", Label: "SKU"},
		{Name: "Name", Label: "Name"},
		{Name: "Price", Label: "Price"},
		{Name: "Stock", Label: "Stock"},
		{Name: "Active", Label: "Active"},
		{Name: "Category", Label: "Category"},
	}
}

func (a *productAdmin) FilterForm(r *http.Request) *admin.Filter {
	conn := backoffice.GetDB(r)

	return admin.NewFilter().
		Text("Name", "Name").
		Equal("SKU", "SKU").
		Entity(conn, a.meta(), "Category", "Category").
		Entity(conn, a.meta(), "Supplier", "Supplier").
		Entity(conn, a.meta(), "Tags", "Tag")
}

func (a *productAdmin) BatchHandlers() map[string]admin.BatchHandler {
	return map[string]admin.BatchHandler{
		admin.BatchDelete: admin.DeleteByIDs,
		batchActivate:     setActive(true),
		batchDeactivate:   setActive(false),
	}
}

func (a *productAdmin) BatchActions() []string {
	return []string{batchActivate, batchDeactivate, admin.BatchDelete}
}

func (a *productAdmin) ConstraintMessages() map[string]string {
	return map[string]string{
		"idx_products_sku": "This SKU is already in use.",
	}
}

func setActive(active bool) admin.BatchHandler {
	return func(r *http.Request, res *admin.Resource, ids []interface{}) error {
		return backoffice.GetDB(r).
			Model(&Product{}).
			Where("id IN ?", ids).
			Update("active", active).
			Error
	}
}

type categoryAdmin struct {
	core *admin.Core
}

func (a *categoryAdmin) Entity() interface{} {
	return &Category{}
}

func (a *categoryAdmin) Title() string {
	return "Categories"
}

func (a *categoryAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	c := entity.(*Category)

	return form.New("category",
		form.Text("name", "Name", &c.Name, form.Required()),
		form.Relation(backoffice.GetDB(r), a.core.Resource("categories").Meta, c, "Products", "Products"),
	)
}

type supplierAdmin struct {
	core *admin.Core
}

func (a *supplierAdmin) Entity() interface{} {
	return &Supplier{}
}

func (a *supplierAdmin) Title() string {
	return "Suppliers"
}

func (a *supplierAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	s := entity.(*Supplier)

	return form.New("supplier",
		form.Text("name", "Name", &s.Name, form.Required()),
		form.Text("email", "E-mail", &s.Email),
		form.Relation(backoffice.GetDB(r), a.core.Resource("suppliers").Meta, s, "Products", "Products"),
	)
}

func (a *supplierAdmin) ListFields() []admin.ListField {
	return []admin.ListField{
		{Name: "ID", Label: "ID"},
		{Name: "Name", Label: "Name"},
		{Name: "Email", Label: "E-mail"},
	}
}

func (a *supplierAdmin) ConstraintMessages() map[string]string {
	return map[string]string{
		"idx_suppliers_name": "A supplier with this name already exists.",
	}
}

type tagAdmin struct{}

func (tagAdmin) Entity() interface{} {
	return &Tag{}
}

func (tagAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	t := entity.(*Tag)
	return form.New("tag", form.Text("name", "Name", &t.Name, form.Required()))
}
