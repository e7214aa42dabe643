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

package admin_test

import (
	"net/http"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/services/admin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type noteAdmin struct {
	fields   []admin.ListField
	handlers map[string]admin.BatchHandler
	offered  []string
}

func (noteAdmin) Entity() interface{} {
	return &abtest.Note{}
}

func (noteAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	return form.New("note")
}

func (a noteAdmin) ListFields() []admin.ListField {
	if a.fields == nil {
		return []admin.ListField{{Name: "ID", Label: "ID"}, {Name: "Text", Label: "Text"}}
	}
	return a.fields
}

func (a noteAdmin) BatchHandlers() map[string]admin.BatchHandler {
	if a.handlers == nil {
		return map[string]admin.BatchHandler{admin.BatchDelete: admin.DeleteByIDs}
	}
	return a.handlers
}

func (a noteAdmin) BatchActions() []string {
	if a.offered == nil {
		return []string{admin.BatchDelete}
	}
	return a.offered
}

type stringlessNoteAdmin struct{}

func (stringlessNoteAdmin) Entity() interface{} {
	return &abtest.Note{}
}

func (stringlessNoteAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	return form.New("note")
}

type nilAdmin struct{}

func (nilAdmin) Entity() interface{} {
	return nil
}

func (nilAdmin) BuildUpdateForm(r *http.Request, entity interface{}) *form.Form {
	return nil
}

func expectConfigurationError(err error, reason string) {
	Expect(err).To(HaveOccurred())

	var ce *errors.ConfigurationError
	Expect(errors.As(err, &ce)).To(BeTrue())
	Expect(ce.Reason).To(ContainSubstring(reason))
}

var _ = Describe("Core", func() {
	var c *admin.Core

	BeforeEach(func() {
		c = admin.NewCore(abtest.OpenDB(), abtest.GetLogger())
	})

	It("registers a resource", func() {
		Expect(c.Add("notes", noteAdmin{})).To(Succeed())

		res := c.Resource("notes")
		Expect(res).NotTo(BeNil())
		Expect(res.Title()).To(Equal("notes"))
		Expect(res.RouteName(admin.ActionUpdate)).To(Equal("admin_notes_update"))
		Expect(res.Template(admin.ActionList)).To(Equal("admin/list.html"))
		Expect(res.BatchActions()).To(Equal([]string{admin.BatchDelete}))
		Expect(c.ResourceFor(&abtest.Note{})).To(BeIdenticalTo(res))
		Expect(c.ResourceFor(abtest.Note{})).To(BeIdenticalTo(res))
		Expect(c.ResourceFor(&abtest.Tag{})).To(BeNil())
		Expect(c.DBModels()).To(HaveLen(1))
	})

	It("offers the default delete batch action", func() {
		Expect(c.Add("tags", tagAdmin{})).To(Succeed())

		res := c.Resource("tags")
		Expect(res.BatchActions()).To(Equal([]string{admin.BatchDelete}))
		_, found := res.BatchHandler(admin.BatchDelete)
		Expect(found).To(BeTrue())
		_, found = res.BatchHandler("discount")
		Expect(found).To(BeFalse())
	})

	It("uses the String list field by default", func() {
		Expect(c.Add("tags", tagAdmin{})).To(Succeed())
		Expect(c.Resource("tags").ListFields()).To(Equal([]admin.ListField{
			{Name: "ID", Label: "ID"},
			{Name: admin.StringField, Label: "Value"},
		}))
	})

	It("rejects malformed slugs", func() {
		expectConfigurationError(c.Add("Bad Slug", tagAdmin{}), "invalid slug")
		expectConfigurationError(c.Add("", tagAdmin{}), "invalid slug")
	})

	It("rejects a missing entity", func() {
		expectConfigurationError(c.Add("nothing", nilAdmin{}), "missing entity")
	})

	It("rejects duplicates", func() {
		Expect(c.Add("tags", tagAdmin{})).To(Succeed())
		expectConfigurationError(c.Add("tags", categoryAdmin{}), "already registered")
		expectConfigurationError(c.Add("labels", tagAdmin{}), "already registered")
	})

	It("requires fmt.Stringer for the default list fields", func() {
		expectConfigurationError(c.Add("notes", stringlessNoteAdmin{}), "fmt.Stringer")
	})

	It("rejects unknown list fields", func() {
		err := c.Add("notes", noteAdmin{fields: []admin.ListField{{Name: "Missing", Label: "Missing"}}})
		expectConfigurationError(err, "unknown list field")
	})

	It("rejects offered batch actions without a handler", func() {
		err := c.Add("notes", noteAdmin{offered: []string{"archive"}})
		expectConfigurationError(err, "archive")
	})

	It("ignores handlers that are not offered", func() {
		err := c.Add("notes", noteAdmin{
			handlers: map[string]admin.BatchHandler{
				admin.BatchDelete: admin.DeleteByIDs,
				"archive":         admin.DeleteByIDs,
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Resource("notes").BatchActions()).To(Equal([]string{admin.BatchDelete}))
	})

	It("keeps the order of registration", func() {
		Expect(c.Add("tags", tagAdmin{})).To(Succeed())
		Expect(c.Add("notes", noteAdmin{})).To(Succeed())

		resources := c.Resources()
		Expect(resources).To(HaveLen(2))
		Expect(resources[0].Slug).To(Equal("tags"))
		Expect(resources[1].Slug).To(Equal("notes"))
	})

	It("cannot add resources after registration", func() {
		expectConfigurationError(core.Add("notes", noteAdmin{}), "already registered")
	})

	It("generates no URLs before registration", func() {
		Expect(c.Add("tags", tagAdmin{})).To(Succeed())
		_, err := c.URL(c.Resource("tags").RouteName(admin.ActionList), nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Introspector", func() {
	var i *admin.Introspector

	BeforeEach(func() {
		i = core.Introspect(nil)
	})

	It("lists the actions of a resource", func() {
		Expect(i.Actions(&abtest.Product{})).To(Equal(admin.Actions()))
		Expect(i.Actions("products")).To(Equal(admin.Actions()))
		Expect(i.EntryActions(&abtest.Product{})).To(Equal([]string{admin.ActionUpdate, admin.ActionDelete}))
		Expect(i.GlobalActions("tags")).To(Equal([]string{admin.ActionList, admin.ActionCreate}))
		Expect(i.HasAction(admin.ActionExport, "products")).To(BeTrue())
		Expect(i.HasAction("frobnicate", "products")).To(BeFalse())
	})

	It("has no actions for unknown resources", func() {
		Expect(i.Actions(&abtest.Note{})).To(BeEmpty())
		Expect(i.Actions("missing")).To(BeEmpty())
		Expect(i.Actions(nil)).To(BeEmpty())
		Expect(i.Route(admin.ActionList, &abtest.Note{})).To(BeEmpty())
		Expect(i.Slug(&abtest.Note{})).To(BeEmpty())
	})

	It("knows the identifier and the slug", func() {
		Expect(i.Identifier(&abtest.Product{})).To(Equal("ID"))
		Expect(i.Slug(&abtest.Category{})).To(Equal("categories"))
		Expect(i.CurrentAction()).To(BeEmpty())
	})

	It("names the routes", func() {
		Expect(i.Route(admin.ActionUpdate, &abtest.Product{})).To(Equal("admin_products_update"))
		Expect(i.Route(admin.ActionDashboard, nil)).To(Equal(admin.DashboardRoute))
	})

	It("generates URLs", func() {
		u, err := i.URL(admin.ActionUpdate, &abtest.Product{ID: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal("/admin/products/update/5"))

		u, err = i.URL(admin.ActionList, "products", map[string]string{"page": "2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal("/admin/products?page=2"))

		u, err = i.URL(admin.ActionList, "tags", "sort", "Name", "direction", "desc")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal("/admin/tags?direction=desc&sort=Name"))

		u, err = i.URL(admin.ActionDashboard)
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(Equal("/admin"))
	})

	It("fails for actions it cannot route", func() {
		_, err := i.URL(admin.ActionUpdate, &abtest.Note{ID: 1})
		Expect(err).To(HaveOccurred())

		_, err = i.URL(admin.ActionUpdate, &abtest.Product{})
		Expect(err).To(HaveOccurred())
	})
})
