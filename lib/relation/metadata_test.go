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

package relation_test

import (
	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/relation"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func names(fields []relation.Field) []string {
	n := make([]string, len(fields))
	for i, f := range fields {
		n[i] = f.Name
	}
	return n
}

var _ = Describe("Metadata", func() {
	var (
		conn     *gorm.DB
		accessor *relation.Accessor
	)

	BeforeEach(func() {
		conn = abtest.OpenDB()
		accessor = relation.NewAccessor(conn)
	})

	It("rejects values that are not struct pointers", func() {
		for _, v := range []interface{}{abtest.Product{}, "product", nil} {
			_, err := accessor.For(v)
			var cerr *errors.ConfigurationError
			Expect(errors.As(err, &cerr)).To(BeTrue())
		}
	})

	It("caches the metadata per type", func() {
		a, err := accessor.For(&abtest.Product{})
		Expect(err).NotTo(HaveOccurred())
		b, err := accessor.For(&abtest.Product{Name: "other"})
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(BeIdenticalTo(b))
	})

	It("describes the fields and the relations", func() {
		meta, err := accessor.For(&abtest.Product{})
		Expect(err).NotTo(HaveOccurred())

		Expect(names(meta.Fields())).To(Equal([]string{"ID", "Name", "Price", "Available", "CreatedAt", "CategoryID"}))
		Expect(meta.Table()).To(Equal("products"))
		Expect(meta.PrimaryField()).To(Equal("ID"))
		Expect(meta.PrimaryColumn()).To(Equal("id"))

		col, ok := meta.Column("CategoryID")
		Expect(ok).To(BeTrue())
		Expect(col).To(Equal("category_id"))
		col, ok = meta.Column("created_at")
		Expect(ok).To(BeTrue())
		Expect(col).To(Equal("created_at"))
		_, ok = meta.Column("Tags")
		Expect(ok).To(BeFalse())

		category := meta.Association("Category")
		Expect(category.Kind).To(Equal(relation.KindBelongsTo))
		Expect(category.Owning).To(BeTrue())
		Expect(category.MappedBy).To(BeEmpty())

		tags := meta.Association("Tags")
		Expect(tags.Kind).To(Equal(relation.KindMany2Many))
		Expect(tags.Owning).To(BeTrue())
		Expect(tags.IsCollection()).To(BeTrue())

		export := meta.ExportFields()
		Expect(names(export)).To(Equal([]string{"ID", "Name", "Price", "Available", "CreatedAt", "CategoryID", "Category", "Tags"}))
		Expect(export[7].Type).To(Equal(relation.FieldTypeObject))
	})

	It("only lists the relations declared on the type", func() {
		_, err := accessor.For(&abtest.Category{})
		Expect(err).NotTo(HaveOccurred())
		meta, err := accessor.For(&abtest.Product{})
		Expect(err).NotTo(HaveOccurred())

		var assocs []string
		for _, a := range meta.Associations() {
			assocs = append(assocs, a.Name)
		}
		Expect(assocs).To(Equal([]string{"Category", "Tags"}))
		Expect(meta.Association("Products")).To(BeNil())
	})

	It("resolves the inverse sides", func() {
		category, err := accessor.For(&abtest.Category{})
		Expect(err).NotTo(HaveOccurred())
		products := category.Association("Products")
		Expect(products.Kind).To(Equal(relation.KindHasMany))
		Expect(products.Owning).To(BeFalse())
		Expect(products.MappedBy).To(Equal("Category"))
		Expect(products.Target().Type.Name()).To(Equal("Product"))

		author, err := accessor.For(&abtest.Author{})
		Expect(err).NotTo(HaveOccurred())
		Expect(author.Association("Profile").Kind).To(Equal(relation.KindHasOne))
		Expect(author.Association("Profile").MappedBy).To(Equal("AuthorID"))
		Expect(author.Association("Profile").IsCollection()).To(BeFalse())
		Expect(author.Association("Notes").MappedBy).To(Equal("AuthorID"))
	})

	It("returns related objects as pointers", func() {
		meta, err := accessor.For(&abtest.Author{})
		Expect(err).NotTo(HaveOccurred())

		a := &abtest.Author{Notes: []abtest.Note{{Text: "one"}, {Text: "two"}}}
		related := meta.Association("Notes").Related(a)
		Expect(related).To(HaveLen(2))
		related[1].(*abtest.Note).Text = "changed"
		Expect(a.Notes[1].Text).To(Equal("changed"))

		Expect(meta.Association("Profile").Related(a)).To(BeEmpty())
		Expect(meta.Association("Notes").Related(nil)).To(BeEmpty())
	})

	It("sets and clears back-references", func() {
		meta, err := accessor.For(&abtest.Category{})
		Expect(err).NotTo(HaveOccurred())
		products := meta.Association("Products")

		c := &abtest.Category{ID: 5}
		p := &abtest.Product{}
		products.SetBack(p, c)
		Expect(p.Category).To(BeIdenticalTo(c))
		Expect(*p.CategoryID).To(Equal(uint(5)))
		Expect(products.BackReference(p)).To(Equal(uint(5)))

		products.ClearBack(p)
		Expect(p.Category).To(BeNil())
		Expect(p.CategoryID).To(BeNil())
		Expect(products.BackReference(p)).To(BeNil())
	})

	It("assigns related objects", func() {
		meta, err := accessor.For(&abtest.Author{})
		Expect(err).NotTo(HaveOccurred())

		a := &abtest.Author{}
		meta.Association("Notes").Assign(a, []interface{}{&abtest.Note{Text: "x"}})
		Expect(a.Notes).To(Equal([]abtest.Note{{Text: "x"}}))

		profile := &abtest.Profile{Bio: "bio"}
		meta.Association("Profile").Assign(a, []interface{}{profile})
		Expect(a.Profile).To(BeIdenticalTo(profile))
		meta.Association("Profile").Assign(a, nil)
		Expect(a.Profile).To(BeNil())
	})

	It("builds identities", func() {
		meta, err := accessor.For(&abtest.Tag{})
		Expect(err).NotTo(HaveOccurred())

		Expect(meta.Identity(&abtest.Tag{ID: 1})).To(Equal(meta.Identity(&abtest.Tag{ID: 1, Name: "x"})))
		Expect(meta.Identity(&abtest.Tag{ID: 1})).NotTo(Equal(meta.Identity(&abtest.Tag{ID: 2})))

		unsaved := &abtest.Tag{}
		Expect(meta.Identity(unsaved)).To(Equal(meta.Identity(unsaved)))
		Expect(meta.Identity(unsaved)).NotTo(Equal(meta.Identity(&abtest.Tag{})))
	})

	It("parses identifiers", func() {
		meta, err := accessor.For(&abtest.Tag{})
		Expect(err).NotTo(HaveOccurred())

		id, err := meta.ParseID("12")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(uint(12)))

		_, err = meta.ParseID("-1")
		Expect(errors.Is(err, errors.ErrNotFound)).To(BeTrue())

		Expect(meta.ParseIDs([]string{"1", "x", "3"})).To(Equal([]interface{}{uint(1), uint(3)}))
	})

	It("lists slice elements", func() {
		tags := []*abtest.Tag{{ID: 1}, nil, {ID: 2}}
		Expect(relation.Objects(&tags)).To(HaveLen(2))
		Expect(relation.Objects("nope")).To(BeNil())
	})
})
