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

package export_test

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/export"
	"github.com/alien-bunny/backoffice/lib/relation"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"
	"gorm.io/gorm"
)

var _ = Describe("Exporter", func() {
	var (
		conn *gorm.DB
		meta *relation.Metadata
		exp  *export.Exporter
	)

	fields := []string{"Name", "Price", "Category", "Tags"}

	BeforeEach(func() {
		conn = abtest.OpenDB(abtest.Models()...)
		abtest.Seed(conn)
		var err error
		meta, err = relation.NewAccessor(conn).For(&abtest.Product{})
		Expect(err).NotTo(HaveOccurred())
		exp = export.NewExporter()
		exp.BatchSize = 1
	})

	run := func(format export.Format, filter export.Filter, fields []string) (string, error) {
		buf := bytes.NewBuffer(nil)
		err := exp.Export(context.Background(), buf, conn, format, filter, meta, fields)
		return buf.String(), err
	}

	It("writes CSV", func() {
		out, err := run(export.FormatCSV, nil, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Name,Price,Category,Tags\nApple,3,Fruit,red\nBlueberry,7,Fruit,blue\n"))
	})

	It("escapes formulas in CSV", func() {
		Expect(conn.Create(&abtest.Product{Name: "=SUM(A1)"}).Error).To(Succeed())
		out, err := run(export.FormatCSV, func(db *gorm.DB) *gorm.DB {
			return db.Where("name LIKE ?", "=%")
		}, []string{"Name", "Category"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Name,Category\n\"\t=SUM(A1)\",\n"))
	})

	It("writes JSON objects in field order", func() {
		out, err := run(export.FormatJSON, nil, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`[{"Name":"Apple","Price":3,"Category":"Fruit","Tags":["red"]},{"Name":"Blueberry","Price":7,"Category":"Fruit","Tags":["blue"]}]` + "\n"))

		var decoded []map[string]interface{}
		Expect(json.Unmarshal([]byte(out), &decoded)).To(Succeed())
		Expect(decoded).To(HaveLen(2))
	})

	It("writes YAML", func() {
		out, err := run(export.FormatYAML, nil, fields)
		Expect(err).NotTo(HaveOccurred())

		var decoded []map[string]interface{}
		Expect(yaml.Unmarshal([]byte(out), &decoded)).To(Succeed())
		Expect(decoded).To(HaveLen(2))
		Expect(decoded[1]).To(HaveKeyWithValue("Name", "Blueberry"))
		Expect(decoded[1]).To(HaveKeyWithValue("Price", 7))
		Expect(decoded[1]).To(HaveKeyWithValue("Tags", []interface{}{"blue"}))
	})

	It("writes TOML", func() {
		out, err := run(export.FormatTOML, nil, fields)
		Expect(err).NotTo(HaveOccurred())

		tree, err := toml.Load(out)
		Expect(err).NotTo(HaveOccurred())
		records, ok := tree.Get("records").([]*toml.Tree)
		Expect(ok).To(BeTrue())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Get("Name")).To(Equal("Apple"))
		Expect(records[0].Get("Price")).To(Equal(int64(3)))
		Expect(records[0].Get("Category")).To(Equal("Fruit"))
	})

	DescribeTable("empty results",
		func(format export.Format, expected string) {
			out, err := run(format, func(db *gorm.DB) *gorm.DB {
				return db.Where("price > ?", 100)
			}, []string{"Name"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(expected))
		},
		Entry("csv", export.FormatCSV, "Name\n"),
		Entry("json", export.FormatJSON, "[]\n"),
		Entry("yaml", export.FormatYAML, "[]\n"),
		Entry("toml", export.FormatTOML, ""),
	)

	It("applies the filter", func() {
		out, err := run(export.FormatCSV, func(db *gorm.DB) *gorm.DB {
			return db.Where("price > ?", 5)
		}, []string{"ID", "Name"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("ID,Name\n2,Blueberry\n"))
	})

	It("rejects unknown fields and formats", func() {
		_, err := run(export.FormatCSV, nil, []string{"Name", "Secret"})
		Expect(err).To(HaveOccurred())

		_, err = run(export.FormatCSV, nil, nil)
		Expect(err).To(HaveOccurred())

		_, err = run(export.Format("xls"), nil, []string{"Name"})
		Expect(err).To(HaveOccurred())
	})

	It("parses formats", func() {
		f, err := export.ParseFormat("JSON")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(export.FormatJSON))
		Expect(f.ContentType()).To(Equal("application/json"))
		Expect(f.Extension()).To(Equal(".json"))
		Expect(export.Formats()).To(HaveLen(4))

		_, err = export.ParseFormat("xls")
		Expect(err).To(HaveOccurred())
	})
})
