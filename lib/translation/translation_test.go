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

package translation_test

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/translation"
	"github.com/go-kit/kit/log/level"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"golang.org/x/text/language"
)

func newTranslator() *translation.Translator {
	logger := log.DefaultDevLogger(level.AllowDebug())
	tr := translation.NewTranslator(logger)
	tr.SetTranslations(language.Hungarian, map[string]string{
		"@count item":                    "@count elem",
		"@count items":                   "@count elem",
		"#name saved.":                   "#name mentve.",
		"The item has been deleted.":     "Az elem törölve.",
		"@count selected, @counter left": "@count kiválasztva, @counter maradt",
	})
	tr.SetTranslations(language.Czech, map[string]string{
		"@count item":  "@count položka",
		"@count items": "@count položek" + translation.DELIMITER + "@count položky",
	})

	return tr
}

var _ = Describe("Translator", func() {
	tr := newTranslator()
	f := &translation.HTMLFormatter{}

	It("should translate a message with a parameter", func() {
		t := tr.Instance(language.Hungarian, f)
		Expect(t("#name saved.", map[string]string{
			"#name": "Apple",
		})).To(Equal("<em>Apple</em> mentve."))
	})

	It("should fall back to the base language", func() {
		t := tr.Instance(language.MustParse("hu-HU"), f)
		Expect(t("The item has been deleted.", nil)).To(Equal("Az elem törölve."))
	})

	It("should keep untranslated messages", func() {
		t := tr.Instance(language.Hungarian, f)
		Expect(t("Save and add another", nil)).To(Equal("Save and add another"))
	})

	It("should not confuse parameters sharing a prefix", func() {
		t := tr.Instance(language.Hungarian, f)
		Expect(t("@count selected, @counter left", map[string]string{
			"@count":   "3",
			"@counter": "7",
		})).To(Equal("3 kiválasztva, 7 maradt"))
	})

	It("should panic on a parameter without a format prefix", func() {
		t := tr.Instance(language.English, f)
		Expect(func() {
			t("%count items", map[string]string{"%count": "1"})
		}).To(Panic())
	})

	It("should use one form for every Hungarian count", func() {
		p := tr.PluralInstance(language.Hungarian, f)
		for i := 0; i < 10; i++ {
			Expect(p(i, "@count item", "@count items", nil)).To(Equal(strconv.Itoa(i) + " elem"))
		}
	})

	table.DescribeTable("English plurals",
		func(count int, expected string) {
			p := tr.PluralInstance(language.English, f)
			Expect(p(count, "@count item", "@count items", nil)).To(Equal(expected))
		},
		table.Entry("zero", 0, "0 items"),
		table.Entry("one", 1, "1 item"),
		table.Entry("many", 25, "25 items"),
	)

	table.DescribeTable("Czech plurals",
		func(count int, expected string) {
			p := tr.PluralInstance(language.Czech, f)
			Expect(p(count, "@count item", "@count items", nil)).To(Equal(expected))
		},
		table.Entry("one", 1, "1 položka"),
		table.Entry("few", 3, "3 položky"),
		table.Entry("other", 5, "5 položek"),
	)

	It("should not modify the parameters of a plural message", func() {
		p := tr.PluralInstance(language.English, f)
		params := map[string]string{"#name": "tags"}
		Expect(p(2, "@count #name", "@count #name", params)).To(Equal("2 <em>tags</em>"))
		Expect(params).To(HaveLen(1))
	})
})

var _ = Describe("Formatters", func() {
	tr := newTranslator()

	Describe("HTML", func() {
		t := tr.Instance(language.English, &translation.HTMLFormatter{})

		It("should not escape raw parameters", func() {
			Expect(t("!raw parameter", map[string]string{
				"!raw": "<script></script>",
			})).To(Equal("<script></script> parameter"))
		})

		It("should escape normal parameters", func() {
			Expect(t("@normal parameter", map[string]string{
				"@normal": "<script></script>",
			})).To(Equal("&lt;script&gt;&lt;/script&gt; parameter"))
		})

		It("should escape emphasized parameters", func() {
			Expect(t("#emphasized parameter", map[string]string{
				"#emphasized": "<script></script>",
			})).To(Equal("<em>&lt;script&gt;&lt;/script&gt;</em> parameter"))
		})
	})

	It("should strip control characters on the terminal", func() {
		t := tr.Instance(language.English, &translation.TerminalFormatter{})
		Expect(t("@name", map[string]string{"@name": "a\x1b[31mb"})).To(Equal("a[31mb"))
	})

	It("should leave values alone in plain text", func() {
		t := tr.Instance(language.English, translation.PlainFormatter{})
		Expect(t("#name", map[string]string{"#name": "<b>"})).To(Equal("<b>"))
	})
})

var _ = Describe("LoadDirectory", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "translations")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	write := func(name, content string) {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)).To(Succeed())
	}

	It("should load the dictionaries named after languages", func() {
		write("hu.yaml", "\"Products\": \"Termékek\"\n")
		write("de.toml", "\"Products\" = \"Produkte\"\n")
		write("fr.json", `{"Products": "Produits"}`)
		write("README.md", "not a dictionary")

		tr := translation.NewTranslator(log.DefaultDevLogger(level.AllowDebug()))
		loaded, err := tr.LoadDirectory(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(3))
		Expect(tr.Languages()).To(ConsistOf(language.Hungarian, language.German, language.French))

		Expect(tr.Translate(language.Hungarian, translation.PlainFormatter{}, "Products", nil)).To(Equal("Termékek"))
		Expect(tr.Translate(language.German, translation.PlainFormatter{}, "Products", nil)).To(Equal("Produkte"))
		Expect(tr.Translate(language.French, translation.PlainFormatter{}, "Products", nil)).To(Equal("Produits"))
	})

	It("should reject files that are not named after a language", func() {
		write("messages.yaml", "\"Products\": \"Termékek\"\n")

		tr := translation.NewTranslator(log.DefaultDevLogger(level.AllowDebug()))
		_, err := tr.LoadDirectory(dir)
		Expect(err).To(HaveOccurred())
	})

	It("should fail on a missing directory", func() {
		tr := translation.NewTranslator(log.DefaultDevLogger(level.AllowDebug()))
		_, err := tr.LoadDirectory(filepath.Join(dir, "missing"))
		Expect(err).To(HaveOccurred())
	})
})
