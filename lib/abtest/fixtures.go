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

package abtest

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Category has many products.
type Category struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Products []*Product
}

func (c *Category) String() string {
	return c.Name
}

// Product belongs to a category and has many tags.
type Product struct {
	ID         uint `gorm:"primaryKey"`
	Name       string
	Price      int
	Available  bool
	CreatedAt  time.Time
	CategoryID *uint
	Category   *Category
	Tags       []*Tag `gorm:"many2many:product_tags"`
}

func (p *Product) String() string {
	return p.Name
}

// Tag is on the other side of a many-to-many relation.
type Tag struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func (t *Tag) String() string {
	return t.Name
}

// Author has one profile and many notes, the latter stored by value.
type Author struct {
	ID      uint `gorm:"primaryKey"`
	Name    string
	Profile *Profile
	Notes   []Note
}

func (a *Author) String() string {
	return a.Name
}

// Profile has no back-reference pointer, only a foreign key.
type Profile struct {
	ID       uint `gorm:"primaryKey"`
	Bio      string
	AuthorID uint
}

// Note is not a fmt.Stringer.
type Note struct {
	ID       uint `gorm:"primaryKey"`
	Text     string
	AuthorID uint
}

// Models returns the fixture models in migration order.
func Models() []interface{} {
	return []interface{}{
		&Category{},
		&Tag{},
		&Product{},
		&Author{},
		&Profile{},
		&Note{},
	}
}

// Seed inserts a category with two products, each with one tag.
func Seed(conn *gorm.DB) (*Category, []*Product, []*Tag) {
	category := &Category{Name: "Fruit"}
	if err := conn.Create(category).Error; err != nil {
		panic(err)
	}

	tags := []*Tag{{Name: "red"}, {Name: "blue"}}
	if err := conn.Create(&tags).Error; err != nil {
		panic(err)
	}

	products := []*Product{
		{Name: "Apple", Price: 3, CategoryID: &category.ID, Tags: tags[:1]},
		{Name: "Blueberry", Price: 7, CategoryID: &category.ID, Tags: tags[1:]},
	}
	if err := conn.Create(&products).Error; err != nil {
		panic(err)
	}

	return category, products, tags
}

// ProductNames names a number of products "Product 01", "Product 02" and so on.
func ProductNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Product %02d", i+1)
	}

	return names
}
