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

// Package demo is a small product catalog administered with the admin service.
package demo

import (
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/errors"
	"gorm.io/gorm"
)

type Supplier struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"uniqueIndex"`
	Email    string
	Products []*Product
}

func (s *Supplier) String() string {
	return s.Name
}

type Category struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Products []*Product
}

func (c *Category) String() string {
	return c.Name
}

type Tag struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func (t *Tag) String() string {
	return t.Name
}

type Product struct {
	ID          uint   `gorm:"primaryKey"`
	SKU         string `gorm:"uniqueIndex"`
	Name        string
	Description string
	Price       float64
	Stock       int
	Active      bool
	ReleasedAt  time.Time
	CategoryID  *uint
	Category    *Category
	SupplierID  *uint
	Supplier    *Supplier
	Tags        []*Tag `gorm:"many2many:product_tags"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) String() string {
	return p.SKU + " " + p.Name
}

// Validate is called by the admin form after binding.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return errors.New("The SKU is required.")
	}
	if p.Price < 0 {
		return errors.New("The price can't be negative.")
	}
	if p.Stock < 0 {
		return errors.New("The stock can't be negative.")
	}

	return nil
}

// Models returns the catalog models in migration order.
func Models() []interface{} {
	return []interface{}{
		&Supplier{},
		&Category{},
		&Tag{},
		&Product{},
	}
}

// Seed fills an empty catalog with a few rows.
func Seed(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		supplier := &Supplier{Name: "Orchard Ltd.", Email: "sales@orchard.example"}
		if err := tx.Create(supplier).Error; err != nil {
			return err
		}

		categories := []*Category{{Name: "Fruit"}, {Name: "Vegetables"}}
		if err := tx.Create(&categories).Error; err != nil {
			return err
		}

		tags := []*Tag{{Name: "organic"}, {Name: "seasonal"}}
		if err := tx.Create(&tags).Error; err != nil {
			return err
		}

		released := time.Date(2018, time.May, 1, 0, 0, 0, 0, time.UTC)
		products := []*Product{
			{SKU: "FR-001", Name: "Apple", Price: 0.5, Stock: 120, Active: true, ReleasedAt: released, CategoryID: &categories[0].ID, SupplierID: &supplier.ID, Tags: tags},
			{SKU: "FR-002", Name: "Pear", Price: 0.7, Stock: 80, Active: true, ReleasedAt: released, CategoryID: &categories[0].ID, SupplierID: &supplier.ID, Tags: tags[1:]},
			{SKU: "VG-001", Name: "Carrot", Price: 0.2, Stock: 300, ReleasedAt: released, CategoryID: &categories[1].ID},
		}

		return tx.Create(&products).Error
	})
}
