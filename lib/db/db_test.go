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

package db_test

import (
	"bytes"
	"context"
	"time"

	"github.com/alien-bunny/backoffice/lib/abtest"
	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/go-kit/kit/log/level"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

type schemaProvider struct {
	models []interface{}
}

func (p schemaProvider) Name() string {
	return "fixtures"
}

func (p schemaProvider) DBModels() []interface{} {
	return p.models
}

var _ = Describe("Open", func() {
	It("should reject an unknown dialect", func() {
		_, err := db.Open(db.Config{Dialect: "oracle"}, abtest.GetLogger())
		Expect(err).To(MatchError(ContainSubstring("unsupported database dialect")))
	})

	It("should open an in-memory sqlite database by default", func() {
		conn, err := db.Open(db.Config{}, abtest.GetLogger())
		Expect(err).NotTo(HaveOccurred())

		var one int
		Expect(conn.Raw("SELECT 1").Scan(&one).Error).To(Succeed())
		Expect(one).To(Equal(1))
	})
})

var _ = Describe("Migrate", func() {
	It("should create the tables of the schema providers", func() {
		conn := abtest.OpenDB()
		Expect(db.Migrate(conn, abtest.GetLogger(), schemaProvider{models: abtest.Models()})).To(Succeed())

		Expect(conn.Migrator().HasTable(&abtest.Product{})).To(BeTrue())
		Expect(conn.Migrator().HasTable("product_tags")).To(BeTrue())
	})

	It("should skip providers without models", func() {
		conn := abtest.OpenDB()
		Expect(db.Migrate(conn, abtest.GetLogger(), schemaProvider{})).To(Succeed())
	})
})

var _ = Describe("Error helpers", func() {
	It("should convert a missing record into a not found error", func() {
		conn := abtest.OpenDB(abtest.Models()...)
		err := conn.First(&abtest.Product{}, 42).Error

		converted := db.NotFound(err, "product", 42)
		Expect(errors.Is(converted, errors.ErrNotFound)).To(BeTrue())
		Expect(converted.Error()).To(ContainSubstring("product"))
	})

	It("should leave other errors alone", func() {
		err := errors.New("boom")
		Expect(db.NotFound(err, "product", 1)).To(Equal(err))
	})

	It("should convert constraint violations with a message map", func() {
		conv := db.ConstraintErrorConverter(map[string]string{
			"products_name_key": "This name is already taken",
		})
		pgerr := &pgconn.PgError{Code: "23505", ConstraintName: "products_name_key", Message: "duplicate key"}

		err := db.ConvertDBError(errors.Wrap(pgerr, "", nil), conv)
		Expect(err.(errors.Error).UserError(nil)).To(Equal("This name is already taken"))

		Expect(db.ConvertDBError(nil, conv)).To(BeNil())
		plain := errors.New("plain")
		Expect(db.ConvertDBError(plain, conv)).To(Equal(plain))
	})

	It("should recognize constraint violations of every dialect", func() {
		Expect(db.IsConstraintError(&pgconn.PgError{Code: "23505"})).To(BeTrue())
		Expect(db.IsConstraintError(&pgconn.PgError{Code: "42P07"})).To(BeFalse())
		Expect(db.IsConstraintError(gorm.ErrDuplicatedKey)).To(BeTrue())
		Expect(db.IsConstraintError(errors.Wrap(gorm.ErrForeignKeyViolated, "", nil))).To(BeTrue())
		Expect(db.IsConstraintError(errors.New("plain"))).To(BeFalse())
	})

	It("should give translated constraint errors a generic message", func() {
		err := db.ConvertDBError(gorm.ErrDuplicatedKey, db.ConstraintErrorConverter(nil))
		Expect(err.(errors.Error).UserError(nil)).To(Equal("This value is already in use."))
	})

	It("should print every field of a postgres error", func() {
		s := db.DBErrorToVerboseString(&pgconn.PgError{Severity: "ERROR", Code: "42P07", TableName: "products"})
		Expect(s).To(ContainSubstring("Code             42P07"))
		Expect(s).To(ContainSubstring("Table            products"))
	})
})

var _ = Describe("Logger", func() {
	var buf *bytes.Buffer
	var logger *db.Logger

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		logger = db.NewLogger(log.NewProdLogger(buf, level.AllowDebug()), time.Hour)
	})

	It("should log queries on the debug level", func() {
		logger.Trace(context.Background(), time.Now(), func() (string, int64) {
			return "SELECT 1", 1
		}, nil)
		Expect(buf.String()).To(ContainSubstring("level=debug"))
		Expect(buf.String()).To(ContainSubstring("SELECT 1"))
	})

	It("should not report missing records as errors", func() {
		logger.Trace(context.Background(), time.Now(), func() (string, int64) {
			return "SELECT 2", 0
		}, gorm.ErrRecordNotFound)
		Expect(buf.String()).NotTo(ContainSubstring("level=error"))
	})

	It("should log failed queries on the error level", func() {
		logger.Trace(context.Background(), time.Now(), func() (string, int64) {
			return "SELECT x", 0
		}, errors.New("no such column"))
		Expect(buf.String()).To(ContainSubstring("level=error"))
		Expect(buf.String()).To(ContainSubstring("no such column"))
	})

	It("should warn about slow queries", func() {
		slow := db.NewLogger(log.NewProdLogger(buf, level.AllowDebug()), time.Nanosecond)
		slow.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
			return "SELECT 3", 1
		}, nil)
		Expect(buf.String()).To(ContainSubstring("slow query"))
	})
})
