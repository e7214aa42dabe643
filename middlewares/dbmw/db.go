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

// Package dbmw puts the database connection on the request.
package dbmw

import (
	"context"
	"net/http"
	"reflect"

	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/event"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/server"
	"github.com/alien-bunny/backoffice/lib/util"
	"gorm.io/gorm"
)

const MiddlewareDependencyDB = "*dbmw.Middleware"

var ErrNoConnection = errors.New("no database connection on the request")

type connectionKey struct{}

// GetConnection returns the database session of the request.
//
// Inside a TransactionMiddleware this is the transaction.
func GetConnection(r *http.Request) *gorm.DB {
	conn, ok := r.Context().Value(connectionKey{}).(*gorm.DB)
	if !ok {
		errors.Fail(http.StatusInternalServerError, ErrNoConnection)
	}

	return conn
}

var (
	_ middleware.Middleware       = &Middleware{}
	_ config.ConfigSchemaProvider = &Middleware{}
	_ event.Subscriber            = &Middleware{}
	_ middleware.Middleware       = TransactionMiddleware{}
)

// Middleware binds the connection to the request context.
//
// As an event subscriber it migrates the models of every registered db.SchemaProvider service.
type Middleware struct {
	middleware.NoDependencies

	conn   *gorm.DB
	server *server.Server
	logger log.Logger
}

func NewMiddleware(conn *gorm.DB, s *server.Server, logger log.Logger) *Middleware {
	return &Middleware{
		conn:   conn,
		server: s,
		logger: logger,
	}
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, util.SetContext(r, connectionKey{}, m.conn.WithContext(r.Context())))
	})
}

// Connection returns the connection without a request context.
func (m *Middleware) Connection() *gorm.DB {
	return m.conn
}

func (m *Middleware) ConfigSchema() map[string]reflect.Type {
	return map[string]reflect.Type{
		"database": reflect.TypeOf(db.Config{}),
	}
}

func (m *Middleware) Handle(e event.Event) error {
	ctx := context.Background()
	if c, ok := e.(interface{ Context() context.Context }); ok && c.Context() != nil {
		ctx = c.Context()
	}

	return db.Migrate(m.conn.WithContext(ctx), m.logger, m.schemaProviders()...)
}

func (m *Middleware) schemaProviders() []db.SchemaProvider {
	if m.server == nil {
		return nil
	}

	var providers []db.SchemaProvider
	for _, svc := range m.server.GetServices() {
		if p, ok := svc.(db.SchemaProvider); ok {
			providers = append(providers, p)
		}
	}

	return providers
}

// TransactionMiddleware runs the rest of the handler chain in a transaction.
//
// The transaction commits when the handler returns and rolls back when it panics.
// A failed commit fails the request with a 500.
type TransactionMiddleware struct{}

func Begin() TransactionMiddleware {
	return TransactionMiddleware{}
}

func (TransactionMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := GetConnection(r).Transaction(func(tx *gorm.DB) error {
			next.ServeHTTP(w, util.SetContext(r, connectionKey{}, tx))
			return nil
		})
		if err != nil {
			errors.Fail(http.StatusInternalServerError, err)
		}
	})
}

func (TransactionMiddleware) Dependencies() []string {
	return []string{MiddlewareDependencyDB}
}
