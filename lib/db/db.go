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

// Package db opens gorm databases and contains helpers around them.
package db

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Config is the database section of the configuration.
type Config struct {
	Dialect               string
	DSN                   string
	MaxIdleConnections    int
	MaxOpenConnections    int
	ConnectionMaxLifetime time.Duration
	SlowThreshold         time.Duration
}

// SchemaProvider is implemented by services that own database tables.
type SchemaProvider interface {
	Name() string
	DBModels() []interface{}
}

func dialector(conf Config) (gorm.Dialector, error) {
	switch strings.ToLower(conf.Dialect) {
	case DialectSQLite, "":
		dsn := conf.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.Open(dsn), nil
	case DialectPostgres, "postgresql", "pgx":
		return postgres.Open(conf.DSN), nil
	}

	return nil, fmt.Errorf("unsupported database dialect %q", conf.Dialect)
}

// Open opens a database and configures its connection pool.
//
// Queries are logged through logger on the debug level.
func Open(conf Config, logger log.Logger) (*gorm.DB, error) {
	d, err := dialector(conf)
	if err != nil {
		return nil, err
	}

	// postgres errors stay *pgconn.PgError, so the constraint name reaches the converters
	conn, err := gorm.Open(d, &gorm.Config{
		Logger:         NewLogger(logger, conf.SlowThreshold),
		TranslateError: d.Name() != "postgres",
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}

	if conf.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(conf.MaxIdleConnections)
	}
	if conf.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(conf.MaxOpenConnections)
	}
	if conf.ConnectionMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(conf.ConnectionMaxLifetime)
	}

	return conn, nil
}

// RetryOpen is Open, retrying dial errors once a second.
func RetryOpen(conf Config, logger log.Logger, tries uint) (*gorm.DB, error) {
	conn, err := Open(conf, logger)
	if err != nil {
		var operr *net.OpError
		if errors.As(err, &operr) && operr.Op == "dial" && tries > 0 {
			log.Warn(logger).Log("msg", "database is not available, retrying", "error", err)
			<-time.After(time.Second)
			return RetryOpen(conf, logger, tries-1)
		}
		return nil, err
	}

	return conn, nil
}

// Migrate creates or updates the tables of the schema providers.
func Migrate(conn *gorm.DB, logger log.Logger, providers ...SchemaProvider) error {
	for _, p := range providers {
		models := p.DBModels()
		if len(models) == 0 {
			continue
		}

		log.Info(logger).Log("msg", "migrating", "service", p.Name(), "models", len(models))
		if err := conn.AutoMigrate(models...); err != nil {
			return fmt.Errorf("migrating %s: %w", p.Name(), err)
		}
	}

	return nil
}

// NotFound converts gorm.ErrRecordNotFound into errors.ErrNotFound.
func NotFound(err error, kind string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(kind, id)
	}

	return err
}

// IsConstraintError tells if err is an integrity constraint violation, on any dialect.
func IsConstraintError(err error) bool {
	var perr *pgconn.PgError
	if errors.As(err, &perr) {
		return strings.HasPrefix(perr.Code, "23")
	}

	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated)
}

// ConvertDBError converts an error with conv if that error is a *pgconn.PgError.
//
// Constraint errors translated by other dialects get a generic message.
//
// Useful when processing database errors (e.g. constraint violations), so the user can get a nice error message.
func ConvertDBError(err error, conv func(*pgconn.PgError) errors.Error) error {
	if err == nil {
		return nil
	}

	var perr *pgconn.PgError
	if errors.As(err, &perr) {
		return conv(perr)
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(err, "This value is already in use.", nil)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.Wrap(err, "The item is referenced by other items.", nil)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return errors.Wrap(err, "The value is not allowed.", nil)
	}

	return err
}

// ConstraintErrorConverter converts a constraint violation error into a user-friendly message.
func ConstraintErrorConverter(msgMap map[string]string) func(*pgconn.PgError) errors.Error {
	return func(err *pgconn.PgError) errors.Error {
		if msg, ok := msgMap[err.ConstraintName]; ok {
			return errors.Wrap(err, msg, nil)
		}

		return errors.NewError(err.Message, err.Detail, nil)
	}
}

// DBErrorToVerboseString is a helper function that converts a *pgconn.PgError into a detailed string.
func DBErrorToVerboseString(err *pgconn.PgError) string {
	return fmt.Sprintf(`
	Severity         %s
	Code             %s
	Message          %s
	Detail           %s
	Hint             %s
	Position         %d
	InternalPosition %d
	InternalQuery    %s
	Where            %s
	Schema           %s
	Table            %s
	Column           %s
	DataTypeName     %s
	Constraint       %s
	File             %s
	Line             %d
	Routine          %s
`,
		err.Severity,
		err.Code,
		err.Message,
		err.Detail,
		err.Hint,
		err.Position,
		err.InternalPosition,
		err.InternalQuery,
		err.Where,
		err.SchemaName,
		err.TableName,
		err.ColumnName,
		err.DataTypeName,
		err.ConstraintName,
		err.File,
		err.Line,
		err.Routine,
	)
}
