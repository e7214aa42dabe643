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

package db

import (
	"context"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// UnitOfWork stages objects and writes them in one transaction on Flush.
//
// Staged objects are saved without their associations. Many-to-many
// associations of persisted objects are the exception: their join rows are
// replaced with the current contents of the field, so the owning side of
// those relations is kept in sync by the flush itself. Attached objects only
// get their columns saved.
//
// Objects without a primary key are inserted first, then the AfterInsert
// callbacks run, then the rest of the objects are updated and the removed
// objects are deleted.
type UnitOfWork struct {
	db          *gorm.DB
	persist     []interface{}
	remove      []interface{}
	staged      map[interface{}]bool
	afterInsert []func() error
}

// NewUnitOfWork creates a unit of work on conn. conn can be a transaction.
func NewUnitOfWork(conn *gorm.DB) *UnitOfWork {
	u := &UnitOfWork{db: conn}
	u.reset()

	return u
}

func (u *UnitOfWork) reset() {
	u.persist = nil
	u.remove = nil
	u.afterInsert = nil
	u.staged = make(map[interface{}]bool)
}

// Persist stages objects for insertion or update. Objects must be pointers; staging the same pointer twice is a no-op.
func (u *UnitOfWork) Persist(objs ...interface{}) {
	u.stage(true, objs)
}

// Attach stages objects like Persist, but leaves their many-to-many join rows alone.
//
// Use it for related objects that were loaded without their associations.
func (u *UnitOfWork) Attach(objs ...interface{}) {
	u.stage(false, objs)
}

func (u *UnitOfWork) stage(sync bool, objs []interface{}) {
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		if synced, found := u.staged[obj]; found {
			u.staged[obj] = synced || sync
			continue
		}
		u.staged[obj] = sync
		u.persist = append(u.persist, obj)
	}
}

// Remove stages an object for deletion.
func (u *UnitOfWork) Remove(obj interface{}) {
	u.remove = append(u.remove, obj)
}

// AfterInsert registers a callback that runs after the new objects got their primary keys.
func (u *UnitOfWork) AfterInsert(f func() error) {
	u.afterInsert = append(u.afterInsert, f)
}

// Pending returns the number of staged operations.
func (u *UnitOfWork) Pending() int {
	return len(u.persist) + len(u.remove)
}

// Flush writes the staged changes in a transaction, and clears the unit of work.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	defer u.reset()

	staged := u.staged

	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []interface{}
		for _, obj := range u.persist {
			isNew, err := IsNew(tx, obj)
			if err != nil {
				return err
			}
			if !isNew {
				existing = append(existing, obj)
				continue
			}

			if err := tx.Omit(clause.Associations).Create(obj).Error; err != nil {
				return err
			}
			if !staged[obj] {
				continue
			}
			if err := replaceMany2Many(tx, obj); err != nil {
				return err
			}
		}

		for _, f := range u.afterInsert {
			if err := f(); err != nil {
				return err
			}
		}

		for _, obj := range existing {
			if err := tx.Omit(clause.Associations).Save(obj).Error; err != nil {
				return err
			}
			if !staged[obj] {
				continue
			}
			if err := replaceMany2Many(tx, obj); err != nil {
				return err
			}
		}

		for _, obj := range u.remove {
			if err := clearMany2Many(tx, obj); err != nil {
				return err
			}
			if err := tx.Delete(obj).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// ParseSchema returns the gorm schema of a model.
func ParseSchema(conn *gorm.DB, model interface{}) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: conn}
	if err := stmt.Parse(model); err != nil {
		return nil, err
	}

	return stmt.Schema, nil
}

// IsNew tells if a model has a zero primary key.
func IsNew(conn *gorm.DB, model interface{}) (bool, error) {
	s, err := ParseSchema(conn, model)
	if err != nil {
		return false, err
	}

	if s.PrioritizedPrimaryField == nil {
		return true, nil
	}

	_, zero := s.PrioritizedPrimaryField.ValueOf(conn.Statement.Context, reflect.Indirect(reflect.ValueOf(model)))

	return zero, nil
}

func many2many(conn *gorm.DB, obj interface{}) ([]*schema.Relationship, error) {
	s, err := ParseSchema(conn, obj)
	if err != nil {
		return nil, err
	}

	var rels []*schema.Relationship
	for _, rel := range s.Relationships.Many2Many {
		rels = append(rels, rel)
	}

	return rels, nil
}

func replaceMany2Many(tx *gorm.DB, obj interface{}) error {
	rels, err := many2many(tx, obj)
	if err != nil {
		return err
	}

	rv := reflect.Indirect(reflect.ValueOf(obj))
	for _, rel := range rels {
		value := rel.Field.ReflectValueOf(tx.Statement.Context, rv)
		association := tx.Model(obj).Association(rel.Name)
		if value.Len() == 0 {
			err = association.Clear()
		} else {
			err = association.Replace(value.Interface())
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func clearMany2Many(tx *gorm.DB, obj interface{}) error {
	rels, err := many2many(tx, obj)
	if err != nil {
		return err
	}

	for _, rel := range rels {
		if err := tx.Model(obj).Association(rel.Name).Clear(); err != nil {
			return err
		}
	}

	return nil
}
