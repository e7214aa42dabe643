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

package relation

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope restricts a query on the owner type to the owners related to the target object with the given identifier.
//
// Useful for filtering lists by a related entity, e.g. the products of one category.
func (a *Association) Scope(id interface{}) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		switch a.Kind {
		case KindBelongsTo:
			if len(a.ownFields) == 0 {
				return q.Where("1 = 0")
			}
			return q.Where(clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: a.ownFields[0].field.DBName},
				Value:  id,
			})
		case KindHasOne, KindHasMany:
			bf := a.backFields[0]
			if bf.source == nil {
				return q.Where("1 = 0")
			}
			sub := q.Session(&gorm.Session{NewDB: true}).
				Table(a.target.Table()).
				Select(bf.field.DBName).
				Where(clause.Eq{Column: clause.Column{Name: a.target.PrimaryColumn()}, Value: id})
			return q.Where("? IN (?)", clause.Column{Table: clause.CurrentTable, Name: bf.source.DBName}, sub)
		case KindMany2Many:
			if a.rel == nil || a.rel.JoinTable == nil {
				return q.Where("1 = 0")
			}
			var ownerColumn, joinOwner, joinTarget string
			for _, ref := range a.rel.References {
				if ref.ForeignKey == nil || ref.PrimaryKey == nil {
					continue
				}
				if ref.OwnPrimaryKey {
					ownerColumn = ref.PrimaryKey.DBName
					joinOwner = ref.ForeignKey.DBName
				} else {
					joinTarget = ref.ForeignKey.DBName
				}
			}
			if joinOwner == "" || joinTarget == "" {
				return q.Where("1 = 0")
			}
			sub := q.Session(&gorm.Session{NewDB: true}).
				Table(a.rel.JoinTable.Table).
				Select(joinOwner).
				Where(clause.Eq{Column: clause.Column{Name: joinTarget}, Value: id})
			return q.Where("? IN (?)", clause.Column{Table: clause.CurrentTable, Name: ownerColumn}, sub)
		}

		return q
	}
}
