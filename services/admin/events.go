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

package admin

import (
	"net/http"

	"github.com/alien-bunny/backoffice/lib/event"
)

const (
	EventBeforePersist = "admin.before_persist"
	EventAfterPersist  = "admin.after_persist"
	EventBeforeDelete  = "admin.before_delete"
	EventAfterDelete   = "admin.after_delete"
	EventAfterBatch    = "admin.after_batch"
)

type adminEventBase struct {
	r        *http.Request
	resource *Resource
}

func (e adminEventBase) Request() *http.Request {
	return e.r
}

func (e adminEventBase) Resource() *Resource {
	return e.resource
}

// EntityEvent is dispatched around saving and deleting an entity.
//
// Before events stop the operation when a subscriber returns an error.
type EntityEvent struct {
	adminEventBase
	name   string
	entity interface{}
	isNew  bool
}

func newEntityEvent(name string, r *http.Request, res *Resource, entity interface{}, isNew bool) *EntityEvent {
	return &EntityEvent{
		adminEventBase: adminEventBase{r: r, resource: res},
		name:           name,
		entity:         entity,
		isNew:          isNew,
	}
}

func (e *EntityEvent) Name() string {
	return e.name
}

func (e *EntityEvent) ErrorStrategy() event.ErrorStrategy {
	if e.name == EventBeforePersist || e.name == EventBeforeDelete {
		return event.ErrorStrategyStop
	}

	return event.ErrorStrategyAggregate
}

// Entity returns the saved or deleted entity.
func (e *EntityEvent) Entity() interface{} {
	return e.entity
}

// IsNew tells if the entity is being created.
func (e *EntityEvent) IsNew() bool {
	return e.isNew
}

// AfterBatchEvent is dispatched after a batch action ran.
type AfterBatchEvent struct {
	adminEventBase
	action string
	ids    []interface{}
}

func newAfterBatchEvent(r *http.Request, res *Resource, action string, ids []interface{}) *AfterBatchEvent {
	return &AfterBatchEvent{
		adminEventBase: adminEventBase{r: r, resource: res},
		action:         action,
		ids:            ids,
	}
}

func (e *AfterBatchEvent) Name() string {
	return EventAfterBatch
}

func (e *AfterBatchEvent) ErrorStrategy() event.ErrorStrategy {
	return event.ErrorStrategyAggregate
}

// Action returns the name of the batch action.
func (e *AfterBatchEvent) Action() string {
	return e.action
}

// IDs returns the identifiers the action ran on.
func (e *AfterBatchEvent) IDs() []interface{} {
	return e.ids
}
