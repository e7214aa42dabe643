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

package backoffice

import (
	"context"
	"net/http"

	"github.com/alien-bunny/backoffice/lib/event"
)

const (
	// EventMigrate is dispatched on a master server when the database schema should be created or updated.
	EventMigrate = "backoffice.migrate"
	// EventReload is dispatched when the caches should be dropped, e.g. after the configuration changed.
	EventReload = "backoffice.reload"
)

// MigrateEvent asks the schema providers to migrate the database.
type MigrateEvent struct {
	ctx context.Context
}

func NewMigrateEvent(ctx context.Context) *MigrateEvent {
	if ctx == nil {
		ctx = context.Background()
	}

	return &MigrateEvent{
		ctx: ctx,
	}
}

func (e *MigrateEvent) Context() context.Context {
	return e.ctx
}

func (e *MigrateEvent) Name() string {
	return EventMigrate
}

func (e *MigrateEvent) ErrorStrategy() event.ErrorStrategy {
	return event.ErrorStrategyStop
}

// ReloadEvent clears the caches.
//
// The request is nil when the reload does not come from an endpoint.
type ReloadEvent struct {
	r *http.Request
}

func NewReloadEvent(r *http.Request) *ReloadEvent {
	return &ReloadEvent{
		r: r,
	}
}

func (e *ReloadEvent) Request() *http.Request {
	return e.r
}

func (e *ReloadEvent) Name() string {
	return EventReload
}

func (e *ReloadEvent) ErrorStrategy() event.ErrorStrategy {
	return event.ErrorStrategyAggregate
}
