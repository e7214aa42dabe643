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
	"strings"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/errors"
	"github.com/alien-bunny/backoffice/lib/event"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/relation"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/alien-bunny/backoffice/middlewares/metricsmw"
	"github.com/alien-bunny/backoffice/middlewares/securitymw"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
	"gorm.io/gorm/clause"
)

const (
	outcomeShown     = "shown"
	outcomeSaved     = "saved"
	outcomeInvalid   = "invalid"
	outcomeRedirect  = "redirect"
	outcomeDeleted   = "deleted"
	outcomeExported  = "exported"
	outcomeConfirm   = "confirm"
	outcomeCompleted = "completed"
)

// ConstraintMessagesProvider maps database constraint names to the messages shown on the form when a save violates them.
type ConstraintMessagesProvider interface {
	ConstraintMessages() map[string]string
}

func (c *Core) count(r *http.Request, res *Resource, action, outcome string) {
	m := metricsmw.GetMetrics(r)
	if m == nil {
		return
	}

	slug := ""
	if res != nil {
		slug = res.Slug
	}

	m.Counter("admin_actions_total", "Number of handled admin actions.", "slug", "action", "outcome").
		With("slug", slug, "action", action, "outcome", outcome).
		Add(1)
}

func (c *Core) events() *event.Dispatcher {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.server.Events()
}

func (c *Core) redirect(r *http.Request, res *Resource, action string, params map[string]string) {
	u, err := res.URL(action, params)
	backoffice.MaybeFail(http.StatusInternalServerError, err)

	backoffice.Render(r).Redirect(u, http.StatusSeeOther)
}

func (c *Core) page(r *http.Request, res *Resource, action string, view *View) {
	backoffice.Render(r).Page(c.templates, res.Template(action), view)
}

// protect adds the CSRF token of the session to forms built without one.
func protect(r *http.Request, f *form.Form) *form.Form {
	if f == nil {
		errors.Fail(http.StatusInternalServerError, errors.New("the resource returned no form"))
	}
	if f.Token() == "" {
		f.WithCSRF(securitymw.GetCSRFToken(r))
	}

	return f
}

// load finds an entity by the id route parameter, with its relations.
func (c *Core) load(r *http.Request, res *Resource) interface{} {
	id := backoffice.GetParams(r).ByName("id")

	key, err := res.Meta.ParseID(id)
	errors.FailNotFound(err)

	entity := res.Meta.New()
	err = backoffice.GetDB(r).
		Preload(clause.Associations).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: res.Meta.PrimaryColumn()}, Value: key}).
		First(entity).Error
	errors.FailNotFound(db.NotFound(err, res.Slug, id))

	return entity
}

func (c *Core) dashboard(w http.ResponseWriter, r *http.Request) {
	view := c.newView(r, nil, ActionDashboard)
	c.count(r, nil, ActionDashboard, outcomeShown)

	backoffice.Render(r).Page(c.templates, dashboardTemplate, view)
}

func (c *Core) list(w http.ResponseWriter, r *http.Request, res *Resource) {
	view := c.newView(r, res, ActionList)

	q := backoffice.GetDB(r).Model(res.Meta.New())
	if fp, ok := res.Config.(FilterProvider); ok {
		if filter := fp.FilterForm(r); filter != nil {
			var err error
			q, err = filter.Apply(r, res.Meta, q)
			backoffice.MaybeFail(http.StatusBadRequest, err)
			view.Filter = filter.Form().View()
		}
	}

	l, err := loadList(r, q, res, backoffice.Pager(r), c.Config().PerPage)
	backoffice.MaybeFail(http.StatusInternalServerError, err)

	for k, values := range r.URL.Query() {
		if strings.HasPrefix(k, FilterFormName+"[") && len(values) > 0 {
			l.Query[k] = values[0]
		}
	}

	view.List = l
	view.Export = c.exportForm(r, res, defaultExportRequest(res)).View()
	view.BatchActions = res.BatchActions()

	c.count(r, res, ActionList, outcomeShown)
	c.page(r, res, ActionList, view)
}

func (c *Core) create(w http.ResponseWriter, r *http.Request, res *Resource) {
	entity := res.Meta.New()
	snap := relation.Capture(res.Meta, entity)

	f := protect(r, res.createForm(r, entity))
	f.HandleRequest(r)

	if f.IsValid() && c.save(r, res, f, snap, entity, true) {
		c.count(r, res, ActionCreate, outcomeSaved)
		backoffice.AddFlash(r, session.FlashSuccess, "The item has been created.", nil)

		if f.Clicked(ButtonSaveAndAdd) {
			c.redirect(r, res, ActionCreate, nil)
		} else {
			c.redirect(r, res, ActionList, nil)
		}
		return
	}

	c.showForm(r, res, ActionCreate, f, entity)
}

func (c *Core) read(w http.ResponseWriter, r *http.Request, res *Resource) {
	entity := c.load(r, res)

	c.count(r, res, ActionRead, outcomeRedirect)
	c.redirect(r, res, ActionUpdate, map[string]string{"id": res.ID(entity)})
}

func (c *Core) update(w http.ResponseWriter, r *http.Request, res *Resource) {
	entity := c.load(r, res)
	snap := relation.Capture(res.Meta, entity)

	f := protect(r, res.updateForm(r, entity))
	f.HandleRequest(r)

	if f.IsValid() && c.save(r, res, f, snap, entity, false) {
		c.count(r, res, ActionUpdate, outcomeSaved)
		backoffice.AddFlash(r, session.FlashSuccess, "The item has been updated.", nil)

		if f.Clicked(ButtonSaveAndList) {
			c.redirect(r, res, ActionList, nil)
			return
		}
	}

	c.showForm(r, res, ActionUpdate, f, entity)
}

func (c *Core) showForm(r *http.Request, res *Resource, action string, f *form.Form, entity interface{}) {
	outcome := outcomeShown
	if f.IsSubmitted() && !f.IsValid() {
		outcome = outcomeInvalid
	}
	c.count(r, res, action, outcome)

	view := c.newView(r, res, action)
	view.Form = f.View()
	view.Object = entity

	c.page(r, res, action, view)
}

// save reconciles the relations of entity and writes it with the changed related objects in one transaction.
//
// Database constraint violations become form errors, and save returns false.
func (c *Core) save(r *http.Request, res *Resource, f *form.Form, snap relation.Snapshot, entity interface{}, isNew bool) bool {
	changes := relation.Reconcile(res.Meta, snap, entity)

	events := c.events()
	if err := events.DispatchError(newEntityEvent(EventBeforePersist, r, res, entity, isNew)); err != nil {
		f.AddError("", userError(r, err))
		return false
	}

	uow := db.NewUnitOfWork(backoffice.GetDB(r))
	uow.Persist(entity)
	uow.Attach(changes.Objects()...)
	if isNew {
		uow.AfterInsert(changes.Relink)
	}

	if err := uow.Flush(r.Context()); err != nil {
		if !db.IsConstraintError(err) {
			backoffice.Fail(http.StatusInternalServerError, err)
		}

		var messages map[string]string
		if cmp, ok := res.Config.(ConstraintMessagesProvider); ok {
			messages = cmp.ConstraintMessages()
		}
		f.AddError("", userError(r, db.ConvertDBError(err, db.ConstraintErrorConverter(messages))))

		return false
	}

	backoffice.LogInfo(r, component, categoryPersist).Log(
		"msg", "saved",
		"id", res.ID(entity),
		"new", isNew,
		"related", changes.Len(),
		"detached", len(changes.Detached()),
	)

	if err := events.DispatchError(newEntityEvent(EventAfterPersist, r, res, entity, isNew)); err != nil {
		backoffice.LogWarn(r, component, categoryPersist).Log("msg", "after persist subscribers failed", "error", err)
	}

	return true
}

func userError(r *http.Request, err error) string {
	var ue errors.Error
	if errors.As(err, &ue) {
		return ue.UserError(translationmw.GetTranslate(r))
	}

	return err.Error()
}

func (c *Core) delete(w http.ResponseWriter, r *http.Request, res *Resource) {
	entity := c.load(r, res)

	f := form.New("delete").WithCSRF(securitymw.GetCSRFToken(r))
	f.HandleRequest(r)

	if f.IsValid() {
		events := c.events()
		err := events.DispatchError(newEntityEvent(EventBeforeDelete, r, res, entity, false))
		if err == nil {
			err = c.remove(r, res, entity)
		}

		if err == nil {
			backoffice.LogInfo(r, component, categoryPersist).Log("msg", "deleted", "id", res.ID(entity))
			if aerr := events.DispatchError(newEntityEvent(EventAfterDelete, r, res, entity, false)); aerr != nil {
				backoffice.LogWarn(r, component, categoryPersist).Log("msg", "after delete subscribers failed", "error", aerr)
			}

			c.count(r, res, ActionDelete, outcomeDeleted)
			backoffice.AddFlash(r, session.FlashSuccess, "The item has been deleted.", nil)
			c.redirect(r, res, ActionList, nil)
			return
		}

		if !db.IsConstraintError(err) && !errors.As(err, new(errors.MultiError)) {
			backoffice.Fail(http.StatusInternalServerError, err)
		}
		f.AddError("", userError(r, db.ConvertDBError(err, db.ConstraintErrorConverter(nil))))
	}

	c.showForm(r, res, ActionDelete, f, entity)
}

// remove deletes entity after detaching the rows that refer to it.
func (c *Core) remove(r *http.Request, res *Resource, entity interface{}) error {
	changes := relation.Release(res.Meta, entity)

	uow := db.NewUnitOfWork(backoffice.GetDB(r))
	uow.Attach(changes.Objects()...)
	uow.Remove(entity)

	return uow.Flush(r.Context())
}
