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
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/relation"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/alien-bunny/backoffice/middlewares/securitymw"
	"gorm.io/gorm/clause"
)

const (
	// BatchFormName is the name of the batch confirmation form.
	BatchFormName = "batch"

	// BatchIDsParam and BatchActionParam are posted by the selection on the list page.
	BatchIDsParam    = "ids[]"
	BatchActionParam = "action"
)

type batchRequest struct {
	IDs    string
	Action string
}

func batchForm(r *http.Request, req *batchRequest) *form.Form {
	return form.New(BatchFormName,
		form.Hidden("batch_ids", &req.IDs),
		form.Hidden("batch_action", &req.Action),
	).WithCSRF(securitymw.GetCSRFToken(r))
}

// batch runs in two steps. The list page posts the selection, which is
// answered with a confirmation form. The confirmed form runs the handler.
func (c *Core) batch(w http.ResponseWriter, r *http.Request, res *Resource) {
	req := new(batchRequest)
	f := batchForm(r, req)
	f.HandleRequest(r)

	if f.IsSubmitted() {
		c.runBatch(r, res, f, req)
		c.redirect(r, res, ActionList, nil)
		return
	}

	if err := r.ParseForm(); err != nil {
		backoffice.Fail(http.StatusBadRequest, err)
	}

	var ids []string
	for _, id := range append(r.PostForm[BatchIDsParam], r.PostForm["ids"]...) {
		if id != "" {
			ids = append(ids, id)
		}
	}
	action := r.PostForm.Get(BatchActionParam)

	if len(ids) == 0 {
		c.count(r, res, ActionBatch, outcomeRedirect)
		c.redirect(r, res, ActionList, nil)
		return
	}

	if _, found := res.BatchHandler(action); !found {
		backoffice.AddFlash(r, session.FlashError, "Unknown batch action.", nil)
		c.count(r, res, ActionBatch, outcomeRedirect)
		c.redirect(r, res, ActionList, nil)
		return
	}

	encoded, err := json.Marshal(ids)
	backoffice.MaybeFail(http.StatusInternalServerError, err)
	req.IDs = string(encoded)
	req.Action = action

	view := c.newView(r, res, ActionBatch)
	view.Form = f.View()
	view.BatchAction = action
	view.BatchCount = len(ids)

	c.count(r, res, ActionBatch, outcomeConfirm)
	c.page(r, res, ActionBatch, view)
}

func (c *Core) runBatch(r *http.Request, res *Resource, f *form.Form, req *batchRequest) {
	if !f.IsValid() {
		c.count(r, res, ActionBatch, outcomeInvalid)
		return
	}

	var raw []string
	if err := json.Unmarshal([]byte(req.IDs), &raw); err != nil {
		backoffice.LogWarn(r, component, categoryBatch).Log("msg", "invalid batch ids", "error", err)
	}
	ids := res.Meta.ParseIDs(raw)

	handler, found := res.BatchHandler(req.Action)
	if !found || len(ids) == 0 {
		c.count(r, res, ActionBatch, outcomeRedirect)
		return
	}

	if err := handler(r, res, ids); err != nil {
		backoffice.Fail(http.StatusInternalServerError, err)
	}

	backoffice.LogInfo(r, component, categoryBatch).Log("msg", "batch action done", "action", req.Action, "count", len(ids))

	if err := c.events().DispatchError(newAfterBatchEvent(r, res, req.Action, ids)); err != nil {
		backoffice.LogWarn(r, component, categoryBatch).Log("msg", "after batch subscribers failed", "error", err)
	}

	c.count(r, res, ActionBatch, outcomeCompleted)
	backoffice.AddFlash(r, session.FlashSuccess, "The batch action has been completed on @count items.", map[string]string{"@count": strconv.Itoa(len(ids))})
}

// DeleteByIDs is the default "delete" batch action: it deletes the rows with the given identifiers.
//
// Related rows that refer to the deleted ones are detached first.
func DeleteByIDs(r *http.Request, res *Resource, ids []interface{}) error {
	conn := backoffice.GetDB(r)

	rows := res.Meta.NewSlice()
	err := conn.
		Preload(clause.Associations).
		Where(clause.IN{Column: clause.Column{Table: clause.CurrentTable, Name: res.Meta.PrimaryColumn()}, Values: ids}).
		Find(rows).Error
	if err != nil {
		return err
	}

	uow := db.NewUnitOfWork(conn)
	for _, obj := range relation.Objects(rows) {
		uow.Attach(relation.Release(res.Meta, obj).Objects()...)
		uow.Remove(obj)
	}

	return uow.Flush(r.Context())
}
