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
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/export"
	"github.com/alien-bunny/backoffice/lib/form"
	"github.com/alien-bunny/backoffice/lib/relation"
	"github.com/alien-bunny/backoffice/lib/session"
	"github.com/alien-bunny/backoffice/lib/util"
	"github.com/alien-bunny/backoffice/middlewares/securitymw"
)

// ExportFormName is the name of the export form on the list page.
const ExportFormName = "export"

type exportRequest struct {
	Format string
	Fields []string
}

func defaultExportRequest(res *Resource) *exportRequest {
	req := &exportRequest{Format: string(export.FormatCSV)}
	for _, f := range res.Meta.ExportFields() {
		req.Fields = append(req.Fields, f.Name)
	}

	return req
}

func (c *Core) exportForm(r *http.Request, res *Resource, req *exportRequest) *form.Form {
	var formats []form.Option
	for _, f := range export.Formats() {
		formats = append(formats, form.Option{Value: string(f), Label: strings.ToUpper(string(f))})
	}

	var fields []form.Option
	for _, f := range res.Meta.ExportFields() {
		label := util.Humanize(f.Name)
		if f.Type == relation.FieldTypeObject {
			label += " (" + f.Type + ")"
		}
		fields = append(fields, form.Option{Value: f.Name, Label: label})
	}

	return form.New(ExportFormName,
		form.Choice("format", "Format", &req.Format, formats, form.Required()),
		form.MultiChoice("fields", "Fields", &req.Fields, fields),
	).WithCSRF(securitymw.GetCSRFToken(r))
}

func (c *Core) export(w http.ResponseWriter, r *http.Request, res *Resource) {
	req := new(exportRequest)
	f := c.exportForm(r, res, req)
	f.HandleRequest(r)

	if !f.IsValid() || len(req.Fields) == 0 {
		if f.IsSubmitted() {
			backoffice.AddFlash(r, session.FlashError, "Choose a format and at least one field to export.", nil)
		}
		c.count(r, res, ActionExport, outcomeRedirect)
		c.redirect(r, res, ActionList, nil)
		return
	}

	format, err := export.ParseFormat(req.Format)
	backoffice.MaybeFail(http.StatusBadRequest, err)

	buf := bytes.NewBuffer(nil)
	err = c.exporter.Export(r.Context(), buf, backoffice.GetDB(r), format, nil, res.Meta, req.Fields)
	backoffice.MaybeFail(http.StatusInternalServerError, err)

	filename := res.Slug + "-" + time.Now().UTC().Format("20060102-150405") + format.Extension()

	keyvals := []interface{}{"msg", "exported", "format", format, "fields", strings.Join(req.Fields, ","), "size", buf.Len()}
	if archiver := c.getArchiver(); archiver != nil {
		location, err := archiver.Archive(r.Context(), filename, format.ContentType(), bytes.NewReader(buf.Bytes()))
		if err != nil {
			backoffice.LogWarn(r, component, categoryExport).Log("msg", "failed to archive the export", "file", filename, "error", err)
		} else {
			keyvals = append(keyvals, "location", location)
		}
	}

	backoffice.LogInfo(r, component, categoryExport).Log(keyvals...)
	c.count(r, res, ActionExport, outcomeExported)

	backoffice.Render(r).Binary(format.ContentType(), filename, buf)
}
