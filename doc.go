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

/*
Package backoffice generates admin back-offices for gorm models.

This package assembles the server: Pet creates a server with the default
middleware stack (request ids, logging, sessions, translations, error pages,
rendering, CSRF protection and the database connection), and Hop loads the
configuration, calls Pet, migrates the database and serves until the context
is cancelled.

The admin itself lives in services/admin. A resource is a gorm model with a
configuration value that builds its forms:

	func main() {
		err := backoffice.Hop(ctx, func(conf *config.Store, s *server.Server, conn *gorm.DB) error {
			core := admin.NewCore(conn, s.Logger)
			if err := core.Add("product", productAdmin{}); err != nil {
				return err
			}

			return s.RegisterService(core)
		}, nil, "config")
	}

The registered resource gets list, create, update, delete, export and batch
pages under /admin/product.
*/
package backoffice
