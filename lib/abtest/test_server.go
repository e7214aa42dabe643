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

package abtest

import (
	"context"
	"net/http/httptest"

	"github.com/alien-bunny/backoffice"
	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/server"
	"gorm.io/gorm"
)

// SetupFunc configures the test server. The returned DataMockerFunc runs after the database is migrated.
type SetupFunc func(conf *config.Store, s *server.Server, conn *gorm.DB) (DataMockerFunc, error)

// Hop starts a test server on a local port.
//
// The returned function creates clients with their own cookie jar.
func Hop(setup SetupFunc) (*TestServer, func() *TestClient) {
	ts := NewTestServer()
	ts.Setup(setup)
	ts.HTTP = httptest.NewServer(ts.Server.Handler())
	ts.mock()

	base := ts.HTTP.URL

	return ts, func() *TestClient {
		return NewHTTPTestClient(base)
	}
}

// HopMock sets up a test server without listening on a port. Requests are served through a recorder.
func HopMock(setup SetupFunc) (*TestServer, func() *TestClient) {
	ts := NewTestServer()
	ts.Setup(setup)
	ts.mock()

	handler := ts.Server.Handler()
	base := "http://test"

	return ts, func() *TestClient {
		return NewMockTestClient(base, handler)
	}
}

type TestServer struct {
	Server *server.Server
	Conn   *gorm.DB
	Config *config.Store
	HTTP   *httptest.Server

	mocker DataMockerFunc
}

func NewTestServer() *TestServer {
	return &TestServer{}
}

func (s *TestServer) Setup(setup SetupFunc) *server.Server {
	logger := GetLogger()
	s.Config = GetConfig(logger)
	s.Conn = OpenDB()

	srv, err := backoffice.Pet(s.Config, logger, s.Conn)
	if err != nil {
		panic(err)
	}
	s.Server = srv

	if setup != nil {
		s.mocker, err = setup(s.Config, srv, s.Conn)
		if err != nil {
			panic(err)
		}
	}

	if err := backoffice.Migrate(context.Background(), srv); err != nil {
		panic(err)
	}

	return srv
}

func (s *TestServer) mock() {
	if s.mocker != nil {
		if err := s.mocker(s.Conn); err != nil {
			panic(err)
		}
	}
}

// Close stops the listening server and closes the database.
func (s *TestServer) Close() {
	if s.HTTP != nil {
		s.HTTP.Close()
	}

	if sqlDB, err := s.Conn.DB(); err == nil {
		sqlDB.Close()
	}
}
