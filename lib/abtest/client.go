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
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"

	"golang.org/x/net/publicsuffix"
)

// MockRemoteAddr is the client address seen by handlers behind a mock client.
//
// It is a public documentation address, so endpoints restricted to private
// networks refuse the mock client.
const MockRemoteAddr = "192.0.2.1:1234"

var _ TestClientDelegate = &ClientDelegate{}

// ClientDelegate sends the requests of a TestClient with an *http.Client.
//
// Redirects are not followed, so tests can assert them. Cookies are kept in a jar.
type ClientDelegate struct {
	*http.Client
}

func newClientDelegate(transport http.RoundTripper) *ClientDelegate {
	jar, _ := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})

	return &ClientDelegate{
		Client: &http.Client{
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (d *ClientDelegate) NewRequest(method, target string, body io.Reader) *http.Request {
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		panic(err)
	}

	return req
}

// handlerTransport serves the requests with a handler in the same process.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	sr := r.Clone(r.Context())
	sr.RemoteAddr = MockRemoteAddr
	sr.RequestURI = r.URL.RequestURI()
	if sr.Body == nil {
		sr.Body = http.NoBody
	}

	w := httptest.NewRecorder()
	t.handler.ServeHTTP(w, sr)
	if r.Body != nil {
		r.Body.Close()
	}

	resp := w.Result()
	resp.Request = r

	return resp, nil
}

// NewHTTPTestClient creates a TestClient that talks to a running server over the network.
func NewHTTPTestClient(base string) *TestClient {
	return &TestClient{
		Delegate: newClientDelegate(nil),
		base:     base,
	}
}

// NewMockTestClient creates a TestClient that calls the handler directly.
func NewMockTestClient(base string, handler http.Handler) *TestClient {
	return &TestClient{
		Delegate: newClientDelegate(handlerTransport{handler: handler}),
		base:     base,
	}
}
