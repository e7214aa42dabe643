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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/alien-bunny/backoffice/lib/render"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

var tokenRegexp = regexp.MustCompile(`name="([a-z_]+)\[_token\]" value="([0-9a-f]+)"`)

type TestClientDelegate interface {
	Do(*http.Request) (*http.Response, error)
	NewRequest(method, target string, body io.Reader) *http.Request
}

type TestClient struct {
	Delegate TestClientDelegate
	Token    string
	base     string
}

// Request sends a request and asserts its status code.
//
// When the status code does not match, the response body is printed to help debugging.
func (tc *TestClient) Request(method, endpoint string, body io.Reader, processReq func(*http.Request), processResp func(*http.Response), statusCode int) {
	req := tc.Delegate.NewRequest(method, tc.base+endpoint, body)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.Token != "" {
		req.Header.Set("X-CSRF-Token", tc.Token)
	}
	if processReq != nil {
		processReq(req)
	}

	resp, err := tc.Delegate.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	if statusCode != resp.StatusCode {
		fmt.Printf("\n%s %s\n\n%s\n\n", method, endpoint, tc.ReadBody(resp, false))
	}

	Expect(resp.StatusCode).To(Equal(statusCode))

	if processResp != nil {
		processResp(resp)
	}
}

// Page fetches an HTML page and returns its body.
func (tc *TestClient) Page(endpoint string, statusCode int) string {
	var body string
	tc.Request("GET", endpoint, nil, func(req *http.Request) {
		req.Header.Set("Accept", "text/html")
	}, func(resp *http.Response) {
		body = tc.ReadBody(resp, false)
	}, statusCode)

	return body
}

// Submit posts an url-encoded form and returns the response.
//
// The body of the response is read into the returned string.
func (tc *TestClient) Submit(endpoint string, values url.Values, statusCode int) (*http.Response, string) {
	var (
		response *http.Response
		body     string
	)

	tc.Request("POST", endpoint, strings.NewReader(values.Encode()), func(req *http.Request) {
		req.Header.Set("Accept", "text/html")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}, func(resp *http.Response) {
		response = resp
		body = tc.ReadBody(resp, false)
	}, statusCode)

	return response, body
}

// FormToken extracts the CSRF token of a form from an HTML page.
func (tc *TestClient) FormToken(page, form string) string {
	for _, match := range tokenRegexp.FindAllStringSubmatch(page, -1) {
		if match[1] == form {
			return match[2]
		}
	}

	return ""
}

func (tc *TestClient) JSONBuffer(v interface{}) io.Reader {
	buf := bytes.NewBuffer(nil)
	Expect(json.NewEncoder(buf).Encode(v)).To(Succeed())
	return buf
}

func (tc *TestClient) AssertJSON(resp *http.Response, v interface{}, matcher types.GomegaMatcher) {
	tc.ConsumePrefix(resp)
	Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	Expect(v).To(matcher)
}

func (tc *TestClient) GetToken() {
	tc.Request("GET", "/api/token", nil, func(req *http.Request) {
		req.Header.Set("Accept", "text/plain")
	}, func(resp *http.Response) {
		token := tc.ReadBody(resp, false)
		Expect(token).NotTo(BeZero())

		tc.Token = token
	}, http.StatusOK)
}

func (tc *TestClient) ConsumePrefix(r *http.Response) bool {
	prefix := make([]byte, len(render.JSONSecurityPrefix))
	_, err := io.ReadFull(r.Body, prefix)
	Expect(err).NotTo(HaveOccurred())

	return string(prefix) == render.JSONSecurityPrefix
}

func (tc *TestClient) ReadBody(r *http.Response, JSONPrefix bool) string {
	if JSONPrefix {
		Expect(tc.ConsumePrefix(r)).To(BeTrue())
	}

	b, err := ioutil.ReadAll(r.Body)
	Expect(err).NotTo(HaveOccurred())

	return string(b)
}

// Location returns the path of the redirect target of a response.
func Location(resp *http.Response) string {
	loc := resp.Header.Get("Location")
	if u, err := url.Parse(loc); err == nil {
		if u.RawQuery != "" {
			return u.Path + "?" + u.RawQuery
		}
		return u.Path
	}

	return loc
}
