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

// Package util contains small helpers shared by the other packages.
package util

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"net"
	"net/http"
	"strings"
	"unicode"
)

// Validator is implemented by values that can check their own consistency.
type Validator interface {
	Validate() error
}

// Sanitizer is implemented by values that remove sensitive data before they are rendered.
type Sanitizer interface {
	Sanitize()
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomString generates a random string of ASCII letters.
func RandomString(length int) string {
	max := big.NewInt(int64(len(letters)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = letters[n.Int64()]
	}

	return string(b)
}

// RandomSecret generates length random bytes and returns them hex encoded.
func RandomSecret(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}

	return hex.EncodeToString(buf)
}

// SetContext returns a shallow copy of r with value stored under key in its context.
func SetContext(r *http.Request, key, value interface{}) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), key, value))
}

// Humanize turns a Go field name into a label.
//
// "CreatedAt" becomes "Created at", "ID" stays "ID".
func Humanize(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				sb.WriteRune(' ')
				if nextLower {
					r = unicode.ToLower(r)
				}
			}
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

var (
	_ http.Hijacker = ResponseWriterWrapper{}
	_ http.Flusher  = ResponseWriterWrapper{}
	_ http.Pusher   = ResponseWriterWrapper{}
)

// ResponseWriterWrapper is the base of the ResponseWriters that middlewares wrap around the original one.
//
// It forwards the optional interfaces when the wrapped writer implements them.
type ResponseWriterWrapper struct {
	http.ResponseWriter
}

func (w ResponseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}

	return nil, nil, http.ErrNotSupported
}

func (w ResponseWriterWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w ResponseWriterWrapper) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}

	return http.ErrNotSupported
}

// Unwrap lets http.ResponseController reach the original writer.
func (w ResponseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
