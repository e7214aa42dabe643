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

// Package session encodes sessions into signed cookie values.
//
// The value is the hex encoded HMAC-SHA256 signature followed by the hex
// encoded payload: the keys and values of the session, each preceded by a
// 0 byte. Keys and values therefore can't contain 0 bytes.
package session

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/alien-bunny/backoffice/lib/errors"
)

const (
	sessionIDKey = "_ID"
	hashLen      = sha256.Size
	// KeyLength is the length of a SecretKey in bytes.
	KeyLength = 32
)

var (
	ErrMalformed = errors.New("malformed session data")
	ErrSignature = errors.New("session signature verification failed")
)

// Session is the data stored in the session cookie.
type Session map[string]string

// ID returns the session ID, generating one on the first call.
func (s Session) ID() string {
	if id, ok := s[sessionIDKey]; ok {
		return id
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	s[sessionIDKey] = hex.EncodeToString(buf)

	return s[sessionIDKey]
}

// Reset removes everything from the session.
func (s Session) Reset() {
	for k := range s {
		delete(s, k)
	}
}

// EncodeSession signs and encodes the session. The keys are sorted, so equal sessions have equal values.
//
// An empty session is encoded as an empty string.
func EncodeSession(s Session, key SecretKey) (string, error) {
	if len(s) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(s))
	for k, v := range s {
		if strings.IndexByte(k, 0) >= 0 {
			return "", fmt.Errorf("session key %q contains a 0 byte", k)
		}
		if strings.IndexByte(v, 0) >= 0 {
			return "", fmt.Errorf("value of session key %q contains a 0 byte", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteByte(0)
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(s[k])
	}
	payload := buf.Bytes()

	return hex.EncodeToString(key.Sign(payload[1:])) + hex.EncodeToString(payload), nil
}

// DecodeSession verifies and decodes a session. A nil key skips the verification.
//
// On error, an empty session is returned along with it.
func DecodeSession(encoded string, key SecretKey) (Session, error) {
	b, err := hex.DecodeString(encoded)
	if err != nil {
		return make(Session), errors.Wrap(err, "malformed session data", nil)
	}

	if len(b) < hashLen+1 {
		return make(Session), ErrMalformed
	}

	signature, payload := b[:hashLen], b[hashLen:]
	if key != nil && !key.Verify(payload[1:], signature) {
		return make(Session), ErrSignature
	}
	if payload[0] != 0 {
		return make(Session), ErrMalformed
	}

	pieces := bytes.Split(payload[1:], []byte{0})
	if len(pieces)%2 == 1 {
		return make(Session), ErrMalformed
	}

	sess := make(Session, len(pieces)/2)
	for i := 0; i < len(pieces); i += 2 {
		sess[string(pieces[i])] = string(pieces[i+1])
	}

	return sess, nil
}

// SecretKey signs and verifies the cookies. It must be KeyLength bytes long.
type SecretKey []byte

// ParseSecretKey decodes a hex encoded key, e.g. the output of the gensecret command.
func ParseSecretKey(encoded string) (SecretKey, error) {
	b, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "the session key is not hex encoded", nil)
	}
	if len(b) != KeyLength {
		return nil, fmt.Errorf("the session key must be %d bytes long, got %d", KeyLength, len(b))
	}

	return SecretKey(b), nil
}

// MustParse is ParseSecretKey that panics on error.
func MustParse(encoded string) SecretKey {
	key, err := ParseSecretKey(encoded)
	if err != nil {
		panic(err)
	}

	return key
}

// Sign returns the signature of message. A key of the wrong length gives an empty signature.
func (s SecretKey) Sign(message []byte) []byte {
	if len(s) != KeyLength {
		return []byte{}
	}

	mac := hmac.New(sha256.New, s)
	mac.Write(message)

	return mac.Sum(nil)
}

func (s SecretKey) Verify(message, signature []byte) bool {
	expected := s.Sign(message)
	return len(expected) > 0 && hmac.Equal(signature, expected)
}
