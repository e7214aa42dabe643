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

package session

import (
	"encoding/json"
)

const flashKey = "_flash"

// Flash is a one-time message shown on the next page.
type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// AddFlash queues a message in the session.
func (s Session) AddFlash(kind, message string) {
	flashes := s.peekFlashes()
	flashes = append(flashes, Flash{Kind: kind, Message: message})

	encoded, err := json.Marshal(flashes)
	if err != nil {
		return
	}

	s[flashKey] = string(encoded)
}

// Flashes returns the queued messages and removes them from the session.
func (s Session) Flashes() []Flash {
	flashes := s.peekFlashes()
	delete(s, flashKey)

	return flashes
}

func (s Session) peekFlashes() []Flash {
	raw, found := s[flashKey]
	if !found || raw == "" {
		return nil
	}

	var flashes []Flash
	if err := json.Unmarshal([]byte(raw), &flashes); err != nil {
		return nil
	}

	return flashes
}
