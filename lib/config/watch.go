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

package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher clears the cache of a Store when files change in the watched directories.
type Watcher struct {
	store     *Store
	logger    log.Logger
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	mtx       sync.Mutex
	listeners []func(name string)
	done      chan struct{}
}

// NewWatcher creates a watcher for the given directories.
//
// Listeners are notified after the cache is cleared. Bursts of events are
// collapsed into one notification.
func NewWatcher(store *Store, logger log.Logger, dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := fw.Add(filepath.Clean(dir)); err != nil {
			fw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		store:    store,
		logger:   logger,
		watcher:  fw,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}

	go w.loop()

	return w, nil
}

// OnChange registers a listener.
func (w *Watcher) OnChange(f func(name string)) {
	w.mtx.Lock()
	w.listeners = append(w.listeners, f)
	w.mtx.Unlock()
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var last string
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			last = ev.Name
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}
		case <-fire:
			w.notify(last)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn(w.logger).Log("msg", "config watcher error", "error", err)
		}
	}
}

func (w *Watcher) notify(name string) {
	if w.store != nil {
		w.store.ClearCache()
	}

	log.Info(w.logger).Log("msg", "configuration changed", "file", name)

	w.mtx.Lock()
	listeners := append([]func(string){}, w.listeners...)
	w.mtx.Unlock()

	for _, l := range listeners {
		l(name)
	}
}
