/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tuning loads and live-reloads the mainTuning parameters described
// in spec §6: operator-wide values read from a ConfigMap at startup and kept
// observable at runtime via an fsnotify watch on the projected ConfigMap
// volume.
package tuning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"
)

// Tuning is mainTuning from spec §6, plus ServerShutdownAllowedFields which
// resolves Open Question #1 (see DESIGN.md): the whitelist of Domain spec
// fields that are compatible with Model-in-Image online update and therefore
// do not force onlineUpdate.enabled=false when they change.
type Tuning struct {
	InitialShortDelay                  time.Duration `yaml:"initialShortDelay"`
	StatusUpdateTimeoutSeconds         int           `yaml:"statusUpdateTimeoutSeconds"`
	DomainPresenceFailureRetrySeconds  int           `yaml:"domainPresenceFailureRetrySeconds"`
	DomainPresenceFailureRetryMaxCount int           `yaml:"domainPresenceFailureRetryMaxCount"`
	ServerShutdownAllowedFields        []string      `yaml:"serverShutdownAllowedFields"`
}

// Default returns the built-in defaults used when no tuning ConfigMap is
// mounted, matching the values spec §6/§8 examples assume.
func Default() Tuning {
	return Tuning{
		InitialShortDelay:                  2 * time.Second,
		StatusUpdateTimeoutSeconds:         20,
		DomainPresenceFailureRetrySeconds:  10,
		DomainPresenceFailureRetryMaxCount: 5,
		ServerShutdownAllowedFields:        []string{"introspectVersion", "configuration.model.onlineUpdate"},
	}
}

// Load reads and parses a Tuning from path, falling back to Default() values
// for any field the file omits.
func Load(path string) (Tuning, error) {
	t := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("reading tuning file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parsing tuning file %s: %w", path, err)
	}
	return t, nil
}

// Watch loads path immediately and then emits a freshly parsed Tuning on the
// returned channel every time the file changes, until ctx is done. A failed
// reload (e.g. a transient partial write during a ConfigMap projection
// update) is logged and skipped rather than sent, since stale-but-valid
// tuning is preferable to propagating a parse error to every consumer.
func Watch(ctx context.Context, log logr.Logger, path string) (<-chan Tuning, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating tuning fsnotify watcher: %w", err)
	}
	// Kubernetes projects ConfigMap volumes via a symlink swap on the parent
	// directory, not a write to the file itself, so the watch must be on the
	// directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching tuning directory: %w", err)
	}

	ch := make(chan Tuning, 1)
	ch <- initial

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) &&
					filepath.Base(ev.Name) != filepath.Base(path) {
					continue
				}
				t, err := Load(path)
				if err != nil {
					log.Error(err, "reloading tuning file", "path", path)
					continue
				}
				select {
				case ch <- t:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error(err, "tuning fsnotify watcher error")
			}
		}
	}()

	return ch, nil
}
