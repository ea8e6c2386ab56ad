// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tenant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrUnknownTenant is returned when no profile exists for a tenant id. It is
// the only request-level failure the classification core surfaces.
var ErrUnknownTenant = errors.New("unknown tenant")

// maxProfileSize guards against oversized YAML files.
const maxProfileSize = 1 * 1024 * 1024

// Store loads tenant profiles from a directory of YAML files and serves them
// to concurrent requests. Reload builds a complete new profile set and swaps
// it atomically, so an in-flight request never observes a half-updated
// profile.
type Store struct {
	dir      string
	mu       sync.RWMutex
	profiles map[string]*TenantProfile

	// watcher for hot-reloading
	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}

	// OnReload is invoked after a successful watcher-triggered reload.
	OnReload func()
}

// NewStore creates a store rooted at dir. Load must be called before Get.
func NewStore(dir string) *Store {
	return &Store{
		dir:         dir,
		profiles:    make(map[string]*TenantProfile),
		stopWatcher: make(chan struct{}),
	}
}

// Load reads and validates every profile in the directory. Any invalid
// profile is a configuration error and fails the whole load; the previous
// profile set (if any) stays active.
func (s *Store) Load() error {
	loaded, err := s.loadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.profiles = loaded
	s.mu.Unlock()

	log.Infof("Loaded %d tenant profiles from %s", len(loaded), s.dir)
	return nil
}

// Reload is an alias of Load kept for call-site clarity: it atomically
// replaces the active profile set.
func (s *Store) Reload() error {
	return s.Load()
}

func (s *Store) loadAll() (map[string]*TenantProfile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants directory %s: %w", s.dir, err)
	}

	loaded := make(map[string]*TenantProfile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(s.dir, name)
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.Size() > maxProfileSize {
			return nil, fmt.Errorf("tenant profile %s exceeds size limit (%d bytes)", path, info.Size())
		}

		profile, err := loadProfile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := loaded[profile.ID]; dup {
			return nil, fmt.Errorf("duplicate tenant id %s (second definition in %s)", profile.ID, path)
		}
		loaded[profile.ID] = profile
	}

	return loaded, nil
}

func loadProfile(path string) (*TenantProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant profile %s: %w", path, err)
	}

	var profile TenantProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse tenant profile %s: %w", path, err)
	}
	if profile.ID == "" {
		// Default the id from the file name stem.
		base := filepath.Base(path)
		profile.ID = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}
	profile.FilePath = path

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Get returns the active profile for a tenant id, or ErrUnknownTenant.
// The returned profile is shared and must be treated as read-only.
func (s *Store) Get(tenantID string) (*TenantProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	return profile, nil
}

// IDs returns the ids of all loaded tenants, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartWatcher starts a background fsnotify watcher that reloads profiles
// when the tenants directory changes. A failed reload keeps the previous
// profile set active.
func (s *Store) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Infof("Tenants directory changed (%s), reloading profiles...", event.Name)
					// Debounce editor write bursts.
					time.Sleep(100 * time.Millisecond)
					if err := s.Reload(); err != nil {
						log.Errorf("Failed to reload tenant profiles, keeping previous set: %v", err)
						continue
					}
					if s.OnReload != nil {
						s.OnReload()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Tenant watcher error: %v", err)
			case <-s.stopWatcher:
				return
			}
		}
	}()

	return nil
}

// StopWatcher stops the file watcher.
func (s *Store) StopWatcher() {
	if s.watcher != nil {
		select {
		case <-s.stopWatcher:
			// Channel already closed
		default:
			close(s.stopWatcher)
		}
		s.watcher.Close()
		s.watcher = nil
	}
}
