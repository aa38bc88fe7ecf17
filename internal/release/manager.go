// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wingedpig/orchestrator/internal/events"
)

// Manager serializes every release operation (createSnapshot, activate,
// rollback, integrityCheck) over a single root directory. It watches the
// root directory itself, not its subdirectories, so an external swap of
// the current link invalidates the cached integrity result without a
// daemon restart; changes inside a release directory, its manifest
// included, do not invalidate the cache.
type Manager struct {
	mu   sync.Mutex // serializes create/activate/rollback/integrityCheck
	root string
	bus  events.EventBus

	cacheMu   sync.RWMutex
	cached    *IntegrityResult
	cacheSHA  string
	cacheMode IntegrityMode

	watcher *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a release manager rooted at root (RELEASE_ROOT_DIR).
// Watching is best-effort: if fsnotify can't start (e.g. too many open
// watches on the host), the manager still works, just without cache
// invalidation on external changes.
func NewManager(root string, bus events.EventBus) *Manager {
	m := &Manager{root: root, bus: bus, closeCh: make(chan struct{})}

	if w, err := fsnotify.NewWatcher(); err == nil {
		m.watcher = w
		if err := w.Add(root); err != nil {
			log.Printf("release: watch %s: %v", root, err)
		}
		m.wg.Add(1)
		go m.watchLoop()
	} else {
		log.Printf("release: fsnotify unavailable, integrity cache will not auto-invalidate: %v", err)
	}

	return m
}

func (m *Manager) watchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.closeCh:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == currentLink || filepath.Base(event.Name) == manifestFile {
				m.invalidateCache()
			}
		case _, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (m *Manager) invalidateCache() {
	m.cacheMu.Lock()
	m.cached = nil
	m.cacheMu.Unlock()
}

// Close stops the background watcher.
func (m *Manager) Close() error {
	close(m.closeCh)
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
	return nil
}

func (m *Manager) publish(ctx context.Context, typ, scope string, payload map[string]interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, events.Event{Type: typ, Scope: scope, Payload: payload})
}

// CreateSnapshot creates a new content-addressed release from sourceDir.
func (m *Manager) CreateSnapshot(ctx context.Context, sourceDir string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := CreateSnapshot(m.root, sourceDir, time.Now())
	if err != nil {
		return Info{}, err
	}

	m.invalidateCache()
	m.publish(ctx, events.EventReleaseSnapshotted, info.SHA, map[string]interface{}{
		"sha":       info.SHA,
		"sourceDir": info.SourceDir,
	})
	return info, nil
}

// Activate swaps current to the given release sha, demoting the prior
// current to previous.
func (m *Manager) Activate(ctx context.Context, sha string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := Activate(m.root, sha); err != nil {
		return err
	}

	m.invalidateCache()
	m.publish(ctx, events.EventReleaseActivated, sha, map[string]interface{}{"sha": sha})
	return nil
}

// Rollback restores target ("previous" or an explicit sha) as current.
func (m *Manager) Rollback(ctx context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := Rollback(m.root, target); err != nil {
		return err
	}

	sha, _ := CurrentSHA(m.root)
	m.invalidateCache()
	m.publish(ctx, events.EventReleaseRolledBack, sha, map[string]interface{}{
		"target":  target,
		"current": sha,
	})
	return nil
}

// IntegrityCheck verifies the current release's manifest, caching the
// result until the next invalidating filesystem event or activation.
func (m *Manager) IntegrityCheck(ctx context.Context, mode IntegrityMode) IntegrityResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	sha, _ := CurrentSHA(m.root)

	m.cacheMu.RLock()
	if m.cached != nil && m.cacheSHA == sha && m.cacheMode == mode {
		cached := *m.cached
		m.cacheMu.RUnlock()
		return cached
	}
	m.cacheMu.RUnlock()

	result := IntegrityCheck(m.root, mode)

	m.cacheMu.Lock()
	m.cached = &result
	m.cacheSHA = sha
	m.cacheMode = mode
	m.cacheMu.Unlock()

	m.publish(ctx, events.EventReleaseIntegrity, sha, map[string]interface{}{
		"ok":         result.OK,
		"checked":    result.Checked,
		"missing":    result.Missing,
		"mismatches": result.Mismatches,
	})
	return result
}

// CurrentSHA returns the sha of the active release, or "" if none.
func (m *Manager) CurrentSHA() (string, error) {
	return CurrentSHA(m.root)
}
