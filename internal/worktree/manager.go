// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package worktree implements the per-task isolated git checkout: create
// a worktree and branch for a task, destroy it on
// cleanup, and reap worktrees left behind by a crashed or restarted
// process.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wingedpig/orchestrator/internal/events"
	"github.com/wingedpig/orchestrator/internal/slug"
)

const branchPrefix = "task"

// Manager creates and destroys task-scoped worktrees under a single root
// directory. It holds no cross-process lock; restart safety comes from
// ListStale scanning the filesystem rather than in-memory bookkeeping.
type Manager struct {
	mu      sync.Mutex
	git     GitExecutor
	bus     events.EventBus
	rootDir string
}

// NewManager creates a worktree manager that materializes checkouts under
// rootDir.
func NewManager(git GitExecutor, bus events.EventBus, rootDir string) *Manager {
	return &Manager{git: git, bus: bus, rootDir: rootDir}
}

// BranchName returns the deterministic branch name for a task: the prefix
// plus a slug of the task id.
func BranchName(taskID string) string {
	return branchPrefix + "-" + slug.Make(taskID, "task", 40)
}

func worktreeDirName(repoID, taskID string) string {
	return slug.Make(repoID, "repo", 24) + "-" + BranchName(taskID)
}

// Result is the outcome of CreateWorktree.
type Result struct {
	Path    string
	Branch  string
	BaseRef string
}

// CreateWorktree materializes an isolated checkout of repoPath at
// rootDir/<repoSlug>-task-<slug(taskID)>, on a new branch cut from the
// repo's default branch (or defaultBranch, if non-empty). Idempotent: if
// the target worktree or branch already exists, it is removed and
// recreated rather than failing.
func (m *Manager) CreateWorktree(ctx context.Context, repoID, repoPath, defaultBranch, taskID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	branch := BranchName(taskID)
	path := filepath.Join(m.rootDir, worktreeDirName(repoID, taskID))

	baseRef := defaultBranch
	if baseRef == "" {
		baseRef = m.git.DefaultBranch(ctx, repoPath)
	}

	// Idempotent re-creation: tear down any leftover worktree/branch from a
	// previous attempt before (re-)adding.
	if _, err := os.Stat(path); err == nil {
		m.git.WorktreeRemove(ctx, repoPath, path)
		os.RemoveAll(path)
	}
	m.git.BranchDelete(ctx, repoPath, branch)

	if err := os.MkdirAll(m.rootDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create worktree root: %w", err)
	}

	if err := m.git.WorktreeAdd(ctx, repoPath, path, branch, baseRef); err != nil {
		return Result{}, fmt.Errorf("create worktree for task %s: %w", taskID, err)
	}

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type:  events.EventWorktreeCreated,
			Scope: taskID,
			Payload: map[string]interface{}{
				"taskId":  taskID,
				"repoId":  repoID,
				"path":    path,
				"branch":  branch,
				"baseRef": baseRef,
			},
		})
	}

	return Result{Path: path, Branch: branch, BaseRef: baseRef}, nil
}

// DestroyWorktree removes a worktree and deletes its branch, releasing it
// for reuse. repoPath is the main checkout the worktree is registered
// against; it may be empty when the caller doesn't know it (stale
// reaping), since a linked worktree resolves its owning repository
// itself and so doubles as the git dir.
func (m *Manager) DestroyWorktree(ctx context.Context, repoPath, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if repoPath == "" {
		repoPath = path
	}

	info, found := m.find(ctx, repoPath, path)

	if err := m.git.WorktreeRemove(ctx, repoPath, path); err != nil {
		// The directory may already be gone (crash before cleanup); fall
		// back to a plain removal so DestroyWorktree stays idempotent.
		os.RemoveAll(path)
	}
	if found && info.Branch != "" {
		m.git.BranchDelete(ctx, repoPath, info.Branch)
	}

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type: events.EventWorktreeDestroyed,
			Payload: map[string]interface{}{
				"path":   path,
				"branch": info.Branch,
			},
		})
	}

	return nil
}

func (m *Manager) find(ctx context.Context, repoPath, path string) (WorktreeInfo, bool) {
	list, err := m.git.WorktreeList(ctx, repoPath)
	if err != nil {
		return WorktreeInfo{}, false
	}
	for _, wt := range list {
		if wt.Path == path {
			return wt, true
		}
	}
	return WorktreeInfo{}, false
}

// StaleWorktree is a worktree directory whose mtime is older than the
// horizon passed to ListStale.
type StaleWorktree struct {
	Path string
	Age  time.Duration
}

// ListStale scans rootDir for worktree directories whose modification time
// is older than ageThreshold. Detection is filesystem-mtime based rather
// than tracked in memory, so it survives a process restart.
func (m *Manager) ListStale(ageThreshold time.Duration) ([]StaleWorktree, error) {
	entries, err := os.ReadDir(m.rootDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read worktree root: %w", err)
	}

	now := time.Now()
	var stale []StaleWorktree
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age >= ageThreshold {
			stale = append(stale, StaleWorktree{
				Path: filepath.Join(m.rootDir, entry.Name()),
				Age:  age,
			})
		}
	}
	return stale, nil
}
