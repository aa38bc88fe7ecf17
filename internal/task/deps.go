// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/wingedpig/orchestrator/internal/config"
	"github.com/wingedpig/orchestrator/internal/worktree"
)

// RepoResolver resolves a repoId to its registration. *config.Config
// satisfies this directly.
type RepoResolver interface {
	Repo(id string) (config.RepoConfig, bool)
	DefaultRepo() (config.RepoConfig, bool)
}

// WorktreeManager is the subset of the worktree manager the orchestrator
// drives.
// *worktree.Manager satisfies this directly.
type WorktreeManager interface {
	CreateWorktree(ctx context.Context, repoID, repoPath, defaultBranch, taskID string) (worktree.Result, error)
	DestroyWorktree(ctx context.Context, repoPath, path string) error
	ListStale(ageThreshold time.Duration) ([]worktree.StaleWorktree, error)
}

// WorkerLauncher is the subset of the worker launcher the orchestrator
// drives.
// *worker.Launcher satisfies this directly.
type WorkerLauncher interface {
	SessionName(repoID, taskID, taskText string) string
	StartSession(ctx context.Context, name, cwd string, command []string) error
	HasSession(ctx context.Context, name string) bool
	KillSession(ctx context.Context, name string) error
}

// Config configures the orchestrator.
type Config struct {
	MaxConcurrentWorkers int
	DefaultMaxRetries    int
	CancelTimeoutMs      int
	AutoCommit           bool
	AutoPR               bool

	// PollInterval governs both the pump loop's idle period and the
	// per-task exit-poll granularity. Defaults to 500ms.
	PollInterval time.Duration

	// StaleReapInterval governs how often the background reaper scans the
	// worktree root for checkouts older than the staleness horizon and
	// destroys them. Defaults to 30m.
	StaleReapInterval time.Duration
}

func (c Config) cancelTimeout() time.Duration {
	if c.CancelTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CancelTimeoutMs) * time.Millisecond
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 500 * time.Millisecond
	}
	return c.PollInterval
}

func (c Config) reapInterval() time.Duration {
	if c.StaleReapInterval <= 0 {
		return 30 * time.Minute
	}
	return c.StaleReapInterval
}

func (c Config) maxConcurrentWorkers() int {
	if c.MaxConcurrentWorkers <= 0 {
		return 1
	}
	return c.MaxConcurrentWorkers
}
