// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"path/filepath"
)

// WorktreeInfo describes a git worktree created for a task.
type WorktreeInfo struct {
	Path     string
	Branch   string
	BaseRef  string // repo default branch this worktree was cut from
	Commit   string // HEAD commit SHA at creation time
	Detached bool
	IsBare   bool
}

// Name returns the directory name of the worktree.
func (w *WorktreeInfo) Name() string {
	return filepath.Base(w.Path)
}

// GitStatus represents the status of a git working directory.
type GitStatus struct {
	Clean     bool
	Modified  []string
	Added     []string
	Deleted   []string
	Renamed   []string
	Untracked []string
}

// HasChanges returns true if there are any changes in the working directory.
func (s *GitStatus) HasChanges() bool {
	if s.Clean {
		return false
	}
	return len(s.Modified) > 0 || len(s.Added) > 0 ||
		len(s.Deleted) > 0 || len(s.Renamed) > 0 ||
		len(s.Untracked) > 0
}

// BranchInfo contains information about the current branch.
type BranchInfo struct {
	Name     string
	Detached bool
	Commit   string
}

// GitExecutor is the interface for the git operations the worktree manager
// needs. RealGitExecutor shells out; tests supply a fake.
type GitExecutor interface {
	WorktreeList(ctx context.Context, repoDir string) ([]WorktreeInfo, error)
	WorktreeAdd(ctx context.Context, repoDir, path, branch, baseRef string) error
	WorktreeRemove(ctx context.Context, repoDir, path string) error
	BranchDelete(ctx context.Context, repoDir, branch string) error
	Status(ctx context.Context, path string) (GitStatus, error)
	BranchInfo(ctx context.Context, path string) (BranchInfo, error)
	DefaultBranch(ctx context.Context, repoDir string) string
}
