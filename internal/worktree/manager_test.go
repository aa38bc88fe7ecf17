// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/orchestrator/internal/events"
)

type fakeGit struct {
	added     []string
	removed   []string
	branchesD []string
	worktrees []WorktreeInfo
}

func (f *fakeGit) WorktreeList(ctx context.Context, repoDir string) ([]WorktreeInfo, error) {
	return f.worktrees, nil
}

func (f *fakeGit) WorktreeAdd(ctx context.Context, repoDir, path, branch, baseRef string) error {
	f.added = append(f.added, path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	f.worktrees = append(f.worktrees, WorktreeInfo{Path: path, Branch: branch, BaseRef: baseRef})
	return nil
}

func (f *fakeGit) WorktreeRemove(ctx context.Context, repoDir, path string) error {
	f.removed = append(f.removed, path)
	for i, wt := range f.worktrees {
		if wt.Path == path {
			f.worktrees = append(f.worktrees[:i], f.worktrees[i+1:]...)
			break
		}
	}
	return os.RemoveAll(path)
}

func (f *fakeGit) BranchDelete(ctx context.Context, repoDir, branch string) error {
	f.branchesD = append(f.branchesD, branch)
	return nil
}

func (f *fakeGit) Status(ctx context.Context, path string) (GitStatus, error) {
	return GitStatus{Clean: true}, nil
}

func (f *fakeGit) BranchInfo(ctx context.Context, path string) (BranchInfo, error) {
	return BranchInfo{}, nil
}

func (f *fakeGit) DefaultBranch(ctx context.Context, repoDir string) string {
	return "main"
}

func TestManager_CreateWorktree(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	mgr := NewManager(git, events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100}), root)

	result, err := mgr.CreateWorktree(context.Background(), "repo-a", "/src/repo-a", "", "task-123")
	require.NoError(t, err)
	assert.Equal(t, "task-task-123", result.Branch)
	assert.Equal(t, "main", result.BaseRef)
	assert.Equal(t, filepath.Join(root, "repo-a-task-task-123"), result.Path)
	assert.DirExists(t, result.Path)
}

func TestManager_CreateWorktree_Idempotent(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	mgr := NewManager(git, nil, root)

	r1, err := mgr.CreateWorktree(context.Background(), "repo-a", "/src/repo-a", "main", "task-123")
	require.NoError(t, err)

	r2, err := mgr.CreateWorktree(context.Background(), "repo-a", "/src/repo-a", "main", "task-123")
	require.NoError(t, err)

	assert.Equal(t, r1.Path, r2.Path)
	assert.Equal(t, r1.Branch, r2.Branch)
	assert.Len(t, git.added, 2)
	assert.Contains(t, git.branchesD, r1.Branch)
}

func TestManager_DestroyWorktree(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	mgr := NewManager(git, nil, root)

	result, err := mgr.CreateWorktree(context.Background(), "repo-a", "/src/repo-a", "main", "task-1")
	require.NoError(t, err)

	require.NoError(t, mgr.DestroyWorktree(context.Background(), "/src/repo-a", result.Path))
	assert.Contains(t, git.removed, result.Path)
	assert.Contains(t, git.branchesD, result.Branch)
	assert.NoDirExists(t, result.Path)
}

func TestManager_DestroyWorktree_EmptyRepoPath(t *testing.T) {
	root := t.TempDir()
	git := &fakeGit{}
	mgr := NewManager(git, nil, root)

	result, err := mgr.CreateWorktree(context.Background(), "repo-a", "/src/repo-a", "main", "task-9")
	require.NoError(t, err)

	// Stale reaping destroys without knowing the owning repo; the
	// worktree path itself serves as the git dir.
	require.NoError(t, mgr.DestroyWorktree(context.Background(), "", result.Path))
	assert.Contains(t, git.removed, result.Path)
	assert.NoDirExists(t, result.Path)
}

func TestManager_ListStale(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "old-wt")
	require.NoError(t, os.MkdirAll(oldDir, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, old, old))

	newDir := filepath.Join(root, "new-wt")
	require.NoError(t, os.MkdirAll(newDir, 0o755))

	mgr := NewManager(&fakeGit{}, nil, root)
	stale, err := mgr.ListStale(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldDir, stale[0].Path)
}

func TestBranchName_Deterministic(t *testing.T) {
	assert.Equal(t, BranchName("abc"), BranchName("abc"))
	assert.Contains(t, BranchName("My Task!"), "task-")
}
