// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWorktreeListPorcelain(t *testing.T) {
	output := "worktree /repo\nHEAD abc123\nbranch refs/heads/main\n\n" +
		"worktree /repo-wt\nHEAD def456\nbranch refs/heads/task-foo\n\n" +
		"worktree /repo-bare\nbare\n"

	list := ParseWorktreeListPorcelain(output)
	assert.Len(t, list, 3)
	assert.Equal(t, "/repo", list[0].Path)
	assert.Equal(t, "main", list[0].Branch)
	assert.Equal(t, "task-foo", list[1].Branch)
	assert.True(t, list[2].IsBare)
}

func TestParseGitStatus(t *testing.T) {
	s := ParseGitStatus("")
	assert.True(t, s.Clean)

	s = ParseGitStatus(" M foo.go\n?? bar.go\nA  baz.go\n")
	assert.False(t, s.Clean)
	assert.Contains(t, s.Modified, "foo.go")
	assert.Contains(t, s.Untracked, "bar.go")
	assert.Contains(t, s.Added, "baz.go")
}

func TestParseBranchInfo(t *testing.T) {
	b := ParseBranchInfo("main\n")
	assert.Equal(t, "main", b.Name)
	assert.False(t, b.Detached)

	b = ParseBranchInfo("(HEAD detached at abc1234)")
	assert.True(t, b.Detached)
	assert.Equal(t, "abc1234", b.Commit)
}
