// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RealGitExecutor shells out to the git binary on PATH.
type RealGitExecutor struct{}

// NewRealGitExecutor creates a new git executor.
func NewRealGitExecutor() *RealGitExecutor {
	return &RealGitExecutor{}
}

// WorktreeList returns the list of git worktrees registered against repoDir.
// Uses --porcelain format for reliable parsing of paths with spaces.
func (e *RealGitExecutor) WorktreeList(ctx context.Context, repoDir string) ([]WorktreeInfo, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "worktree", "list", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return ParseWorktreeListPorcelain(string(output)), nil
}

// WorktreeAdd creates a new worktree at path on a new branch cut from baseRef.
func (e *RealGitExecutor) WorktreeAdd(ctx context.Context, repoDir, path, branch, baseRef string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "worktree", "add", "-b", branch, path, baseRef)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree add: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// WorktreeRemove force-removes a worktree directory.
func (e *RealGitExecutor) WorktreeRemove(ctx context.Context, repoDir, path string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "worktree", "remove", "--force", path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree remove: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// BranchDelete force-deletes a local branch.
func (e *RealGitExecutor) BranchDelete(ctx context.Context, repoDir, branch string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "branch", "-D", branch)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git branch -D: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Status returns the git status for a path.
func (e *RealGitExecutor) Status(ctx context.Context, path string) (GitStatus, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return GitStatus{}, err
	}
	return ParseGitStatus(string(output)), nil
}

// BranchInfo returns the current branch info for a path.
func (e *RealGitExecutor) BranchInfo(ctx context.Context, path string) (BranchInfo, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "branch", "--show-current")
	output, err := cmd.Output()
	if err != nil {
		cmd2 := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--short", "HEAD")
		commitOutput, err2 := cmd2.Output()
		if err2 == nil {
			return BranchInfo{Detached: true, Commit: strings.TrimSpace(string(commitOutput))}, nil
		}
		return BranchInfo{}, err
	}
	return ParseBranchInfo(string(output)), nil
}

// DefaultBranch returns the repo's default branch (main or master), falling
// back to "main" if neither can be determined.
func (e *RealGitExecutor) DefaultBranch(ctx context.Context, repoDir string) string {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "symbolic-ref", "refs/remotes/origin/HEAD")
	if output, err := cmd.Output(); err == nil {
		ref := strings.TrimSpace(string(output))
		parts := strings.Split(ref, "/")
		if len(parts) > 0 {
			candidate := parts[len(parts)-1]
			verify := exec.CommandContext(ctx, "git", "-C", repoDir, "rev-parse", "--verify", candidate)
			if verify.Run() == nil {
				return candidate
			}
		}
	}

	checkMain := exec.CommandContext(ctx, "git", "-C", repoDir, "rev-parse", "--verify", "main")
	if checkMain.Run() == nil {
		return "main"
	}
	checkMaster := exec.CommandContext(ctx, "git", "-C", repoDir, "rev-parse", "--verify", "master")
	if checkMaster.Run() == nil {
		return "master"
	}
	return "main"
}

// ParseWorktreeListPorcelain parses the output of `git worktree list --porcelain`.
// Format:
//
//	worktree /path/to/worktree
//	HEAD abc1234...
//	branch refs/heads/main
//
//	worktree /path/to/bare
//	bare
func ParseWorktreeListPorcelain(output string) []WorktreeInfo {
	result := []WorktreeInfo{}

	blocks := strings.Split(output, "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		info := parseWorktreeBlock(block)
		if info.Path != "" {
			result = append(result, info)
		}
	}

	return result
}

func parseWorktreeBlock(block string) WorktreeInfo {
	var info WorktreeInfo

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			info.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			info.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			info.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "bare":
			info.IsBare = true
		case line == "detached":
			info.Detached = true
		}
	}

	return info
}

// ParseGitStatus parses the output of `git status --porcelain`.
func ParseGitStatus(output string) GitStatus {
	var status GitStatus

	output = strings.TrimRight(output, " \t\n\r")
	if output == "" {
		status.Clean = true
		return status
	}

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 3 {
			continue
		}

		// X = index status, Y = worktree status; position 3+ is the path.
		indicator := line[:2]
		filename := line[3:]

		switch {
		case strings.HasPrefix(indicator, "A"):
			status.Added = append(status.Added, filename)
		case strings.HasPrefix(indicator, "R"):
			status.Renamed = append(status.Renamed, filename)
		case indicator == "??":
			status.Untracked = append(status.Untracked, filename)
		case strings.Contains(indicator, "D"):
			status.Deleted = append(status.Deleted, filename)
		case strings.Contains(indicator, "M"):
			status.Modified = append(status.Modified, filename)
		}
	}

	status.Clean = !status.HasChanges()
	return status
}

// ParseBranchInfo parses the output of `git branch --show-current`.
func ParseBranchInfo(output string) BranchInfo {
	output = strings.TrimSpace(output)

	if strings.HasPrefix(output, "(HEAD detached at ") {
		commit := strings.TrimPrefix(output, "(HEAD detached at ")
		commit = strings.TrimSuffix(commit, ")")
		return BranchInfo{Detached: true, Commit: commit}
	}

	return BranchInfo{Name: output}
}
