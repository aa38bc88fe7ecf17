// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoPrevious is returned by Rollback("previous") when no previous
// release exists to roll back to.
var ErrNoPrevious = errors.New("no_previous_release")

// ErrReleaseNotFound is returned when activating or rolling back to a sha
// with no releases/<sha>/ directory.
var ErrReleaseNotFound = errors.New("release_not_found")

// readLink returns the relative target of a symlink at root/name, or ""
// if the link doesn't exist.
func readLink(root, name string) (string, error) {
	target, err := os.Readlink(filepath.Join(root, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return target, nil
}

// swapLink atomically points root/name at a path relative to root,
// by creating a uniquely-suffixed sibling symlink and renaming it over
// the final link name. Symlinks are always written relative.
func swapLink(root, name, relTarget string) error {
	final := filepath.Join(root, name)
	tmp := final + fmt.Sprintf(".tmp-%d", time.Now().UnixNano())

	if err := os.Symlink(relTarget, tmp); err != nil {
		return fmt.Errorf("create %s symlink: %w", name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("activate %s symlink: %w", name, err)
	}
	return nil
}

func releaseRelPath(sha string) string {
	return filepath.Join("releases", sha)
}

// Activate atomically swaps root/current to point at releases/<sha>/,
// demoting the prior current target (if any) to root/previous.
func Activate(root, sha string) error {
	destDir := filepath.Join(root, "releases", sha)
	if _, err := os.Stat(destDir); err != nil {
		return fmt.Errorf("%w: %s", ErrReleaseNotFound, sha)
	}

	oldCurrent, err := readLink(root, currentLink)
	if err != nil {
		return fmt.Errorf("read current link: %w", err)
	}

	if err := swapLink(root, currentLink, releaseRelPath(sha)); err != nil {
		return err
	}

	if oldCurrent != "" {
		if err := swapLink(root, previousLink, oldCurrent); err != nil {
			return err
		}
	}

	return nil
}

// Rollback restores target ("previous" or an explicit sha) as current.
func Rollback(root, target string) error {
	if target == "" || target == "previous" {
		prevTarget, err := readLink(root, previousLink)
		if err != nil {
			return fmt.Errorf("read previous link: %w", err)
		}
		if prevTarget == "" {
			return ErrNoPrevious
		}

		oldCurrent, err := readLink(root, currentLink)
		if err != nil {
			return fmt.Errorf("read current link: %w", err)
		}

		if err := swapLink(root, currentLink, prevTarget); err != nil {
			return err
		}
		if oldCurrent != "" {
			if err := swapLink(root, previousLink, oldCurrent); err != nil {
				return err
			}
		}
		return nil
	}

	destDir := filepath.Join(root, "releases", target)
	if _, err := os.Stat(destDir); err != nil {
		return fmt.Errorf("%w: %s", ErrReleaseNotFound, target)
	}
	return Activate(root, target)
}

// CurrentSHA returns the sha of the release root/current points at, or ""
// if current doesn't exist.
func CurrentSHA(root string) (string, error) {
	target, err := readLink(root, currentLink)
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", nil
	}
	return filepath.Base(target), nil
}

