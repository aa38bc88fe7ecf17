// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package release implements content-addressed deployment snapshots: a
// source directory is copied into releases/<sha>/, hashed
// into a manifest, and activated by an atomic relative-symlink swap of
// current/previous at the release root.
package release

import "time"

const (
	manifestFile = "release-manifest.json"
	infoFile     = "release-info.json"
	currentLink  = "current"
	previousLink = "previous"
)

// excludedFirstSegments lists path components that, when they are the
// first segment of a relative path under the source directory, exclude
// that path (and everything under it) from a snapshot.
var excludedFirstSegments = map[string]bool{
	".git":         true,
	"node_modules": true,
	".DS_Store":    true,
}

// Manifest maps every included relative path to its SHA-256 hex digest.
type Manifest struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Files       map[string]string `json:"files"`
}

// Info is the release-info.json sidecar written alongside a manifest.
type Info struct {
	SHA          string    `json:"sha"`
	SourceDir    string    `json:"sourceDir"`
	CreatedAt    time.Time `json:"createdAt"`
	ManifestFile string    `json:"manifestFile"`
}

// IntegrityMode gates how strict integrityCheck is.
type IntegrityMode string

const (
	ModeOff    IntegrityMode = "off"
	ModeWarn   IntegrityMode = "warn"
	ModeStrict IntegrityMode = "strict"
)

// IntegrityResult is the outcome of an integrity check.
type IntegrityResult struct {
	OK         bool     `json:"ok"`
	Checked    int      `json:"checked"`
	Missing    []string `json:"missing"`
	Mismatches []string `json:"mismatches"`
}
