// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// maxUnixSocketPathLen mirrors the historical sockaddr_un limit; paths
// longer than this fail fast with socket_path_too_long rather than at
// bind time.
const maxUnixSocketPathLen = 104

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error. Code is a
// stable machine-readable identifier surfaced to control-plane callers.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, code, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Validate checks configuration validity, returning nil if cfg is sound.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRepos(cfg, errs)
	v.validateServer(cfg, errs)
	v.validateBridge(cfg, errs)
	v.validateEngine(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRepos(cfg *Config, errs *ValidationError) {
	seen := make(map[string]bool)
	defaults := 0
	for i, r := range cfg.Repos {
		field := fmt.Sprintf("repos[%d]", i)
		if r.ID == "" {
			errs.Add(field+".id", "validation", "repo id must not be empty")
			continue
		}
		if seen[r.ID] {
			errs.Add(field+".id", "validation", fmt.Sprintf("duplicate repo id %q", r.ID))
		}
		seen[r.ID] = true
		if r.Path == "" {
			errs.Add(field+".path", "validation", "repo path must not be empty")
		}
		if r.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		errs.Add("repos", "validation", "at most one repo may be marked is_default")
	}
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.SocketPath != "" && len(cfg.Server.SocketPath) > maxUnixSocketPathLen {
		errs.Add("server.socket_path", "socket_path_too_long",
			fmt.Sprintf("socket path exceeds %d bytes", maxUnixSocketPathLen))
	}
	switch cfg.Release.StartupIntegrityMode {
	case IntegrityOff, IntegrityWarn, IntegrityStrict:
	default:
		errs.Add("release.startup_integrity_mode", "validation",
			fmt.Sprintf("unknown integrity mode %q", cfg.Release.StartupIntegrityMode))
	}
}

func (v *Validator) validateBridge(cfg *Config, errs *ValidationError) {
	if cfg.Bridge.Enabled && cfg.Bridge.SharedSecret == "" {
		errs.Add("bridge.shared_secret", "slack_missing_secrets",
			"bridge shared secret must be configured to authenticate inbound envelopes")
	}
}

func (v *Validator) validateEngine(cfg *Config, errs *ValidationError) {
	switch cfg.Engine.Mode {
	case EngineModeMock, "":
	case EngineModeProcess:
		if cfg.Engine.Command == "" {
			errs.Add("engine.command", "missing_engine_command",
				"engine.command is required when engine.mode is \"process\"")
		}
	default:
		errs.Add("engine.mode", "validation", fmt.Sprintf("unknown engine mode %q", cfg.Engine.Mode))
	}
}

// NoRepoRegisteredError is returned when a task submission can't resolve a
// repo and no default is registered.
type NoRepoRegisteredError struct{}

func (NoRepoRegisteredError) Error() string { return "no_repo_registered" }

// SocketPathTooLongError is returned at bind time as a final guard even if
// validation was skipped.
type SocketPathTooLongError struct{ Path string }

func (e SocketPathTooLongError) Error() string {
	return fmt.Sprintf("socket_path_too_long: %q exceeds %d bytes", e.Path, maxUnixSocketPathLen)
}
