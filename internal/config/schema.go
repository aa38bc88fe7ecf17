// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading, environment-variable
// overrides, and validation for the orchestrator daemon.
package config

import "time"

// IntegrityMode gates startup behavior on release manifest verification.
type IntegrityMode string

const (
	IntegrityOff    IntegrityMode = "off"
	IntegrityWarn   IntegrityMode = "warn"
	IntegrityStrict IntegrityMode = "strict"
)

// EngineMode selects how the worker engine inside a task's terminal
// session is invoked.
type EngineMode string

const (
	EngineModeMock    EngineMode = "mock"
	EngineModeProcess EngineMode = "process"
)

// Config is the root configuration structure for the orchestrator.
type Config struct {
	Version string `json:"version"`

	DataDir         string `json:"data_dir"`
	ReleaseRootDir  string `json:"release_root_dir"`
	WorktreeRootDir string `json:"worktree_root_dir"`

	Server  ServerConfig  `json:"server"`
	Repos   []RepoConfig  `json:"repos"`
	Worker  WorkerConfig  `json:"worker"`
	Release ReleaseConfig `json:"release"`
	Bridge  BridgeConfig  `json:"bridge"`
	Outbox  OutboxConfig  `json:"outbox"`
	Task    TaskConfig    `json:"task"`
	Engine  EngineConfig  `json:"engine"`
}

// ServerConfig configures the control-plane HTTP/Unix-socket surface.
type ServerConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	SocketPath string `json:"socket_path"`
	AuthToken  string `json:"auth_token"` // CONTROL_AUTH_TOKEN
}

// RepoConfig is a registered source repository a task may be dispatched
// against.
type RepoConfig struct {
	ID            string `json:"id"`
	Path          string `json:"path"`
	DefaultBranch string `json:"default_branch"`
	Remote        string `json:"remote"`
	IsDefault     bool   `json:"is_default"`
}

// WorkerConfig configures the worker launcher.
type WorkerConfig struct {
	SessionPrefix        string        `json:"session_prefix"`
	TmuxBinary           string        `json:"tmux_binary"`
	AutoCleanup          bool          `json:"auto_cleanup"`
	FailedRetentionHours int           `json:"failed_retention_hours"`
	PollInterval         time.Duration `json:"-"`
	MaxConcurrentWorkers int           `json:"max_concurrent_workers"`
}

// ReleaseConfig configures the release manager.
type ReleaseConfig struct {
	StartupIntegrityMode IntegrityMode `json:"startup_integrity_mode"`
}

// BridgeConfig configures the inbound webhook supervisor.
// Configuring a shared secret enables the bridge; an enabled bridge
// without a secret fails validation.
type BridgeConfig struct {
	Enabled      bool   `json:"enabled"`
	SharedSecret string `json:"shared_secret"` // BRIDGE_SHARED_SECRET
	RetryBaseMs  int    `json:"retry_base_ms"` // BRIDGE_RETRY_BASE_MS
	RetryMaxMs   int    `json:"retry_max_ms"`  // BRIDGE_RETRY_MAX_MS
	MaxRetries   int    `json:"max_retries"`   // BRIDGE_MAX_RETRIES
}

// OutboxConfig configures the outbound transport dispatch queue. Shares the same backoff shape as the bridge by default.
type OutboxConfig struct {
	RetryBaseMs int `json:"retry_base_ms"`
	RetryMaxMs  int `json:"retry_max_ms"`
	MaxRetries  int `json:"max_retries"`
}

// TaskConfig configures the task orchestrator and its worker
// post-completion policies.
type TaskConfig struct {
	MaxConcurrentWorkers int  `json:"max_concurrent_workers"`
	DefaultMaxRetries    int  `json:"default_max_retries"`
	AutoCommit           bool `json:"auto_commit"` // TASK_AUTO_COMMIT
	AutoPR               bool `json:"auto_pr"`     // TASK_AUTO_PR
	CancelTimeoutMs      int  `json:"cancel_timeout_ms"`
}

// EngineConfig configures the black-box worker engine invocation.
type EngineConfig struct {
	Mode    EngineMode `json:"mode"` // ENGINE_MODE
	Command string     `json:"command"`
}

// Defaults applies the orchestrator's documented defaults to zero-valued
// fields, the way a constructed daemon is expected to run without a
// config file present.
func (c *Config) Defaults() {
	if c.DataDir == "" {
		c.DataDir = ".orchestrator/data"
	}
	if c.ReleaseRootDir == "" {
		c.ReleaseRootDir = ".orchestrator/releases"
	}
	if c.WorktreeRootDir == "" {
		c.WorktreeRootDir = ".orchestrator/worktrees"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 7890
	}
	if c.Worker.SessionPrefix == "" {
		c.Worker.SessionPrefix = "dev-agent"
	}
	if c.Worker.TmuxBinary == "" {
		c.Worker.TmuxBinary = "tmux"
	}
	if c.Worker.MaxConcurrentWorkers == 0 {
		c.Worker.MaxConcurrentWorkers = 4
	}
	if c.Release.StartupIntegrityMode == "" {
		c.Release.StartupIntegrityMode = IntegrityWarn
	}
	if c.Bridge.SharedSecret != "" {
		c.Bridge.Enabled = true
	}
	if c.Bridge.RetryBaseMs == 0 {
		c.Bridge.RetryBaseMs = 1000
	}
	if c.Bridge.RetryMaxMs == 0 {
		c.Bridge.RetryMaxMs = 60000
	}
	if c.Bridge.MaxRetries == 0 {
		c.Bridge.MaxRetries = 5
	}
	if c.Outbox.RetryBaseMs == 0 {
		c.Outbox.RetryBaseMs = 1000
	}
	if c.Outbox.RetryMaxMs == 0 {
		c.Outbox.RetryMaxMs = 60000
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Task.MaxConcurrentWorkers == 0 {
		c.Task.MaxConcurrentWorkers = c.Worker.MaxConcurrentWorkers
	}
	if c.Task.DefaultMaxRetries == 0 {
		c.Task.DefaultMaxRetries = 2
	}
	if c.Task.CancelTimeoutMs == 0 {
		c.Task.CancelTimeoutMs = 10000
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = EngineModeMock
	}
}

// DefaultRepo returns the repo registration flagged as default, if any.
func (c *Config) DefaultRepo() (RepoConfig, bool) {
	for _, r := range c.Repos {
		if r.IsDefault {
			return r, true
		}
	}
	return RepoConfig{}, false
}

// Repo looks up a registered repo by id.
func (c *Config) Repo(id string) (RepoConfig, bool) {
	for _, r := range c.Repos {
		if r.ID == id {
			return r, true
		}
	}
	return RepoConfig{}, false
}
