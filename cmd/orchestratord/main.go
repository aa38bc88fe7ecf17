// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command orchestratord is the orchestrator daemon entrypoint: it loads
// configuration, wires the task orchestrator, release manager, and
// dispatch supervisors together, runs the startup integrity gate, and
// serves the control-plane HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wingedpig/orchestrator/internal/api"
	"github.com/wingedpig/orchestrator/internal/config"
	"github.com/wingedpig/orchestrator/internal/dispatch"
	"github.com/wingedpig/orchestrator/internal/doctor"
	"github.com/wingedpig/orchestrator/internal/engine"
	"github.com/wingedpig/orchestrator/internal/events"
	"github.com/wingedpig/orchestrator/internal/release"
	"github.com/wingedpig/orchestrator/internal/session"
	"github.com/wingedpig/orchestrator/internal/task"
	"github.com/wingedpig/orchestrator/internal/worker"
	"github.com/wingedpig/orchestrator/internal/worktree"
)

func main() {
	configPath := flag.String("config", "", "path to the orchestrator.hjson config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("orchestratord: %v", err)
	}
}

func run(configPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := configPath
	if path == "" {
		path = discoverConfig()
	}

	cfg, err := config.NewLoader().Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	relMgr := release.NewManager(cfg.ReleaseRootDir, bus)
	defer relMgr.Close()

	if err := runStartupIntegrityGate(ctx, cfg, relMgr); err != nil {
		return err
	}

	gitExec := worktree.NewRealGitExecutor()
	wtMgr := worktree.NewManager(gitExec, bus, cfg.WorktreeRootDir)

	tmuxExec := newTmuxExecutor(cfg.Worker.TmuxBinary)
	launcher := worker.NewLauncher(tmuxExec, bus, cfg.Worker.SessionPrefix)

	engineCfg := engine.Config{
		Mode:       engine.Mode(cfg.Engine.Mode),
		Command:    cfg.Engine.Command,
		AutoCommit: cfg.Task.AutoCommit,
		AutoPR:     cfg.Task.AutoPR,
	}

	orchCfg := task.Config{
		MaxConcurrentWorkers: cfg.Task.MaxConcurrentWorkers,
		DefaultMaxRetries:    cfg.Task.DefaultMaxRetries,
		CancelTimeoutMs:      cfg.Task.CancelTimeoutMs,
		AutoCommit:           cfg.Task.AutoCommit,
		AutoPR:               cfg.Task.AutoPR,
	}
	workerPolicy := worker.CleanupPolicy{
		AutoCleanup:          cfg.Worker.AutoCleanup,
		FailedRetentionHours: cfg.Worker.FailedRetentionHours,
	}

	sessions := session.NewStore(cfg.DataDir)

	orch, err := task.NewOrchestrator(orchCfg, cfg, wtMgr, launcher, engineCfg, workerPolicy, bus, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("start task orchestrator: %w", err)
	}
	defer orch.Close()

	outboxBackoff := dispatch.BackoffConfig{
		RetryBaseMs: cfg.Outbox.RetryBaseMs,
		RetryMaxMs:  cfg.Outbox.RetryMaxMs,
		MaxRetries:  cfg.Outbox.MaxRetries,
	}
	outbox, err := dispatch.NewOutbox(cfg.DataDir, outboxBackoff, noopSender, bus)
	if err != nil {
		return fmt.Errorf("start outbox: %w", err)
	}
	defer outbox.Stop()

	var bridge *dispatch.Bridge
	if cfg.Bridge.Enabled {
		bridgeBackoff := dispatch.BackoffConfig{
			RetryBaseMs: cfg.Bridge.RetryBaseMs,
			RetryMaxMs:  cfg.Bridge.RetryMaxMs,
			MaxRetries:  cfg.Bridge.MaxRetries,
		}
		bridge, err = dispatch.NewBridge(cfg.DataDir, cfg.Bridge.SharedSecret, bridgeBackoff, bridgeSubmit(orch, sessions), bus)
		if err != nil {
			return fmt.Errorf("start bridge: %w", err)
		}
		defer bridge.Stop()
	}

	router := api.NewRouter(api.Dependencies{
		Orchestrator: orch,
		Release:      relMgr,
		Outbox:       outbox,
		Bridge:       bridge,
		Sessions:     sessions,
		Bus:          bus,
		AuthToken:    cfg.Server.AuthToken,
	})

	srv := &http.Server{Handler: router}
	listener, err := newListener(cfg.Server)
	if err != nil {
		return fmt.Errorf("bind control-plane listener: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("orchestratord: listening on %s", listener.Addr())
		errCh <- srv.Serve(listener)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control-plane server: %w", err)
		}
	case sig := <-sigCh:
		log.Printf("orchestratord: received %s, shutting down", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	return nil
}

// discoverConfig looks for an orchestrator.hjson in the current
// directory, the way a daemon started without -config falls back to
// running on defaults plus environment overrides if nothing is found.
func discoverConfig() string {
	for _, name := range []string{"orchestrator.hjson", ".orchestrator.hjson"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// runStartupIntegrityGate applies the startup exit-code policy: strict +
// not ok is fatal, warn + not ok logs and continues, off is skipped.
func runStartupIntegrityGate(ctx context.Context, cfg *config.Config, relMgr *release.Manager) error {
	mode := release.IntegrityMode(cfg.Release.StartupIntegrityMode)
	result := relMgr.IntegrityCheck(ctx, mode)
	outcome := doctor.CheckStartupIntegrity(cfg.Release.StartupIntegrityMode, result)
	if outcome.Skipped {
		return nil
	}
	if outcome.Fatal {
		return fmt.Errorf("startup integrity check failed: %s", outcome.Message)
	}
	if outcome.Message != "" {
		log.Printf("orchestratord: %s", outcome.Message)
	}
	return nil
}

func newListener(cfg config.ServerConfig) (net.Listener, error) {
	if cfg.SocketPath != "" {
		_ = os.Remove(cfg.SocketPath)
		return net.Listen("unix", cfg.SocketPath)
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return net.Listen("tcp", addr)
}

// newTmuxExecutor returns a tmux-backed session executor, or a pty
// fallback when no tmux binary is configured.
func newTmuxExecutor(binary string) worker.TmuxExecutor {
	if binary == "" {
		return worker.NewPtyExecutor()
	}
	return worker.NewRealTmuxExecutor(binary)
}

// noopSender is the default outbox sender until a transport adapter (an
// external collaborator) is wired in.
func noopSender(ctx context.Context, payload json.RawMessage) error {
	return nil
}

// bridgeSubmit adapts the task orchestrator's SubmitTask into the
// bridge's SubmitFunc contract. Envelope payloads carry {"text": ...,
// "repoId"?: ..., "sessionKey"?: ...}; a payload without a text field is
// submitted as its raw JSON so nothing is silently dropped. Submissions
// that name a session key get the resulting task appended to that
// session's context log, so the transport layer can replay what a
// conversation has already kicked off.
func bridgeSubmit(orch *task.Orchestrator, sessions *session.Store) dispatch.SubmitFunc {
	return func(ctx context.Context, env dispatch.Envelope) (string, error) {
		var body struct {
			Text       string `json:"text"`
			RepoID     string `json:"repoId"`
			SessionKey string `json:"sessionKey"`
		}
		if err := json.Unmarshal(env.Payload, &body); err != nil || body.Text == "" {
			body.Text = string(env.Payload)
		}

		t, err := orch.SubmitTask(ctx, task.SubmitRequest{
			Text:       body.Text,
			RepoID:     body.RepoID,
			SessionKey: body.SessionKey,
			Source:     task.SourceWebhook,
		})
		if err != nil {
			return "", err
		}

		if body.SessionKey != "" {
			line := map[string]string{
				"taskId":    t.ID,
				"repoId":    t.RepoID,
				"text":      t.Text,
				"messageId": env.MessageID,
				"at":        time.Now().UTC().Format(time.RFC3339),
			}
			if err := sessions.AppendLine(body.SessionKey, session.ContextFile, line); err != nil {
				log.Printf("orchestratord: append session context for %s: %v", body.SessionKey, err)
			}
		}
		return t.ID, nil
	}
}
