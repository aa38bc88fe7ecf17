// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// orchestratorctl is a command-line tool for controlling a running
// orchestrator daemon: submitting and inspecting tasks, cutting and
// activating releases, and reading dispatch/event state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wingedpig/orchestrator/pkg/client"
)

var (
	version    = "0.1"
	apiURL     = "http://localhost:7890"
	jsonOutput = false

	apiClient *client.Client
)

func main() {
	if env := os.Getenv("ORCHESTRATOR_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	opts := []client.Option{}
	if token := os.Getenv("ORCHESTRATOR_AUTH_TOKEN"); token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}
	apiClient = client.New(apiURL, opts...)

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var err error
	switch cmd {
	case "submit":
		err = cmdSubmit(args)
	case "tasks":
		err = cmdTasks(args)
	case "task":
		err = cmdTask(args)
	case "cancel":
		err = cmdCancel(args)
	case "unblock":
		err = cmdUnblock(args)
	case "release":
		err = cmdRelease(args)
	case "health":
		err = cmdHealth(args)
	case "events":
		err = cmdEvents(args)
	case "version", "-v", "--version":
		fmt.Printf("orchestratorctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`orchestratorctl - Control a running orchestrator daemon

Usage:
  orchestratorctl [-json] <command> [arguments]

Global Flags:
  -json                     Output in JSON format

Environment:
  ORCHESTRATOR_API          Base URL of the orchestrator API (default: http://localhost:7890)
  ORCHESTRATOR_AUTH_TOKEN   Bearer token sent with every request

Commands:
  submit <text> [repoId]              Submit a new task
  tasks                                List all tasks
  task <id>                            Show a single task
  cancel <id>                          Request cancellation of a task
  unblock <id>                         Return a blocked task to the queue
  release snapshot <sourceDir>         Create a content-addressed release
  release activate <sha>               Activate a release
  release rollback [target]            Roll back (default: previous)
  release current                      Show the active release sha
  release integrity [mode]             Run a manifest integrity check
  health                                Show combined orchestrator/dispatch health
  events [-n N] [type...]              Show recent events
  version                               Print orchestratorctl version
  help                                  Show this help`)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func cmdSubmit(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl submit <text> [repoId]")
	}
	ctx := context.Background()
	req := client.SubmitTaskRequest{Text: args[0]}
	if len(args) > 1 {
		req.RepoID = args[1]
	}

	t, err := apiClient.Tasks.Submit(ctx, req)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(t)
		return nil
	}
	fmt.Printf("Submitted task %s (state: %s, repo: %s)\n", t.ID, t.State, t.RepoID)
	return nil
}

func cmdTasks(args []string) error {
	ctx := context.Background()
	tasks, err := apiClient.Tasks.List(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(tasks)
		return nil
	}

	fmt.Printf("%-36s %-10s %-10s %-8s %s\n", "ID", "STATE", "SOURCE", "RETRIES", "TEXT")
	fmt.Println(strings.Repeat("-", 100))
	for _, t := range tasks {
		text := t.Text
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		fmt.Printf("%-36s %-10s %-10s %-8s %s\n", t.ID, t.State, t.Source, fmt.Sprintf("%d/%d", t.RetryCount, t.MaxRetries), text)
	}
	return nil
}

func cmdTask(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl task <id>")
	}
	ctx := context.Background()
	t, err := apiClient.Tasks.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(t)
		return nil
	}

	fmt.Printf("ID:            %s\n", t.ID)
	fmt.Printf("State:         %s\n", t.State)
	fmt.Printf("Source:        %s\n", t.Source)
	fmt.Printf("RepoID:        %s\n", t.RepoID)
	fmt.Printf("Retries:       %d/%d\n", t.RetryCount, t.MaxRetries)
	fmt.Printf("Escalation:    %t\n", t.EscalationRequired)
	if t.Error != "" {
		fmt.Printf("Error:         %s\n", t.Error)
	}
	if t.Artifact != nil {
		fmt.Printf("Artifact:      %s\n", t.Artifact.Summary)
	}
	fmt.Printf("Created:       %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:       %s\n", t.UpdatedAt.Format(time.RFC3339))
	fmt.Println("Events:")
	for _, e := range t.Events {
		fmt.Printf("  [%s] %-20s %s\n", e.At.Format(time.RFC3339), e.Kind, e.Message)
	}
	return nil
}

func cmdCancel(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl cancel <id>")
	}
	ctx := context.Background()
	if err := apiClient.Tasks.Cancel(ctx, args[0]); err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Cancellation requested for %s\n", args[0])
	}
	return nil
}

func cmdUnblock(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl unblock <id>")
	}
	ctx := context.Background()
	t, err := apiClient.Tasks.Unblock(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(t)
		return nil
	}
	fmt.Printf("Task %s returned to queue (state: %s)\n", t.ID, t.State)
	return nil
}

func cmdRelease(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl release <snapshot|activate|rollback|current|integrity> [args]")
	}
	subcmd := args[0]
	subargs := args[1:]

	switch subcmd {
	case "snapshot":
		return cmdReleaseSnapshot(subargs)
	case "activate":
		return cmdReleaseActivate(subargs)
	case "rollback":
		return cmdReleaseRollback(subargs)
	case "current":
		return cmdReleaseCurrent()
	case "integrity":
		return cmdReleaseIntegrity(subargs)
	default:
		return fmt.Errorf("unknown release subcommand: %s", subcmd)
	}
}

func cmdReleaseSnapshot(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl release snapshot <sourceDir>")
	}
	ctx := context.Background()
	info, err := apiClient.Releases.Snapshot(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(info)
		return nil
	}
	fmt.Printf("Created release %s from %s\n", info.SHA, info.SourceDir)
	return nil
}

func cmdReleaseActivate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: orchestratorctl release activate <sha>")
	}
	ctx := context.Background()
	if err := apiClient.Releases.Activate(ctx, args[0]); err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Activated release %s\n", args[0])
	}
	return nil
}

func cmdReleaseRollback(args []string) error {
	target := "previous"
	if len(args) > 0 {
		target = args[0]
	}
	ctx := context.Background()
	if err := apiClient.Releases.Rollback(ctx, target); err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Rolled back to %s\n", target)
	}
	return nil
}

func cmdReleaseCurrent() error {
	ctx := context.Background()
	sha, err := apiClient.Releases.Current(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(map[string]string{"sha": sha})
		return nil
	}
	if sha == "" {
		fmt.Println("No release currently active")
		return nil
	}
	fmt.Println(sha)
	return nil
}

func cmdReleaseIntegrity(args []string) error {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	ctx := context.Background()
	result, err := apiClient.Releases.Integrity(ctx, mode)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(result)
		return nil
	}
	fmt.Printf("ok: %t, checked: %d\n", result.OK, result.Checked)
	for _, m := range result.Missing {
		fmt.Printf("  missing: %s\n", m)
	}
	for _, m := range result.Mismatches {
		fmt.Printf("  mismatch: %s\n", m)
	}
	return nil
}

func cmdHealth(args []string) error {
	ctx := context.Background()
	h, err := apiClient.Health.Get(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(h)
		return nil
	}
	fmt.Printf("Task status: %s (checked %s)\n", h.Task.Status, h.Task.CheckedAt.Format(time.RFC3339))
	if len(h.Task.Issues) > 0 {
		fmt.Println("Issues:")
		for _, issue := range h.Task.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}
	fmt.Println("Metrics:")
	for k, v := range h.Task.Metrics {
		fmt.Printf("  %-20s %d\n", k, v)
	}
	if h.Outbox != nil {
		fmt.Println("Outbox:")
		printStatusCounts(h.Outbox.Counts)
	}
	if h.Bridge != nil {
		fmt.Println("Bridge:")
		printStatusCounts(h.Bridge.Counts)
	}
	return nil
}

func printStatusCounts(counts map[string]int) {
	for status, n := range counts {
		fmt.Printf("  %-12s %d\n", status, n)
	}
}

func cmdEvents(args []string) error {
	limit := 50
	var types []string

	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for -n: %s", args[i])
			}
			limit = n
			continue
		}
		types = append(types, args[i])
	}

	ctx := context.Background()
	events, err := apiClient.Events.History(ctx, types, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(events)
		return nil
	}

	for _, e := range events {
		fmt.Printf("[%s] %-24s scope=%s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Scope)
	}
	return nil
}
