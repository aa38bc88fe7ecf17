// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wingedpig/orchestrator/internal/engine"
	"github.com/wingedpig/orchestrator/internal/events"
	"github.com/wingedpig/orchestrator/internal/worker"
)

// runtimeInfo holds the per-task bookkeeping the execution loop needs
// that never reaches the persisted snapshot: where its worktree lives,
// what session it is running in, and the channel used to signal a
// cancel request into its supervisor goroutine.
type runtimeInfo struct {
	repoPath     string
	worktreePath string
	sessionName  string
	cancelCh     chan struct{}
	cancelOnce   sync.Once
}

// signalCancel closes cancelCh exactly once, however many cancel
// requests race in.
func (rt *runtimeInfo) signalCancel() {
	rt.cancelOnce.Do(func() { close(rt.cancelCh) })
}

// Orchestrator is the task orchestrator: it owns the task
// map exclusively, drives the state machine, and runs the execution loop
// that allocates worktrees and worker sessions for queued work.
type Orchestrator struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	runtime map[string]*runtimeInfo
	running int

	cfg          Config
	workerPolicy worker.CleanupPolicy
	repos        RepoResolver
	wt           WorktreeManager
	wl           WorkerLauncher
	engineCfg    engine.Config
	bus          events.EventBus
	dataDir      string

	wake      chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	lastTerminalProgress time.Time
}

// NewOrchestrator constructs an orchestrator and loads any persisted task
// snapshot from dataDir, then starts its background execution loop.
func NewOrchestrator(
	cfg Config,
	repos RepoResolver,
	wt WorktreeManager,
	wl WorkerLauncher,
	engineCfg engine.Config,
	workerPolicy worker.CleanupPolicy,
	bus events.EventBus,
	dataDir string,
) (*Orchestrator, error) {
	tasks, err := loadSnapshot(dataDir)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		tasks:                tasks,
		runtime:              make(map[string]*runtimeInfo),
		cfg:                  cfg,
		workerPolicy:         workerPolicy,
		repos:                repos,
		wt:                   wt,
		wl:                   wl,
		engineCfg:            engineCfg,
		bus:                  bus,
		dataDir:              dataDir,
		wake:                 make(chan struct{}, 1),
		closeCh:              make(chan struct{}),
		lastTerminalProgress: time.Now(),
	}

	o.wg.Add(2)
	go o.pumpLoop()
	go o.reapLoop()

	return o, nil
}

// Close stops the execution loop and the reaper, and makes every per-task
// supervisor stop watching its session and return. Close does not kill
// running sessions, and a task that was running keeps its running state.
// Safe to call more than once.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() { close(o.closeCh) })
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, typ, scope string, payload map[string]interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(ctx, events.Event{Type: typ, Scope: scope, Timestamp: time.Now(), Payload: payload})
}

// SubmitTask validates and enqueues a new task, optionally fanning out
// into child tasks.
func (o *Orchestrator) SubmitTask(ctx context.Context, req SubmitRequest) (*Task, error) {
	if req.Text == "" && len(req.Fanout) == 0 {
		return nil, ErrEmptyText
	}

	repoID, err := o.resolveRepo(req.RepoID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	parent := o.newTask(now, req.Text, repoID, req.SessionKey, req.Source, req.ParentTaskID)

	o.mu.Lock()
	o.tasks[parent.ID] = parent
	for i, text := range req.Fanout {
		// Children are stamped just after the parent, in fanout order, so
		// the createdAt ordering starts the parent first.
		child := o.newTask(now.Add(time.Duration(i+1)), text, repoID, req.SessionKey, req.Source, parent.ID)
		o.tasks[child.ID] = child
		parent.Children = append(parent.Children, child.ID)
	}
	err = persistSnapshot(o.dataDir, o.tasks)
	// Snapshot before waking the pump, so the caller always sees the task
	// as it was submitted rather than racing the execution loop.
	snapshot := parent.Clone()
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	o.publish(ctx, events.EventTaskSubmitted, parent.ID, map[string]interface{}{
		"taskId": parent.ID,
		"repoId": repoID,
		"source": string(parent.Source),
	})
	o.wakePump()

	return snapshot, nil
}

func (o *Orchestrator) resolveRepo(repoID string) (string, error) {
	if repoID != "" {
		if _, ok := o.repos.Repo(repoID); !ok {
			return "", fmt.Errorf("%w: %s", ErrNoRepoRegistered, repoID)
		}
		return repoID, nil
	}
	repo, ok := o.repos.DefaultRepo()
	if !ok {
		return "", ErrNoRepoRegistered
	}
	return repo.ID, nil
}

func (o *Orchestrator) newTask(now time.Time, text, repoID, sessionKey string, source Source, parentID string) *Task {
	if source == "" {
		source = SourceOperator
	}
	id := uuid.NewString()
	t := &Task{
		ID:               id,
		State:            StateQueued,
		Source:           source,
		Text:             text,
		RepoID:           repoID,
		WorkerSessionKey: o.wl.SessionName(repoID, id, text),
		MaxRetries:       o.cfg.DefaultMaxRetries,
		ParentTaskID:     parentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	var details map[string]string
	if sessionKey != "" {
		// The conversational context the submission came from; the worker
		// session name itself is always the deterministic derivation.
		details = map[string]string{"sessionKey": sessionKey}
	}
	appendEvent(t, now, "submit", "task submitted", details)
	return t
}

// GetTask returns a snapshot of a single task.
func (o *Orchestrator) GetTask(id string) (*Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// ListTasks returns a snapshot of every tracked task, ordered by
// createdAt.
func (o *Orchestrator) ListTasks() []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Unblock returns a blocked task to the queue (operator action).
func (o *Orchestrator) Unblock(ctx context.Context, id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownTask
	}
	err := unblock(t, time.Now())
	if err == nil {
		persistSnapshot(o.dataDir, o.tasks)
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.publish(ctx, events.EventTaskRetrying, id, map[string]interface{}{"taskId": id, "reason": "unblocked"})
	o.wakePump()
	return nil
}

// Cancel requests cancellation of a task. queued/blocked resolve
// immediately; running waits for the
// worker session to exit, up to cfg.CancelTimeoutMs, and fails the task
// with a cancel_timeout event if it doesn't.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return ErrUnknownTask
	}
	if t.State.Terminal() {
		o.mu.Unlock()
		return nil // no-op past terminal state
	}

	immediate, err := requestCancel(t, time.Now())
	var rt *runtimeInfo
	if err == nil && !immediate {
		rt = o.runtime[id]
	}
	if err == nil {
		persistSnapshot(o.dataDir, o.tasks)
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}

	if immediate {
		o.publish(ctx, events.EventTaskCancelled, id, map[string]interface{}{"taskId": id})
		return nil
	}
	// rt may be nil if the supervisor hasn't registered its runtime entry
	// yet; runTask re-checks cancelRequested right after registration, so
	// the request is not lost.
	if rt != nil {
		rt.signalCancel()
	}
	return nil
}

func (o *Orchestrator) markTerminalProgress() {
	o.mu.Lock()
	o.lastTerminalProgress = time.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) wakePump() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// pumpLoop is the single background coordinator that starts queued tasks
// as worker slots free up, mirroring the supervisor pump pattern used by
// the outbox/bridge dispatcher.
func (o *Orchestrator) pumpLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.pollInterval())
	defer ticker.Stop()

	for {
		o.dispatchReady()
		select {
		case <-o.closeCh:
			return
		case <-ticker.C:
		case <-o.wake:
		}
	}
}

// reapLoop periodically destroys worktrees that have outlived the
// staleness horizon without belonging to an active task, so checkouts
// left behind by a crash or an unclean shutdown don't accumulate.
func (o *Orchestrator) reapLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.reapInterval())
	defer ticker.Stop()

	for {
		select {
		case <-o.closeCh:
			return
		case <-ticker.C:
			o.reapStaleWorktrees(context.Background())
		}
	}
}

func (o *Orchestrator) reapStaleWorktrees(ctx context.Context) {
	stale, err := o.wt.ListStale(staleWorktreeAge)
	if err != nil {
		log.Printf("task: list stale worktrees: %v", err)
		return
	}

	active := make(map[string]bool)
	o.mu.Lock()
	for _, rt := range o.runtime {
		active[rt.worktreePath] = true
	}
	o.mu.Unlock()

	for _, s := range stale {
		if active[s.Path] {
			continue
		}
		if err := o.wt.DestroyWorktree(ctx, "", s.Path); err != nil {
			log.Printf("task: reap stale worktree %s: %v", s.Path, err)
			continue
		}
		log.Printf("task: reaped stale worktree %s (idle %s)", s.Path, s.Age.Round(time.Minute))
	}
}

// dispatchReady starts as many queued tasks as available concurrency
// allows, selecting the globally oldest queued tasks first. Because the
// selection sorts by createdAt, tasks within any one repo are always
// started in FIFO order even though no ordering is promised across repos.
func (o *Orchestrator) dispatchReady() {
	o.mu.Lock()
	slots := o.cfg.maxConcurrentWorkers() - o.running
	if slots <= 0 {
		o.mu.Unlock()
		return
	}

	var queued []*Task
	for _, t := range o.tasks {
		if t.State == StateQueued {
			queued = append(queued, t)
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].CreatedAt.Before(queued[j].CreatedAt) })
	if len(queued) > slots {
		queued = queued[:slots]
	}

	var toStart []string
	for _, t := range queued {
		if err := start(t, time.Now()); err == nil {
			o.running++
			toStart = append(toStart, t.ID)
		}
	}
	if len(toStart) > 0 {
		persistSnapshot(o.dataDir, o.tasks)
	}
	o.mu.Unlock()

	for _, id := range toStart {
		o.publish(context.Background(), events.EventTaskStarted, id, map[string]interface{}{"taskId": id})
		o.wg.Add(1)
		go o.runTask(id)
	}
}

// runTask is the per-task worker supervisor: it owns one active task end
// to end, allocating a worktree, starting the worker session,
// waiting for it to exit or be cancelled, reading its artifact, and
// applying the resulting transition.
func (o *Orchestrator) runTask(id string) {
	defer o.wg.Done()
	ctx := context.Background()

	t, _ := o.GetTask(id)
	repo, ok := o.repos.Repo(t.RepoID)
	if !ok {
		o.finishFailure(ctx, id, fmt.Errorf("repo %s no longer registered", t.RepoID), false)
		return
	}

	wtResult, err := o.wt.CreateWorktree(ctx, t.RepoID, repo.Path, repo.DefaultBranch, t.ID)
	if err != nil {
		o.finishFailure(ctx, id, fmt.Errorf("allocate worktree: %w", err), true)
		return
	}

	sessionName := t.WorkerSessionKey
	rt := &runtimeInfo{repoPath: repo.Path, worktreePath: wtResult.Path, sessionName: sessionName, cancelCh: make(chan struct{})}
	o.mu.Lock()
	o.runtime[id] = rt
	cancelPending := false
	if cur, ok := o.tasks[id]; ok {
		cancelPending = cur.CancelRequested
	}
	o.mu.Unlock()
	if cancelPending {
		rt.signalCancel()
	}
	cancelCh := rt.cancelCh

	argv, err := engine.BuildCommand(o.engineCfg, engine.Request{
		TaskID: t.ID, RepoID: t.RepoID, Text: t.Text, WorktreeDir: wtResult.Path, Branch: wtResult.Branch,
	})
	if err != nil {
		o.finishFailure(ctx, id, fmt.Errorf("build engine command: %w", err), false)
		o.cleanupAfter(ctx, id, repo.Path, wtResult.Path, StateFailed)
		return
	}

	if err := o.wl.StartSession(ctx, sessionName, wtResult.Path, argv); err != nil {
		o.finishFailure(ctx, id, fmt.Errorf("start worker session: %w", err), true)
		o.cleanupAfter(ctx, id, repo.Path, wtResult.Path, StateFailed)
		return
	}

	outcome := o.waitForExitOrCancel(ctx, sessionName, cancelCh)

	o.mu.Lock()
	delete(o.runtime, id)
	o.mu.Unlock()

	switch outcome {
	case exitOutcomeCancelled:
		o.finishCancelled(ctx, id, sessionName)
		o.cleanupAfter(ctx, id, repo.Path, wtResult.Path, StateCancelled)
		return
	case exitOutcomeTimeout:
		// recordCancelTimeout already applied the failed transition.
		o.cleanupAfter(ctx, id, repo.Path, wtResult.Path, StateFailed)
		return
	case exitOutcomeClosed:
		// Orchestrator closed: the session and worktree are left as they are.
		return
	}

	artifact, err := engine.ReadArtifact(wtResult.Path)
	final := o.applyOutcome(ctx, id, artifact, err)
	o.cleanupAfter(ctx, id, repo.Path, wtResult.Path, final)
}

// exitOutcome classifies how waitForExitOrCancel resolved.
type exitOutcome int

const (
	exitOutcomeNatural exitOutcome = iota
	exitOutcomeCancelled
	exitOutcomeTimeout
	exitOutcomeClosed
)

// waitForExitOrCancel polls the session until it exits naturally, a
// cancel is requested, or the orchestrator is closed. On cancel it kills
// the session and waits up to cfg.cancelTimeout() for confirmation.
func (o *Orchestrator) waitForExitOrCancel(ctx context.Context, sessionName string, cancelCh chan struct{}) exitOutcome {
	poll := o.cfg.pollInterval()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-o.closeCh:
			return exitOutcomeClosed
		case <-cancelCh:
			o.wl.KillSession(ctx, sessionName)
			deadline := time.Now().Add(o.cfg.cancelTimeout())
			for time.Now().Before(deadline) {
				if !o.wl.HasSession(ctx, sessionName) {
					return exitOutcomeCancelled
				}
				time.Sleep(poll)
			}
			if !o.wl.HasSession(ctx, sessionName) {
				return exitOutcomeCancelled
			}
			o.recordCancelTimeout(ctx, sessionName)
			return exitOutcomeTimeout
		case <-ticker.C:
			if !o.wl.HasSession(ctx, sessionName) {
				return exitOutcomeNatural
			}
		}
	}
}

func (o *Orchestrator) recordCancelTimeout(ctx context.Context, sessionName string) {
	id := o.taskIDBySession(sessionName)
	if id == "" {
		return
	}
	o.mu.Lock()
	t, ok := o.tasks[id]
	if ok {
		cancelTimeout(t, time.Now())
		persistSnapshot(o.dataDir, o.tasks)
		o.running--
	}
	o.mu.Unlock()
	o.publish(ctx, events.EventTaskFailed, id, map[string]interface{}{"taskId": id, "reason": "cancel_timeout"})
}

func (o *Orchestrator) taskIDBySession(sessionName string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, rt := range o.runtime {
		if rt.sessionName == sessionName {
			return id
		}
	}
	return ""
}

func (o *Orchestrator) finishCancelled(ctx context.Context, id, sessionName string) {
	o.mu.Lock()
	t, ok := o.tasks[id]
	var err error
	if ok {
		err = finishCancel(t, time.Now())
		if err == nil {
			o.running--
			persistSnapshot(o.dataDir, o.tasks)
		}
	}
	o.mu.Unlock()
	if ok && err == nil {
		o.publish(ctx, events.EventTaskCancelled, id, map[string]interface{}{"taskId": id})
	}
}

func (o *Orchestrator) finishFailure(ctx context.Context, id string, cause error, retriable bool) {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	completeFailure(t, time.Now(), retriable, cause.Error())
	o.running--
	persistSnapshot(o.dataDir, o.tasks)
	state, escalation := t.State, t.EscalationRequired
	o.mu.Unlock()

	if state == StateFailed {
		o.publish(ctx, events.EventTaskFailed, id, map[string]interface{}{"taskId": id, "error": cause.Error()})
		o.markTerminalProgress()
		if escalation {
			o.publish(ctx, events.EventTaskEscalation, id, map[string]interface{}{"taskId": id})
		}
	} else {
		o.publish(ctx, events.EventTaskRetrying, id, map[string]interface{}{"taskId": id, "error": cause.Error()})
		o.wakePump()
	}
}

// applyOutcome decides success/failure/block from the worker's artifact
// (or the absence/malformation of one, treated as a retriable infra
// failure) and applies the corresponding transition. It returns the
// resulting terminal-ish state used to choose a cleanup policy.
func (o *Orchestrator) applyOutcome(ctx context.Context, id string, artifact engine.Artifact, readErr error) State {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return StateFailed
	}
	now := time.Now()

	if readErr != nil {
		completeFailure(t, now, true, fmt.Sprintf("read worker artifact: %v", readErr))
		o.running--
		persistSnapshot(o.dataDir, o.tasks)
		state, escalation := t.State, t.EscalationRequired
		o.mu.Unlock()
		o.publishCompletion(ctx, id, state, escalation)
		return state
	}

	switch artifact.Outcome {
	case engine.OutcomeSuccess:
		completeSuccess(t, now, &Artifact{
			Summary:       artifact.Summary,
			Branch:        artifact.Branch,
			CommitSHA:     artifact.CommitSHA,
			PRURL:         artifact.PRURL,
			ChecksSummary: artifact.ChecksSummary,
		})
	case engine.OutcomeBlocked:
		block(t, now, artifact.BlockReason)
	default: // OutcomeFailure or unrecognized
		completeFailure(t, now, artifact.Retriable, artifact.Summary)
	}
	o.running--
	persistSnapshot(o.dataDir, o.tasks)
	state, escalation := t.State, t.EscalationRequired
	o.mu.Unlock()

	o.publishCompletion(ctx, id, state, escalation)
	return state
}

func (o *Orchestrator) publishCompletion(ctx context.Context, id string, state State, escalationRequired bool) {
	switch state {
	case StateDone:
		o.publish(ctx, events.EventTaskDone, id, map[string]interface{}{"taskId": id})
		o.markTerminalProgress()
	case StateFailed:
		o.publish(ctx, events.EventTaskFailed, id, map[string]interface{}{"taskId": id})
		o.markTerminalProgress()
		if escalationRequired {
			o.publish(ctx, events.EventTaskEscalation, id, map[string]interface{}{"taskId": id})
		}
	case StateBlocked:
		o.publish(ctx, events.EventTaskBlocked, id, map[string]interface{}{"taskId": id})
	case StateQueued:
		o.publish(ctx, events.EventTaskRetrying, id, map[string]interface{}{"taskId": id})
		o.wakePump()
	}
}

// cleanupAfter applies the session retention policy and destroys the worktree
// when the policy says to.
func (o *Orchestrator) cleanupAfter(ctx context.Context, id, repoPath, worktreePath string, state State) {
	if state == StateQueued {
		// Retried: the worktree is scrapped unconditionally so the retry
		// starts from a clean checkout.
		o.wt.DestroyWorktree(ctx, repoPath, worktreePath)
		return
	}

	var ws worker.CleanupDecision
	switch state {
	case StateDone:
		ws = worker.ShouldCleanup(worker.StateDone, o.workerPolicy)
	case StateFailed:
		ws = worker.ShouldCleanup(worker.StateFailed, o.workerPolicy)
	case StateBlocked:
		ws = worker.ShouldCleanup(worker.StateBlocked, o.workerPolicy)
	case StateCancelled:
		ws = worker.ShouldCleanup(worker.StateCancelled, o.workerPolicy)
	default:
		return
	}
	if ws.Cleanup {
		o.wt.DestroyWorktree(ctx, repoPath, worktreePath)
	}
}
