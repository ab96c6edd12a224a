// Package scheduler is the engine's heart (§4.5): it owns the
// execution lifecycle, dispatches ready nodes to a bounded worker pool,
// processes completions, propagates branch-skip, and detects terminal
// state. Rebuilt from internal/executor/executor.go's sequential
// dispatch into genuine concurrent dispatch using the goroutine/
// channel/semaphore idiom of internal/executor/parallel.go's
// branchExecutionCoordinator, scaled from "one parallel-branch fan-out"
// to "the whole execution's ready frontier".
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/engine/internal/credential"
	"github.com/nodeflow/engine/internal/dag"
	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
	"github.com/nodeflow/engine/internal/expression"
	"github.com/nodeflow/engine/internal/flow"
	"github.com/nodeflow/engine/internal/handler"
	"github.com/nodeflow/engine/internal/state"
)

type nodeStatus string

const (
	statusPending   nodeStatus = "pending"
	statusReady     nodeStatus = "ready"
	statusRunning   nodeStatus = "running"
	statusCompleted nodeStatus = "completed"
	statusFailed    nodeStatus = "failed"
	statusSkipped   nodeStatus = "skipped"
	statusSuspended nodeStatus = "suspended"
	// statusDormant is the initial and resting state of an errorTrigger
	// node (§4.5/§7 error policy): it is excluded from the initial
	// dispatch and from every downstream node's dependenciesResolved
	// check until routeToErrorTrigger fires it in response to a
	// matching node failure.
	statusDormant nodeStatus = "dormant"
)

// ErrorTriggerNodeType is the node type recognized by the scheduler as
// an error-trigger entry point (spec's "errorTrigger node"). Flow
// authors mark it with trigger: true so dag.Parse lists it as an entry
// point; the scheduler itself keeps it dormant until a failure matches
// its filter.
const ErrorTriggerNodeType = "errorTrigger"

func isErrorTriggerNode(n flow.Node) bool {
	return n.Type == ErrorTriggerNodeType
}

// errorTriggerConfig is the recognized shape of an errorTrigger node's
// Data.
type errorTriggerConfig struct {
	ErrorTypes []string `json:"errorTypes"`
}

// errorTypeFilter reads a node's errorTypes allow-list. A nil return
// means "catches every failure" — the source's set is open-ended per
// §9, and an errorTrigger with no configured filter is still useful as
// a catch-all.
func errorTypeFilter(n flow.Node) map[string]struct{} {
	if len(n.Data) == 0 {
		return nil
	}
	var cfg errorTriggerConfig
	if err := json.Unmarshal(n.Data, &cfg); err != nil || len(cfg.ErrorTypes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(cfg.ErrorTypes))
	for _, t := range cfg.ErrorTypes {
		set[t] = struct{}{}
	}
	return set
}

func matchesErrorType(filter map[string]struct{}, errCode string) bool {
	if filter == nil {
		return true
	}
	_, ok := filter[errCode]
	return ok
}

type nodeCompletion struct {
	nodeID string
	result handler.Result
	err    error
}

type resumeSignal struct {
	nodeID     string
	resumeData map[string]interface{}
}

type pauseKind int

const (
	pauseSignalPause pauseKind = iota
	pauseSignalUnpause
)

// pauseSignal is routed through the dispatcher goroutine, same as
// resumeSignal, so pause state never mutates outside the single writer
// (the comment on runDispatcher applies equally here).
type pauseSignal struct {
	kind   pauseKind
	reason string
}

// run is one in-flight execution's live bookkeeping, held only for as
// long as the execution is not yet terminal.
type run struct {
	exec     *execmodel.Execution
	def      flow.Definition
	parse    *dag.ParseResult
	nodeByID map[string]flow.Node

	mu     sync.Mutex
	status map[string]nodeStatus

	localSem    chan struct{}
	completions chan nodeCompletion
	resumeCh    chan resumeSignal
	pauseCh     chan pauseSignal

	ctx    context.Context
	cancel context.CancelFunc

	anyFailed bool
	paused    bool
}

// Scheduler dispatches ready nodes and tracks every in-flight
// execution's state machine.
type Scheduler struct {
	Registry    *handler.Registry
	Evaluator   *expression.Evaluator
	Credentials credential.Resolver
	Store       state.Store
	Events      EventPublisher
	Persist     Persistence
	Pool        *Pool
	Config      Config
	Logger      *slog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

func New(registry *handler.Registry, evaluator *expression.Evaluator, creds credential.Resolver, store state.Store, events EventPublisher, persist Persistence, pool *Pool, cfg Config, logger *slog.Logger) *Scheduler {
	if events == nil {
		events = NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Registry:    registry,
		Evaluator:   evaluator,
		Credentials: creds,
		Store:       store,
		Events:      events,
		Persist:     persist,
		Pool:        pool,
		Config:      cfg,
		Logger:      logger,
		runs:        make(map[string]*run),
	}
}

// StartExecution validates the parse result, initializes state, and
// launches the dispatcher goroutine. It returns once the execution is
// registered, not once it finishes — callers await completion via
// events or by polling Persistence/Store.
func (s *Scheduler) StartExecution(parent context.Context, def flow.Definition, parse *dag.ParseResult, exec *execmodel.Execution) error {
	if !parse.Valid {
		return engineerr.New(engineerr.KindValidation, fmt.Sprintf("cannot start execution: invalid flow definition: %v", parse.Errors))
	}

	nodeByID := make(map[string]flow.Node, len(def.Nodes))
	statusMap := make(map[string]nodeStatus, len(def.Nodes))
	for _, n := range def.Nodes {
		nodeByID[n.ID] = n
		if isErrorTriggerNode(n) {
			statusMap[n.ID] = statusDormant
		} else {
			statusMap[n.ID] = statusPending
		}
	}

	ctx, cancel := context.WithCancel(parent)
	r := &run{
		exec:        exec,
		def:         def,
		parse:       parse,
		nodeByID:    nodeByID,
		status:      statusMap,
		localSem:    make(chan struct{}, s.capOrDefault()),
		completions: make(chan nodeCompletion, len(def.Nodes)+1),
		resumeCh:    make(chan resumeSignal, 1),
		pauseCh:     make(chan pauseSignal, 1),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.mu.Lock()
	s.runs[exec.ID] = r
	s.mu.Unlock()

	var trigger map[string]interface{}
	if len(exec.TriggerInput) > 0 {
		_ = json.Unmarshal(exec.TriggerInput, &trigger)
	}
	if err := s.Store.InitExecution(ctx, exec.ID, trigger); err != nil {
		return err
	}

	exec.Status = execmodel.ExecutionRunning
	now := time.Now()
	exec.StartedAt = &now
	if s.Persist != nil {
		if err := s.Persist.SaveExecution(ctx, exec); err != nil {
			return err
		}
	}
	_ = s.Events.Publish(ctx, Event{Type: EventExecutionStarted, ExecutionID: exec.ID})

	go s.runDispatcher(r)
	return nil
}

func (s *Scheduler) capOrDefault() int {
	if s.Config.PerExecutionCap <= 0 {
		return DefaultConfig().PerExecutionCap
	}
	return s.Config.PerExecutionCap
}

func (s *Scheduler) nodeTimeout() time.Duration {
	if s.Config.NodeTimeout <= 0 {
		return DefaultConfig().NodeTimeout
	}
	return s.Config.NodeTimeout
}

// runDispatcher is the goroutine that drives a run: it handles
// completions, resume and pause signals, and cancellation. Status
// transitions happen here except the ready->running step, which each
// launch goroutine writes; every access to the status map holds r.mu.
func (s *Scheduler) runDispatcher(r *run) {
	var initialEntries []string
	for _, id := range r.parse.EntryPoints {
		if !isErrorTriggerNode(r.nodeByID[id]) {
			initialEntries = append(initialEntries, id)
		}
	}
	s.dispatchReady(r, initialEntries)

	for {
		select {
		case c := <-r.completions:
			s.handleCompletion(r, c)
			if s.isDrained(r) {
				s.finalize(r)
				return
			}
		case sig := <-r.resumeCh:
			s.handleResume(r, sig)
		case sig := <-r.pauseCh:
			s.handlePause(r, sig)
		case <-r.ctx.Done():
			s.finalizeCancelled(r)
			return
		}
	}
}

func (s *Scheduler) isDrained(r *run) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.status {
		if st == statusPending || st == statusReady || st == statusRunning || st == statusSuspended {
			return false
		}
	}
	return true
}

// dispatchReady dispatches every node in nodeIDs (already confirmed
// ready by the caller), preserving deterministic executionOrder
// position among them per §4.5's tie-breaking rule.
func (s *Scheduler) dispatchReady(r *run, nodeIDs []string) {
	order := make(map[string]int, len(r.parse.ExecutionOrder))
	for i, id := range r.parse.ExecutionOrder {
		order[id] = i
	}
	sorted := append([]string(nil), nodeIDs...)
	sort.Slice(sorted, func(i, j int) bool { return order[sorted[i]] < order[sorted[j]] })

	for _, nodeID := range sorted {
		r.mu.Lock()
		r.status[nodeID] = statusReady
		r.mu.Unlock()
		s.launch(r, nodeID)
	}
}

func (s *Scheduler) launch(r *run, nodeID string) {
	go func() {
		select {
		case r.localSem <- struct{}{}:
		case <-r.ctx.Done():
			return
		}

		r.mu.Lock()
		r.status[nodeID] = statusRunning
		r.mu.Unlock()
		_ = s.Events.Publish(r.ctx, Event{Type: EventNodeStarted, ExecutionID: r.exec.ID, NodeID: nodeID})

		err := s.Pool.Go(r.ctx, func(workerCtx context.Context) error {
			defer func() { <-r.localSem }()
			result, rerr := s.runNode(workerCtx, r, nodeID)
			select {
			case r.completions <- nodeCompletion{nodeID: nodeID, result: result, err: rerr}:
			case <-r.ctx.Done():
			}
			return rerr
		})
		if err != nil {
			<-r.localSem
			select {
			case r.completions <- nodeCompletion{nodeID: nodeID, err: err}:
			case <-r.ctx.Done():
			}
		}
	}()
}

// runNode resolves this node's input, credentials, and config, then
// calls its handler with node-local retry and a soft timeout.
func (s *Scheduler) runNode(ctx context.Context, r *run, nodeID string) (handler.Result, error) {
	node := r.nodeByID[nodeID]

	h, err := s.Registry.Get(node.Type)
	if err != nil {
		return handler.NewFailure(err.Error(), "UNKNOWN_HANDLER"), nil
	}

	resCtx, err := s.buildResolutionContext(ctx, r, nodeID)
	if err != nil {
		return handler.NewFailure(err.Error(), "INPUT_RESOLUTION_FAILED"), nil
	}

	resolvedConfig, err := s.Evaluator.ResolveConfig(node.Data, resCtx)
	if err != nil {
		return handler.NewFailure(err.Error(), "CONFIG_RESOLUTION_FAILED"), nil
	}

	if err := handler.ValidateConfig(h.ConfigSchema(), resolvedConfig); err != nil {
		return handler.NewFailure(err.Error(), "CONFIG_INVALID"), nil
	}

	globalCtx := map[string]interface{}{}
	if credID, _ := resolvedConfig["credentialId"].(string); credID != "" && s.Credentials != nil {
		creds, err := s.Credentials.Resolve(ctx, r.exec.TenantID, credID)
		if err != nil {
			return handler.NewFailure(err.Error(), "CREDENTIAL_RESOLUTION_FAILED"), nil
		}
		globalCtx["credential"] = creds
	}

	hctx := &handler.Context{
		ExecutionID:   r.exec.ID,
		NodeID:        nodeID,
		NodeType:      node.Type,
		NodeConfig:    resolvedConfig,
		InputData:     resCtx.NodeInput,
		UserID:        r.exec.TriggeredBy,
		FlowID:        r.exec.FlowID,
		GlobalContext: globalCtx,
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.nodeTimeout())
	defer cancel()

	retryCfg := DefaultRetryConfig()
	strategy := NewRetryStrategy(retryCfg, s.Logger)

	var final handler.Result
	_ = strategy.Execute(timeoutCtx, func(opCtx context.Context, attempt int) error {
		res := h.Execute(opCtx, hctx)
		final = res
		if f, ok := res.(handler.Failure); ok {
			return engineerr.New(engineerr.KindNodeExecution, f.ErrorMessage)
		}
		return nil
	})

	if timeoutCtx.Err() == context.DeadlineExceeded {
		return handler.NewFailure("node execution timed out", "TIMEOUT"), nil
	}
	if final == nil {
		return handler.NewFailure("handler returned no result", "NO_RESULT"), nil
	}
	return final, nil
}

// buildResolutionContext merges every completed direct dependency's
// output into $json per §4.4 ("inputData (merged upstream outputs)").
func (s *Scheduler) buildResolutionContext(ctx context.Context, r *run, nodeID string) (*expression.ResolutionContext, error) {
	merged := map[string]interface{}{}
	for _, depID := range r.parse.Dependencies[nodeID] {
		out, ok, err := s.Store.GetNodeOutput(ctx, r.exec.ID, depID)
		if err != nil {
			return nil, err
		}
		if ok {
			for k, v := range out {
				merged[k] = v
			}
		}
	}

	outputs, err := s.Store.GetExecutionOutput(ctx, r.exec.ID)
	if err != nil {
		return nil, err
	}

	var trigger map[string]interface{}
	if len(r.exec.TriggerInput) > 0 {
		_ = json.Unmarshal(r.exec.TriggerInput, &trigger)
	}

	return &expression.ResolutionContext{
		NodeInput:    merged,
		NodeOutputs:  outputs,
		TriggerInput: trigger,
		Env:          map[string]string{},
	}, nil
}

func (s *Scheduler) handleCompletion(r *run, c nodeCompletion) {
	ctx := r.ctx
	ne := &execmodel.NodeExecution{
		ID:          uuid.NewString(),
		ExecutionID: r.exec.ID,
		NodeID:      c.nodeID,
	}

	switch res := c.result.(type) {
	case handler.Success:
		r.mu.Lock()
		r.status[c.nodeID] = statusCompleted
		r.mu.Unlock()

		_ = s.Store.RecordNodeOutput(ctx, r.exec.ID, c.nodeID, res.Output)
		if len(res.BranchesToFollow) > 0 {
			_ = s.Store.RecordBranchDecision(ctx, r.exec.ID, c.nodeID, res.BranchesToFollow)
			s.applySkip(r, c.nodeID, res.BranchesToFollow)
		}
		out, _ := json.Marshal(res.Output)
		ne.Status = execmodel.NodeExecCompleted
		ne.OutputData = out
		ne.BranchesToFollow = res.BranchesToFollow
		if s.Persist != nil {
			_ = s.Persist.SaveNodeExecution(ctx, ne)
		}
		_ = s.Events.Publish(ctx, Event{Type: EventNodeCompleted, ExecutionID: r.exec.ID, NodeID: c.nodeID})

	case handler.Suspend:
		r.mu.Lock()
		r.status[c.nodeID] = statusSuspended
		r.mu.Unlock()

		r.exec.Status = execmodel.ExecutionWaiting
		r.exec.WaitingNodeID = &c.nodeID
		reason := string(res.Reason)
		r.exec.PauseReason = &reason
		if s.Persist != nil {
			_ = s.Persist.UpdateExecution(ctx, r.exec)
		}
		_ = s.Store.UpdateExecutionStatus(ctx, r.exec.ID, execmodel.ExecutionWaiting)

	default: // handler.Failure, or a completion carrying a dispatch-level error
		r.mu.Lock()
		r.status[c.nodeID] = statusFailed
		r.mu.Unlock()

		msg := failureMessage(c)
		code := failureCode(c)
		ne.Status = execmodel.NodeExecFailed
		ne.ErrorMessage = &msg
		if s.Persist != nil {
			_ = s.Persist.SaveNodeExecution(ctx, ne)
		}
		_ = s.Events.Publish(ctx, Event{Type: EventNodeFailed, ExecutionID: r.exec.ID, NodeID: c.nodeID, Data: map[string]interface{}{"error": msg}})

		if !s.routeToErrorTrigger(r, c.nodeID, msg, code) {
			r.anyFailed = true
		}
	}

	s.advanceReadyFrontier(r)
}

func failureMessage(c nodeCompletion) string {
	if f, ok := c.result.(handler.Failure); ok {
		return f.ErrorMessage
	}
	if c.err != nil {
		return c.err.Error()
	}
	return "unknown node failure"
}

func failureCode(c nodeCompletion) string {
	if f, ok := c.result.(handler.Failure); ok {
		return f.ErrorCode
	}
	return ""
}

// routeToErrorTrigger looks for a dormant errorTrigger node whose
// errorTypes filter matches errCode and, if one exists, fires it as
// the root of an error sub-pipeline instead of letting the failure
// fail the whole execution (§4.5/§7 error policy: "the original
// execution's status becomes failed only if no error path completes").
// When more than one dormant trigger matches, the earliest by
// executionOrder fires, matching dispatchReady's tie-break. Returns
// whether a trigger caught the failure.
func (s *Scheduler) routeToErrorTrigger(r *run, failedNodeID, errMsg, errCode string) bool {
	order := make(map[string]int, len(r.parse.ExecutionOrder))
	for i, id := range r.parse.ExecutionOrder {
		order[id] = i
	}

	var candidates []string
	r.mu.Lock()
	for id, st := range r.status {
		if st != statusDormant {
			continue
		}
		n := r.nodeByID[id]
		if !isErrorTriggerNode(n) {
			continue
		}
		if matchesErrorType(errorTypeFilter(n), errCode) {
			candidates = append(candidates, id)
		}
	}
	r.mu.Unlock()
	if len(candidates) == 0 {
		return false
	}
	sort.Slice(candidates, func(i, j int) bool { return order[candidates[i]] < order[candidates[j]] })
	triggerID := candidates[0]

	output := map[string]interface{}{
		"failedNodeId": failedNodeID,
		"errorMessage": errMsg,
		"errorCode":    errCode,
	}
	r.mu.Lock()
	r.status[triggerID] = statusCompleted
	r.mu.Unlock()

	_ = s.Store.RecordNodeOutput(r.ctx, r.exec.ID, triggerID, output)
	if s.Persist != nil {
		outBytes, _ := json.Marshal(output)
		_ = s.Persist.SaveNodeExecution(r.ctx, &execmodel.NodeExecution{
			ID:          uuid.NewString(),
			ExecutionID: r.exec.ID,
			NodeID:      triggerID,
			Status:      execmodel.NodeExecCompleted,
			OutputData:  outBytes,
		})
	}
	_ = s.Events.Publish(r.ctx, Event{
		Type:        EventNodeCompleted,
		ExecutionID: r.exec.ID,
		NodeID:      triggerID,
		Data:        map[string]interface{}{"errorSubPipeline": true, "caughtNodeId": failedNodeID},
	})
	return true
}

// applySkip marks every node exclusively reachable via a non-selected
// handle of nodeID as skipped, both locally and in the State Manager.
func (s *Scheduler) applySkip(r *run, nodeID string, selected []string) {
	skipped := computeSkipped(r.def.Edges, nodeID, selected)
	r.mu.Lock()
	for id := range skipped {
		if r.status[id] == statusPending {
			r.status[id] = statusSkipped
		}
	}
	r.mu.Unlock()
	for id := range skipped {
		_ = s.Store.MarkSkipped(r.ctx, r.exec.ID, id)
	}
}

// advanceReadyFrontier dispatches every pending node whose dependencies
// have all resolved (completed or skipped) — the readiness rule of
// §4.5.
func (s *Scheduler) advanceReadyFrontier(r *run) {
	r.mu.Lock()
	paused := r.paused
	var newlyReady []string
	for id, st := range r.status {
		if st != statusPending {
			continue
		}
		if s.dependenciesResolved(r, id) {
			newlyReady = append(newlyReady, id)
		}
	}
	r.mu.Unlock()

	// A paused execution leaves newly-ready nodes pending rather than
	// dispatching them; Unpause re-runs this same scan (§4.5 pause:
	// in-flight work keeps running, nothing new starts).
	if paused || len(newlyReady) == 0 {
		return
	}
	s.dispatchReady(r, newlyReady)
}

// handlePause applies a pause/unpause control signal from the
// dispatcher goroutine. Pausing only stops new dispatch; nodes already
// running are left to finish. Unpausing re-scans the ready frontier
// immediately so anything that became ready while paused fires at once.
func (s *Scheduler) handlePause(r *run, sig pauseSignal) {
	switch sig.kind {
	case pauseSignalPause:
		r.mu.Lock()
		r.paused = true
		r.mu.Unlock()
		r.exec.Status = execmodel.ExecutionPaused
		reason := sig.reason
		r.exec.PauseReason = &reason
		if s.Persist != nil {
			_ = s.Persist.UpdateExecution(r.ctx, r.exec)
		}
		_ = s.Store.UpdateExecutionStatus(r.ctx, r.exec.ID, execmodel.ExecutionPaused)
		_ = s.Events.Publish(r.ctx, Event{Type: EventExecutionPaused, ExecutionID: r.exec.ID, Data: map[string]interface{}{"reason": reason}})
	case pauseSignalUnpause:
		r.mu.Lock()
		r.paused = false
		r.mu.Unlock()
		r.exec.Status = execmodel.ExecutionRunning
		r.exec.PauseReason = nil
		if s.Persist != nil {
			_ = s.Persist.UpdateExecution(r.ctx, r.exec)
		}
		_ = s.Store.UpdateExecutionStatus(r.ctx, r.exec.ID, execmodel.ExecutionRunning)
		_ = s.Events.Publish(r.ctx, Event{Type: EventExecutionResumed, ExecutionID: r.exec.ID})
		s.advanceReadyFrontier(r)
	}
}

func (s *Scheduler) dependenciesResolved(r *run, nodeID string) bool {
	for _, dep := range r.parse.Dependencies[nodeID] {
		st := r.status[dep]
		if st != statusCompleted && st != statusSkipped {
			return false
		}
	}
	return true
}

func (s *Scheduler) finalize(r *run) {
	r.cancel()
	s.mu.Lock()
	delete(s.runs, r.exec.ID)
	s.mu.Unlock()

	now := time.Now()
	r.exec.CompletedAt = &now
	if r.exec.StartedAt != nil {
		d := now.Sub(*r.exec.StartedAt).Milliseconds()
		r.exec.DurationMs = &d
	}

	evt := EventExecutionCompleted
	if r.anyFailed {
		r.exec.Status = execmodel.ExecutionFailed
		msg := "one or more nodes failed"
		r.exec.ErrorMessage = &msg
		evt = EventExecutionFailed
	} else {
		r.exec.Status = execmodel.ExecutionCompleted
	}

	ctx := context.Background()
	if s.Persist != nil {
		_ = s.Persist.UpdateExecution(ctx, r.exec)
	}
	_ = s.Store.UpdateExecutionStatus(ctx, r.exec.ID, r.exec.Status)
	_ = s.Events.Publish(ctx, Event{Type: evt, ExecutionID: r.exec.ID})
}

func (s *Scheduler) finalizeCancelled(r *run) {
	s.mu.Lock()
	delete(s.runs, r.exec.ID)
	s.mu.Unlock()

	now := time.Now()
	r.exec.Status = execmodel.ExecutionCancelled
	r.exec.CompletedAt = &now
	ctx := context.Background()
	if s.Persist != nil {
		_ = s.Persist.UpdateExecution(ctx, r.exec)
	}
	_ = s.Store.UpdateExecutionStatus(ctx, r.exec.ID, execmodel.ExecutionCancelled)
	_ = s.Events.Publish(ctx, Event{Type: EventExecutionCancelled, ExecutionID: r.exec.ID})
}

// Resume un-suspends execID's waiting node. A nil resumeData re-runs
// the node's handler; a non-nil payload completes it directly with
// that payload as output (§4.5 step 5).
func (s *Scheduler) Resume(execID, nodeID string, resumeData map[string]interface{}) error {
	r, ok := s.getRun(execID)
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "no in-flight execution: "+execID)
	}
	select {
	case r.resumeCh <- resumeSignal{nodeID: nodeID, resumeData: resumeData}:
		return nil
	case <-r.ctx.Done():
		return engineerr.New(engineerr.KindStateConflict, "execution already terminal: "+execID)
	}
}

func (s *Scheduler) handleResume(r *run, sig resumeSignal) {
	r.exec.Status = execmodel.ExecutionRunning
	r.exec.WaitingNodeID = nil
	r.exec.PauseReason = nil
	if s.Persist != nil {
		_ = s.Persist.UpdateExecution(r.ctx, r.exec)
	}
	_ = s.Store.UpdateExecutionStatus(r.ctx, r.exec.ID, execmodel.ExecutionRunning)

	if sig.resumeData != nil {
		_ = s.Store.RecordNodeOutput(r.ctx, r.exec.ID, sig.nodeID, sig.resumeData)
		r.mu.Lock()
		r.status[sig.nodeID] = statusCompleted
		r.mu.Unlock()
		_ = s.Events.Publish(r.ctx, Event{Type: EventNodeCompleted, ExecutionID: r.exec.ID, NodeID: sig.nodeID})
		s.advanceReadyFrontier(r)
		return
	}

	r.mu.Lock()
	r.status[sig.nodeID] = statusReady
	r.mu.Unlock()
	s.launch(r, sig.nodeID)
}

// Cancel synchronously signals an in-flight execution to stop; in-flight
// workers are released best-effort, resources freed, archival left to
// the Archival Service (§4.5 step 6).
func (s *Scheduler) Cancel(execID, reason string) error {
	r, ok := s.getRun(execID)
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "no in-flight execution: "+execID)
	}
	r.exec.CancelReason = &reason
	r.cancel()
	return nil
}

// Pause halts dispatch of new nodes for an in-flight execution without
// cancelling work already running (the `pauseExecution(id, reason)`
// operation, distinct from Cancel's hard stop).
func (s *Scheduler) Pause(execID, reason string) error {
	r, ok := s.getRun(execID)
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "no in-flight execution: "+execID)
	}
	select {
	case r.pauseCh <- pauseSignal{kind: pauseSignalPause, reason: reason}:
		return nil
	case <-r.ctx.Done():
		return engineerr.New(engineerr.KindStateConflict, "execution already terminal: "+execID)
	}
}

// Unpause resumes dispatch on a previously paused execution (the
// `resumeExecution(id, data)` operation when the execution's status is
// paused rather than waiting on a suspended node; see Resume for the
// waiting-node case).
func (s *Scheduler) Unpause(execID string) error {
	r, ok := s.getRun(execID)
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "no in-flight execution: "+execID)
	}
	select {
	case r.pauseCh <- pauseSignal{kind: pauseSignalUnpause}:
		return nil
	case <-r.ctx.Done():
		return engineerr.New(engineerr.KindStateConflict, "execution already terminal: "+execID)
	}
}

func (s *Scheduler) getRun(execID string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[execID]
	return r, ok
}

// RetryExecution spawns a new Execution with RetryOf set and
// RetryCount+1, per §4.5's scheduler-level retry operation — distinct
// from node-local retry, which is an opt-in handler policy.
func (s *Scheduler) RetryExecution(ctx context.Context, original *execmodel.Execution, def flow.Definition, parse *dag.ParseResult) (*execmodel.Execution, error) {
	if !original.CanRetry() {
		return nil, engineerr.New(engineerr.KindStateConflict, "execution is not retryable: "+original.ID)
	}
	retry := &execmodel.Execution{
		ID:             uuid.NewString(),
		TenantID:       original.TenantID,
		FlowID:         original.FlowID,
		FlowVersionID:  original.FlowVersionID,
		Status:         execmodel.ExecutionPending,
		TriggerType:    original.TriggerType,
		TriggeredBy:    original.TriggeredBy,
		TriggerInput:   original.TriggerInput,
		TriggerContext: original.TriggerContext,
		RetryOf:        &original.ID,
		RetryCount:     original.RetryCount + 1,
		MaxRetries:     original.MaxRetries,
		CreatedAt:      time.Now(),
	}
	if err := s.StartExecution(ctx, def, parse, retry); err != nil {
		return nil, err
	}
	return retry, nil
}
