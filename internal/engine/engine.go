package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Agent is one named pipeline stage. Run receives a snapshot of the shared
// state and returns artifacts plus a state delta; it must never mutate the
// run's shared state, only the orchestrator applies outputs.
// A returned error is always fatal for the run; recoverable failures are
// absorbed by the agent's template fallback and reported via
// StageOutput.Fallback.
type Agent interface {
	Name() Stage
	Run(ctx context.Context, st *PipelineState) (*StageOutput, error)
}

// RunStore is the subset of store.Store the engine needs (avoids an import
// cycle with the store package).
type RunStore interface {
	MetricRecorder
	SaveState(st *PipelineState) error
	SaveArtifact(sessionID string, a Artifact) error
	SaveExecution(sessionID string, rec AgentExecution) error
}

// plan is the fixed stage order. Each inner group must fully finish before
// the next group starts; the three-member group fans out over independent
// stages that read the same upstream state and write disjoint buckets.
var plan = [][]Stage{
	{StageRequirements},
	{StageDataModeling},
	{StageServiceExposure},
	{StageBusinessLogic, StageFioriUI, StageSecurity},
	{StageExtension},
	{StageDeployment},
	{StageValidation},
}

// Engine orchestrates one session's generation pipeline.
type Engine struct {
	Events  *EventBus
	Metrics *MetricsCollector

	mu     sync.RWMutex
	state  *PipelineState
	agents map[Stage]Agent
	store  RunStore
	log    *zap.Logger

	parallel bool
	running  atomic.Bool
	cancel   context.CancelFunc
}

// New creates an engine for the given session state.
func New(st *PipelineState, store RunStore, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	bus := NewEventBus()
	return &Engine{
		Events:   bus,
		Metrics:  NewMetricsCollector(store, st.SessionID, bus),
		state:    st,
		agents:   make(map[Stage]Agent),
		store:    store,
		log:      log,
		parallel: true,
	}
}

// Register adds an agent. All nine stages must be registered before Generate.
func (e *Engine) Register(a Agent) {
	e.agents[a.Name()] = a
}

// SetParallel toggles concurrent execution of the fan-out group. Ordering
// between its members is not semantically significant either way.
func (e *Engine) SetParallel(on bool) { e.parallel = on }

// Running reports whether a generation run is in flight.
func (e *Engine) Running() bool { return e.running.Load() }

// Generate executes the full pipeline against the session's state. Only one
// run per session may be in flight; a second trigger fails with
// ErrRunInProgress. A fatal stage error halts scheduling and marks the run
// failed; everything produced up to that point stays on the state.
func (e *Engine) Generate(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer e.running.Store(false)

	for _, group := range plan {
		for _, stage := range group {
			if _, ok := e.agents[stage]; !ok {
				return fmt.Errorf("no agent registered for stage %s", stage)
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.state.RunID = uuid.New().String()[:8]
	e.state.Status = RunRunning
	e.state.StartedAt = time.Now()
	e.state.History = nil
	e.mu.Unlock()
	e.saveState()

	e.log.Info("pipeline started",
		zap.String("session_id", e.state.SessionID),
		zap.String("run_id", e.state.RunID),
		zap.String("provider", e.state.Provider))
	e.publish(EventPipelineStarted, map[string]string{"run_id": e.state.RunID})

	for _, group := range plan {
		if err := ctx.Err(); err != nil {
			return e.failRun("", fmt.Errorf("run cancelled: %w", err), EventPipelineCancelled)
		}

		var err error
		if len(group) == 1 {
			err = e.runSingle(ctx, group[0])
		} else {
			err = e.runGroup(ctx, group)
		}
		if err != nil {
			evt := EventPipelineFailed
			if ctx.Err() != nil {
				evt = EventPipelineCancelled
			}
			return e.failRun(stageOf(err), err, evt)
		}
	}

	e.mu.Lock()
	e.state.Status = RunCompleted
	e.state.CompletedAt = time.Now()
	e.mu.Unlock()
	e.saveState()
	e.Metrics.RecordRun()

	e.log.Info("pipeline completed",
		zap.String("run_id", e.state.RunID),
		zap.Int("artifacts", e.state.Artifacts.Len()))
	e.publish(EventPipelineCompleted, map[string]interface{}{
		"run_id":    e.state.RunID,
		"artifacts": e.state.Artifacts.Len(),
	})
	return nil
}

// Cancel stops scheduling further stages of the active run, if any.
func (e *Engine) Cancel() {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel != nil && e.running.Load() {
		cancel()
	}
}

// runSingle executes one stage against the live state and applies its output.
func (e *Engine) runSingle(ctx context.Context, stage Stage) error {
	exec, out, err := e.runStage(ctx, stage)
	e.appendExecution(exec)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		// In-flight output of a cancelled stage is discarded, not merged.
		return fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	e.applyOutput(out)
	return nil
}

// runGroup fans out the independent stages on state snapshots, joins them at
// a barrier, then applies outputs in declared order. The next group never
// starts before every member has a terminal execution status.
func (e *Engine) runGroup(ctx context.Context, group []Stage) error {
	execs := make([]AgentExecution, len(group))
	outs := make([]*StageOutput, len(group))
	errs := make([]error, len(group))

	if e.parallel {
		var wg sync.WaitGroup
		for i, stage := range group {
			wg.Add(1)
			go func(i int, stage Stage) {
				defer wg.Done()
				execs[i], outs[i], errs[i] = e.runStage(ctx, stage)
			}(i, stage)
		}
		wg.Wait()
	} else {
		for i, stage := range group {
			execs[i], outs[i], errs[i] = e.runStage(ctx, stage)
		}
	}

	for _, exec := range execs {
		e.appendExecution(exec)
	}
	for i := range group {
		if errs[i] != nil {
			return errs[i]
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	for _, out := range outs {
		e.applyOutput(out)
	}
	return nil
}

// runStage runs one agent against a snapshot and finalizes its execution
// record. The returned error is fatal for the run.
func (e *Engine) runStage(ctx context.Context, stage Stage) (AgentExecution, *StageOutput, error) {
	agent := e.agents[stage]

	exec := AgentExecution{
		ID:        uuid.New().String()[:12],
		Agent:     stage,
		Status:    ExecRunning,
		StartedAt: time.Now(),
	}
	e.publish(EventAgentStarted, map[string]string{"agent": string(stage), "execution_id": exec.ID})
	e.log.Info("stage started", zap.String("stage", string(stage)))

	e.mu.RLock()
	snapshot := e.state.Clone()
	e.mu.RUnlock()

	out, err := agent.Run(ctx, snapshot)

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		fatal := Fatal(stage, err)
		exec.finalize(ExecFailed, fatal.Error())
		e.publish(EventAgentFailed, map[string]string{
			"agent": string(stage),
			"error": fatal.Error(),
		})
		e.log.Error("stage failed", zap.String("stage", string(stage)), zap.Error(fatal))
		return exec, nil, fatal
	}

	exec.Method = MethodLLM
	errMsg := ""
	if out.Fallback != nil {
		exec.Method = MethodTemplate
		errMsg = out.Fallback.Error()
	}
	exec.Log = out.Log
	exec.finalize(ExecCompleted, errMsg)

	e.Metrics.Record(MetricsEntry{
		Timestamp:  time.Now(),
		Agent:      stage,
		Provider:   snapshot.Provider,
		Model:      snapshot.Model,
		Method:     exec.Method,
		DurationMS: exec.DurationMS,
	})
	e.publish(EventAgentCompleted, map[string]interface{}{
		"agent":       string(stage),
		"method":      exec.Method,
		"duration_ms": exec.DurationMS,
		"artifacts":   len(out.Artifacts),
	})
	e.log.Info("stage completed",
		zap.String("stage", string(stage)),
		zap.String("method", string(exec.Method)),
		zap.Int64("duration_ms", exec.DurationMS))
	return exec, out, nil
}

// applyOutput merges a completed stage's artifacts and delta into the shared
// state. This is the only place pipeline writes happen.
func (e *Engine) applyOutput(out *StageOutput) {
	e.mu.Lock()
	for _, a := range out.Artifacts {
		e.state.Artifacts.Put(a)
	}
	e.state.Apply(out.Delta)
	e.mu.Unlock()

	if e.store != nil {
		for _, a := range out.Artifacts {
			e.store.SaveArtifact(e.state.SessionID, a)
		}
	}
	e.saveState()
}

func (e *Engine) appendExecution(exec AgentExecution) {
	e.mu.Lock()
	e.state.History = append(e.state.History, exec)
	e.mu.Unlock()
	if e.store != nil {
		e.store.SaveExecution(e.state.SessionID, exec)
	}
}

func (e *Engine) failRun(stage Stage, err error, evt EventType) error {
	e.mu.Lock()
	e.state.Status = RunFailed
	e.state.CompletedAt = time.Now()
	e.mu.Unlock()
	e.saveState()

	data := map[string]string{"run_id": e.state.RunID, "error": err.Error()}
	if stage != "" {
		data["stage"] = string(stage)
	}
	e.publish(evt, data)
	e.log.Warn("pipeline halted", zap.String("run_id", e.state.RunID), zap.Error(err))
	return err
}

// Snapshot returns the current overall status, execution history, and
// artifact counts per category. Safe to call repeatedly during a run.
func (e *Engine) Snapshot() StatusSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := StatusSnapshot{
		SessionID: e.state.SessionID,
		RunID:     e.state.RunID,
		Status:    e.state.Status,
		History:   append([]AgentExecution(nil), e.state.History...),
		Artifacts: make(map[Category]int, len(Categories)),
	}
	for _, cat := range Categories {
		snap.Artifacts[cat] = len(e.state.Artifacts.ByCategory(cat))
	}
	return snap
}

// StatusSnapshot is the progressive status view exposed for polling.
type StatusSnapshot struct {
	SessionID string           `json:"session_id"`
	RunID     string           `json:"run_id,omitempty"`
	Status    RunStatus        `json:"status"`
	History   []AgentExecution `json:"agent_history"`
	Artifacts map[Category]int `json:"artifact_counts"`
}

// State returns a deep copy of the session state.
func (e *Engine) State() *PipelineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// UpdateConfig replaces the configurable part of the session state. Rejected
// while a run is in flight.
func (e *Engine) UpdateConfig(apply func(st *PipelineState)) error {
	if e.running.Load() {
		return ErrRunInProgress
	}
	e.mu.Lock()
	apply(e.state)
	e.state.UpdatedAt = time.Now()
	e.mu.Unlock()
	e.saveState()
	return nil
}

// SaveArtifact replaces one artifact's content by path without re-running
// the pipeline. The edit is pinned: later pipeline runs will not overwrite
// it unless the session is explicitly regenerated from scratch.
func (e *Engine) SaveArtifact(path, content string) error {
	e.mu.Lock()
	ok := e.state.Artifacts.Save(path, content)
	e.state.UpdatedAt = time.Now()
	var saved Artifact
	if ok {
		for _, cat := range Categories {
			if a, found := e.state.Artifacts.Get(cat, path); found {
				saved = a
				break
			}
		}
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("no artifact with path %s", path)
	}
	if e.store != nil {
		e.store.SaveArtifact(e.state.SessionID, saved)
	}
	e.publish(EventArtifactSaved, map[string]string{"path": path})
	return nil
}

// Reset clears all artifacts (including pinned manual edits) and history,
// returning the session to pending for a full regeneration.
func (e *Engine) Reset() error {
	if e.running.Load() {
		return ErrRunInProgress
	}
	e.mu.Lock()
	e.state.Artifacts.Reset()
	e.state.History = nil
	e.state.Status = RunPending
	e.state.RunID = ""
	e.state.UpdatedAt = time.Now()
	e.mu.Unlock()
	e.saveState()
	return nil
}

func (e *Engine) saveState() {
	if e.store == nil {
		return
	}
	e.mu.RLock()
	st := e.state.Clone()
	e.mu.RUnlock()
	if err := e.store.SaveState(st); err != nil {
		e.log.Warn("save state", zap.Error(err))
	}
}

func (e *Engine) publish(t EventType, data interface{}) {
	e.Events.Publish(Event{Type: t, SessionID: e.state.SessionID, Data: data})
}

// stageOf extracts the failing stage from a fatal error chain.
func stageOf(err error) Stage {
	var fe *FatalStageError
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return ""
}
