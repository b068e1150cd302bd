package engine

import "time"

// ExecStatus tracks the lifecycle of one agent execution.
type ExecStatus string

const (
	ExecPending   ExecStatus = "pending"
	ExecRunning   ExecStatus = "running"
	ExecCompleted ExecStatus = "completed"
	ExecFailed    ExecStatus = "failed"
)

// GenMethod records which generation path produced a stage's artifacts.
type GenMethod string

const (
	MethodLLM      GenMethod = "llm"
	MethodTemplate GenMethod = "template"
)

// AgentExecution is the per-stage execution record. It is created when the
// stage starts, finalized exactly once when the stage completes or fails,
// and immutable thereafter. Records are appended to the run's history in
// stage-start order.
type AgentExecution struct {
	ID          string     `json:"id"`
	Agent       Stage      `json:"agent_name"`
	Status      ExecStatus `json:"status"`
	Method      GenMethod  `json:"method,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at,omitzero"`
	DurationMS  int64      `json:"duration_ms"`
	Error       string     `json:"error,omitempty"`
	Log         []string   `json:"log,omitempty"`
}

// finalize stamps the terminal status and duration.
func (e *AgentExecution) finalize(status ExecStatus, errMsg string) {
	e.Status = status
	e.Error = errMsg
	e.CompletedAt = time.Now()
	e.DurationMS = e.CompletedAt.Sub(e.StartedAt).Milliseconds()
}
