package store

import (
	"time"

	"github.com/yalochat/capforge/internal/engine"
)

// SessionSummary is a lightweight representation for listing sessions.
type SessionSummary struct {
	ID            string    `json:"id"`
	ProjectName   string    `json:"project_name"`
	Domain        string    `json:"domain_type"`
	Status        string    `json:"status"`
	ArtifactCount int       `json:"artifact_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store defines the persistence interface for wizard sessions. It is a
// superset of engine.RunStore so one implementation serves both the HTTP
// layer and the pipeline.
type Store interface {
	// Session lifecycle
	CreateSession(st *engine.PipelineState) error
	LoadSession(sessionID string) (*engine.PipelineState, error)
	ListSessions() ([]SessionSummary, error)
	DeleteSession(sessionID string) error

	// Incremental saves driven by the pipeline
	SaveState(st *engine.PipelineState) error
	SaveArtifact(sessionID string, a engine.Artifact) error
	SaveExecution(sessionID string, rec engine.AgentExecution) error

	// Queries
	ListArtifacts(sessionID string, cat engine.Category) ([]engine.Artifact, error)
	ListExecutions(sessionID string) ([]engine.AgentExecution, error)

	// Metrics
	RecordMetric(sessionID string, entry engine.MetricsEntry) error
	LoadMetricsAggregate(sessionID string) (engine.MetricsState, error)

	Close() error
}
