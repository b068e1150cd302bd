package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalochat/capforge/internal/engine"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedState() *engine.PipelineState {
	st := engine.NewState("sess-1", "Online Shop")
	st.ProjectDescription = "a web shop"
	st.Domain = engine.DomainEcommerce
	st.Provider = "openai"
	st.Entities = []engine.EntityDefinition{{
		Name: "Order",
		Fields: []engine.FieldDefinition{
			{Name: "ID", Type: engine.TypeUUID, Key: true},
			{Name: "total", Type: engine.TypeDecimal},
		},
	}}
	st.Relationships = []engine.RelationshipDefinition{
		{Source: "Order", Target: "Order", Type: "association", Cardinality: "1:1"},
	}
	st.BusinessRules = []engine.BusinessRule{
		{Name: "Check", Entity: "Order", RuleType: "validation"},
	}
	return st
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	st := seedState()
	require.NoError(t, s.CreateSession(st))

	loaded, err := s.LoadSession("sess-1")
	require.NoError(t, err)

	assert.Equal(t, st.ProjectName, loaded.ProjectName)
	assert.Equal(t, st.ProjectNamespace, loaded.ProjectNamespace)
	assert.Equal(t, st.Domain, loaded.Domain)
	assert.Equal(t, st.Auth, loaded.Auth)
	assert.Equal(t, engine.RunPending, loaded.Status)
	require.Len(t, loaded.Entities, 1)
	assert.Equal(t, "Order", loaded.Entities[0].Name)
	assert.Len(t, loaded.Entities[0].Fields, 2)
	assert.Len(t, loaded.Relationships, 1)
	assert.Len(t, loaded.BusinessRules, 1)
	assert.NotNil(t, loaded.Artifacts)
}

func TestLoadSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadSession("missing")
	require.Error(t, err)
}

func TestSaveStateUpdatesSession(t *testing.T) {
	s := newTestStore(t)
	st := seedState()
	require.NoError(t, s.CreateSession(st))

	st.Status = engine.RunCompleted
	st.RunID = "run-1"
	st.MainEntity = "Order"
	st.StartedAt = time.Now()
	st.CompletedAt = time.Now()
	require.NoError(t, s.SaveState(st))

	loaded, err := s.LoadSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RunCompleted, loaded.Status)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "Order", loaded.MainEntity)
	assert.False(t, loaded.StartedAt.IsZero())
}

func TestArtifactUpsertAndListing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(seedState()))

	a := engine.Artifact{Path: "db/schema.cds", Content: "v1", FileType: "cds", Category: engine.CategoryDB}
	require.NoError(t, s.SaveArtifact("sess-1", a))

	a.Content = "v2"
	a.Edited = true
	require.NoError(t, s.SaveArtifact("sess-1", a))
	require.NoError(t, s.SaveArtifact("sess-1", engine.Artifact{
		Path: "srv/service.cds", Content: "srv", FileType: "cds", Category: engine.CategorySrv,
	}))

	all, err := s.ListArtifacts("sess-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	db, err := s.ListArtifacts("sess-1", engine.CategoryDB)
	require.NoError(t, err)
	require.Len(t, db, 1)
	assert.Equal(t, "v2", db[0].Content)
	assert.True(t, db[0].Edited)

	// Artifacts come back attached to the loaded session state.
	loaded, err := s.LoadSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Artifacts.Len())
	got, ok := loaded.Artifacts.Get(engine.CategoryDB, "db/schema.cds")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Content)
}

func TestExecutionUpsertAndOrdering(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(seedState()))

	started := time.Now().Add(-time.Second)
	rec := engine.AgentExecution{
		ID:        "exec-1",
		Agent:     engine.StageRequirements,
		Status:    engine.ExecRunning,
		StartedAt: started,
	}
	require.NoError(t, s.SaveExecution("sess-1", rec))

	rec.Status = engine.ExecCompleted
	rec.Method = engine.MethodTemplate
	rec.CompletedAt = time.Now()
	rec.DurationMS = 1000
	rec.Log = []string{"fell back to template"}
	require.NoError(t, s.SaveExecution("sess-1", rec))

	require.NoError(t, s.SaveExecution("sess-1", engine.AgentExecution{
		ID: "exec-2", Agent: engine.StageDataModeling,
		Status: engine.ExecCompleted, Method: engine.MethodLLM,
		StartedAt: time.Now(),
	}))

	records, err := s.ListExecutions("sess-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, engine.StageRequirements, records[0].Agent)
	assert.Equal(t, engine.ExecCompleted, records[0].Status)
	assert.Equal(t, engine.MethodTemplate, records[0].Method)
	assert.Equal(t, []string{"fell back to template"}, records[0].Log)
	assert.Equal(t, engine.StageDataModeling, records[1].Agent)
}

func TestMetricsAggregate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(seedState()))

	entries := []engine.MetricsEntry{
		{Timestamp: time.Now(), Agent: engine.StageRequirements, Provider: "openai", Method: engine.MethodLLM, DurationMS: 100},
		{Timestamp: time.Now(), Agent: engine.StageRequirements, Provider: "openai", Method: engine.MethodTemplate, DurationMS: 5},
		{Timestamp: time.Now(), Agent: engine.StageDataModeling, Provider: "openai", Method: engine.MethodTemplate, DurationMS: 7},
	}
	for _, e := range entries {
		require.NoError(t, s.RecordMetric("sess-1", e))
	}

	ms, err := s.LoadMetricsAggregate("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ms.Fallbacks)
	assert.Equal(t, 2, ms.ByAgent[string(engine.StageRequirements)].Calls)
	assert.Equal(t, 1, ms.ByAgent[string(engine.StageRequirements)].Fallbacks)
	assert.Equal(t, int64(105), ms.ByAgent[string(engine.StageRequirements)].DurationMS)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(seedState()))
	require.NoError(t, s.SaveArtifact("sess-1", engine.Artifact{
		Path: "db/schema.cds", Content: "x", Category: engine.CategoryDB,
	}))

	require.NoError(t, s.DeleteSession("sess-1"))

	_, err := s.LoadSession("sess-1")
	require.Error(t, err)
	artifacts, err := s.ListArtifacts("sess-1", "")
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(seedState()))

	second := engine.NewState("sess-2", "Warehouse")
	require.NoError(t, s.CreateSession(second))
	require.NoError(t, s.SaveArtifact("sess-2", engine.Artifact{
		Path: "db/schema.cds", Content: "x", Category: engine.CategoryDB,
	}))

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := make(map[string]SessionSummary, len(sessions))
	for _, ss := range sessions {
		byID[ss.ID] = ss
	}
	assert.Equal(t, "Online Shop", byID["sess-1"].ProjectName)
	assert.Equal(t, 1, byID["sess-2"].ArtifactCount)
}
