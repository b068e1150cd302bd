package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yalochat/capforge/internal/engine"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and applies migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// ---------- Session lifecycle ----------

func (s *SQLiteStore) CreateSession(st *engine.PipelineState) error {
	entities, _ := json.Marshal(st.Entities)
	relationships, _ := json.Marshal(st.Relationships)
	rules, _ := json.Marshal(st.BusinessRules)

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, project_name, project_namespace, project_description,
		   domain_type, llm_provider, llm_model, auth_type, deployment_target, ci_enabled,
		   main_entity, fiori_theme, status, run_id, entities, relationships, business_rules,
		   created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		st.SessionID, st.ProjectName, st.ProjectNamespace, st.ProjectDescription,
		string(st.Domain), st.Provider, st.Model, string(st.Auth), string(st.Target), st.CIEnabled,
		st.MainEntity, st.Theme, string(st.Status), st.RunID,
		string(entities), string(relationships), string(rules),
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(sessionID string) (*engine.PipelineState, error) {
	st := &engine.PipelineState{Artifacts: engine.NewArtifactSet()}

	var domain, auth, target, status string
	var entities, relationships, rules string
	var startedAt, completedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, project_name, project_namespace, project_description,
		   domain_type, llm_provider, llm_model, auth_type, deployment_target, ci_enabled,
		   main_entity, fiori_theme, status, run_id, entities, relationships, business_rules,
		   started_at, completed_at, created_at, updated_at
		 FROM sessions WHERE id = ?`, sessionID,
	).Scan(
		&st.SessionID, &st.ProjectName, &st.ProjectNamespace, &st.ProjectDescription,
		&domain, &st.Provider, &st.Model, &auth, &target, &st.CIEnabled,
		&st.MainEntity, &st.Theme, &status, &st.RunID,
		&entities, &relationships, &rules,
		&startedAt, &completedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no session found")
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	st.Domain = engine.DomainType(domain)
	st.Auth = engine.AuthType(auth)
	st.Target = engine.DeployTarget(target)
	st.Status = engine.RunStatus(status)
	st.StartedAt = startedAt.Time
	st.CompletedAt = completedAt.Time
	json.Unmarshal([]byte(entities), &st.Entities)
	json.Unmarshal([]byte(relationships), &st.Relationships)
	json.Unmarshal([]byte(rules), &st.BusinessRules)

	// Load artifacts into category buckets
	rows, err := s.db.Query(
		`SELECT category, path, content, file_type, edited FROM artifacts
		 WHERE session_id = ? ORDER BY rowid ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a engine.Artifact
		var cat string
		if err := rows.Scan(&cat, &a.Path, &a.Content, &a.FileType, &a.Edited); err != nil {
			return nil, err
		}
		a.Category = engine.Category(cat)
		st.Artifacts.Put(a)
	}

	history, err := s.ListExecutions(sessionID)
	if err != nil {
		return nil, err
	}
	st.History = history

	return st, nil
}

func (s *SQLiteStore) ListSessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.project_name, s.domain_type, s.status, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM artifacts a WHERE a.session_id = s.id) as artifact_count
		FROM sessions s ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		if err := rows.Scan(&ss.ID, &ss.ProjectName, &ss.Domain, &ss.Status, &ss.CreatedAt, &ss.UpdatedAt, &ss.ArtifactCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, nil
}

func (s *SQLiteStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// ---------- Incremental saves ----------

func (s *SQLiteStore) SaveState(st *engine.PipelineState) error {
	entities, _ := json.Marshal(st.Entities)
	relationships, _ := json.Marshal(st.Relationships)
	rules, _ := json.Marshal(st.BusinessRules)

	_, err := s.db.Exec(
		`UPDATE sessions SET project_name = ?, project_namespace = ?, project_description = ?,
		   domain_type = ?, llm_provider = ?, llm_model = ?, auth_type = ?, deployment_target = ?,
		   ci_enabled = ?, main_entity = ?, fiori_theme = ?, status = ?, run_id = ?,
		   entities = ?, relationships = ?, business_rules = ?,
		   started_at = ?, completed_at = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		st.ProjectName, st.ProjectNamespace, st.ProjectDescription,
		string(st.Domain), st.Provider, st.Model, string(st.Auth), string(st.Target),
		st.CIEnabled, st.MainEntity, st.Theme, string(st.Status), st.RunID,
		string(entities), string(relationships), string(rules),
		nullTime(st.StartedAt), nullTime(st.CompletedAt),
		st.SessionID,
	)
	return err
}

func (s *SQLiteStore) SaveArtifact(sessionID string, a engine.Artifact) error {
	_, err := s.db.Exec(
		`INSERT INTO artifacts (session_id, category, path, content, file_type, edited)
		 VALUES (?,?,?,?,?,?)
		 ON CONFLICT(session_id, path) DO UPDATE SET
		   category=excluded.category, content=excluded.content,
		   file_type=excluded.file_type, edited=excluded.edited`,
		sessionID, string(a.Category), a.Path, a.Content, a.FileType, a.Edited,
	)
	return err
}

func (s *SQLiteStore) SaveExecution(sessionID string, rec engine.AgentExecution) error {
	logJSON, _ := json.Marshal(rec.Log)
	_, err := s.db.Exec(
		`INSERT INTO executions (id, session_id, agent, status, method, started_at, completed_at, duration_ms, error_message, log)
		 VALUES (?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, method=excluded.method, completed_at=excluded.completed_at,
		   duration_ms=excluded.duration_ms, error_message=excluded.error_message, log=excluded.log`,
		rec.ID, sessionID, string(rec.Agent), string(rec.Status), string(rec.Method),
		rec.StartedAt, nullTime(rec.CompletedAt), rec.DurationMS, rec.Error, string(logJSON),
	)
	return err
}

// ---------- Queries ----------

func (s *SQLiteStore) ListArtifacts(sessionID string, cat engine.Category) ([]engine.Artifact, error) {
	query := `SELECT category, path, content, file_type, edited FROM artifacts WHERE session_id = ? ORDER BY rowid ASC`
	args := []interface{}{sessionID}
	if cat != "" {
		query = `SELECT category, path, content, file_type, edited FROM artifacts WHERE session_id = ? AND category = ? ORDER BY rowid ASC`
		args = append(args, string(cat))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []engine.Artifact
	for rows.Next() {
		var a engine.Artifact
		var category string
		if err := rows.Scan(&category, &a.Path, &a.Content, &a.FileType, &a.Edited); err != nil {
			return nil, err
		}
		a.Category = engine.Category(category)
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (s *SQLiteStore) ListExecutions(sessionID string) ([]engine.AgentExecution, error) {
	rows, err := s.db.Query(
		`SELECT id, agent, status, method, started_at, completed_at, duration_ms, error_message, log
		 FROM executions WHERE session_id = ? ORDER BY started_at ASC, rowid ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []engine.AgentExecution
	for rows.Next() {
		var rec engine.AgentExecution
		var agent, status, method, logJSON string
		var completedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &agent, &status, &method, &rec.StartedAt, &completedAt, &rec.DurationMS, &rec.Error, &logJSON); err != nil {
			return nil, err
		}
		rec.Agent = engine.Stage(agent)
		rec.Status = engine.ExecStatus(status)
		rec.Method = engine.GenMethod(method)
		rec.CompletedAt = completedAt.Time
		json.Unmarshal([]byte(logJSON), &rec.Log)
		records = append(records, rec)
	}
	return records, nil
}

// ---------- Metrics ----------

func (s *SQLiteStore) RecordMetric(sessionID string, entry engine.MetricsEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO metrics_entries (session_id, timestamp, agent, provider, model, method, duration_ms)
		 VALUES (?,?,?,?,?,?,?)`,
		sessionID, entry.Timestamp, string(entry.Agent), entry.Provider, entry.Model,
		string(entry.Method), entry.DurationMS,
	)
	return err
}

func (s *SQLiteStore) LoadMetricsAggregate(sessionID string) (engine.MetricsState, error) {
	ms := engine.MetricsState{ByAgent: make(map[string]engine.StageUsage)}

	rows, err := s.db.Query(
		`SELECT agent, COUNT(*), SUM(CASE WHEN method = 'template' THEN 1 ELSE 0 END),
		   COALESCE(SUM(duration_ms),0)
		 FROM metrics_entries WHERE session_id = ? GROUP BY agent`, sessionID,
	)
	if err != nil {
		return ms, err
	}
	defer rows.Close()
	for rows.Next() {
		var agent string
		var u engine.StageUsage
		if err := rows.Scan(&agent, &u.Calls, &u.Fallbacks, &u.DurationMS); err != nil {
			return ms, err
		}
		ms.ByAgent[agent] = u
		ms.Fallbacks += u.Fallbacks
	}

	err = s.db.QueryRow(
		`SELECT COUNT(DISTINCT run_id) FROM sessions WHERE id = ? AND run_id != ''`, sessionID,
	).Scan(&ms.Runs)
	if err != nil {
		return ms, err
	}
	return ms, nil
}

// ---------- Helpers ----------

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
