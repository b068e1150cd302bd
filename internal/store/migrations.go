package store

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    project_name TEXT NOT NULL,
    project_namespace TEXT DEFAULT '',
    project_description TEXT DEFAULT '',
    domain_type TEXT DEFAULT 'custom',
    llm_provider TEXT DEFAULT '',
    llm_model TEXT DEFAULT '',
    auth_type TEXT DEFAULT 'mock',
    deployment_target TEXT DEFAULT 'local',
    ci_enabled BOOLEAN DEFAULT 0,
    main_entity TEXT DEFAULT '',
    fiori_theme TEXT DEFAULT '',
    status TEXT DEFAULT 'pending',
    run_id TEXT DEFAULT '',
    entities TEXT DEFAULT '[]',
    relationships TEXT DEFAULT '[]',
    business_rules TEXT DEFAULT '[]',
    started_at DATETIME,
    completed_at DATETIME,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS artifacts (
    session_id TEXT REFERENCES sessions(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    path TEXT NOT NULL,
    content TEXT NOT NULL,
    file_type TEXT DEFAULT 'text',
    edited BOOLEAN DEFAULT 0,
    PRIMARY KEY (session_id, path)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_category ON artifacts(session_id, category);

CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    agent TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'running',
    method TEXT DEFAULT '',
    started_at DATETIME,
    completed_at DATETIME,
    duration_ms INTEGER DEFAULT 0,
    error_message TEXT DEFAULT '',
    log TEXT DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_executions_session ON executions(session_id);

CREATE TABLE IF NOT EXISTS metrics_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT REFERENCES sessions(id) ON DELETE CASCADE,
    timestamp DATETIME,
    agent TEXT,
    provider TEXT,
    model TEXT,
    method TEXT,
    duration_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_metrics_session ON metrics_entries(session_id);
`
