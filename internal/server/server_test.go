package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalochat/capforge/internal/config"
	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Pipeline.Parallel = true
	// No API key configured: runs take the template path deterministically.
	cfg.LLM.Provider = "openai"

	srv := New(st, cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	go srv.wsHub.Run()
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", map[string]interface{}{
		"project_name": "Online Shop",
		"domain_type":  "ecommerce",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created engine.PipelineState
	decode(t, resp, &created)
	require.NotEmpty(t, created.SessionID)
	return created.SessionID
}

func TestCreateAndListSessions(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Sessions []store.SessionSummary `json:"sessions"`
	}
	decode(t, resp, &listing)
	require.Len(t, listing.Sessions, 1)
	assert.Equal(t, id, listing.Sessions[0].ID)
	assert.Equal(t, "Online Shop", listing.Sessions[0].ProjectName)
}

func TestCreateSessionRequiresProjectName(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateSessionRejectsInvalidModel(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", map[string]interface{}{
		"project_name": "Shop",
		"entities": []map[string]interface{}{
			{"name": "Note", "fields": []map[string]interface{}{
				{"name": "text", "type": "String"},
			}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateConfig(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)

	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/sessions/%s/config", ts.URL, id), map[string]interface{}{
		"fiori_theme":       "sap_fiori_3",
		"deployment_target": "cf",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated engine.PipelineState
	decode(t, resp, &updated)
	assert.Equal(t, "sap_fiori_3", updated.Theme)
	assert.Equal(t, engine.DeployCF, updated.Target)
}

func TestGenerateLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)
	base := fmt.Sprintf("%s/api/sessions/%s", ts.URL, id)

	resp := doJSON(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp := doJSON(t, http.MethodGet, base+"/status", nil)
		var snap engine.StatusSnapshot
		decode(t, resp, &snap)
		return snap.Status == engine.RunCompleted
	}, 10*time.Second, 50*time.Millisecond)

	// Status carries the full execution history.
	resp = doJSON(t, http.MethodGet, base+"/status", nil)
	var snap engine.StatusSnapshot
	decode(t, resp, &snap)
	assert.Len(t, snap.History, 9)
	assert.Greater(t, snap.Artifacts[engine.CategoryDB], 0)

	// Artifacts are queryable by category.
	resp = doJSON(t, http.MethodGet, base+"/artifacts?category=db", nil)
	var listing struct {
		Artifacts []engine.Artifact `json:"artifacts"`
	}
	decode(t, resp, &listing)
	require.NotEmpty(t, listing.Artifacts)
	for _, a := range listing.Artifacts {
		assert.Equal(t, engine.CategoryDB, a.Category)
	}

	// Metrics were recorded per agent.
	resp = doJSON(t, http.MethodGet, base+"/metrics", nil)
	var ms engine.MetricsState
	decode(t, resp, &ms)
	assert.NotEmpty(t, ms.ByAgent)
}

func TestGenerateConflictWhileRunning(t *testing.T) {
	srv, ts := newTestServer(t)
	id := createSession(t, ts)

	srv.mu.RLock()
	entry := srv.sessions[id]
	srv.mu.RUnlock()
	require.NotNil(t, entry)
	entry.running.Store(true)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/sessions/%s/generate", ts.URL, id), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	entry.running.Store(false)
}

func TestManualArtifactSave(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)
	base := fmt.Sprintf("%s/api/sessions/%s", ts.URL, id)

	resp := doJSON(t, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp := doJSON(t, http.MethodGet, base+"/status", nil)
		var snap engine.StatusSnapshot
		decode(t, resp, &snap)
		return snap.Status == engine.RunCompleted
	}, 10*time.Second, 50*time.Millisecond)

	resp = doJSON(t, http.MethodPut, base+"/artifacts", map[string]string{
		"path":    "db/schema.cds",
		"content": "// edited by hand",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, base+"/artifacts?category=db", nil)
	var listing struct {
		Artifacts []engine.Artifact `json:"artifacts"`
	}
	decode(t, resp, &listing)
	found := false
	for _, a := range listing.Artifacts {
		if a.Path == "db/schema.cds" {
			found = true
			assert.Equal(t, "// edited by hand", a.Content)
			assert.True(t, a.Edited)
		}
	}
	assert.True(t, found)

	// Unknown paths cannot be created through manual save.
	resp = doJSON(t, http.MethodPut, base+"/artifacts", map[string]string{
		"path": "db/new.cds", "content": "x",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteSession(t *testing.T) {
	_, ts := newTestServer(t)
	id := createSession(t, ts)

	resp := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/sessions/%s", ts.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/sessions/%s", ts.URL, id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestProvidersEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/providers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []string `json:"providers"`
	}
	decode(t, resp, &body)
	assert.ElementsMatch(t, []string{"openai", "gemini", "deepseek", "kimi"}, body.Providers)
}
