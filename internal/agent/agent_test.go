package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/llm"
)

func newEngine(t *testing.T, st *engine.PipelineState, client llm.Client) *engine.Engine {
	t.Helper()
	e := engine.New(st, nil, nil)
	RegisterAll(e, client, nil)
	return e
}

func TestFullPipelineOnTemplatesOnly(t *testing.T) {
	st := engine.NewState("sess-1", "Online Shop")
	st.Domain = engine.DomainEcommerce
	st.Provider = "openai"
	st.CIEnabled = true

	e := newEngine(t, st, llm.NewFailing("openai"))
	require.NoError(t, e.Generate(context.Background()))

	final := e.State()
	assert.Equal(t, engine.RunCompleted, final.Status)

	// Every stage fell back to templates and recorded why.
	require.Len(t, final.History, 9)
	for _, rec := range final.History {
		assert.Equal(t, engine.ExecCompleted, rec.Status, "stage %s", rec.Agent)
		assert.Equal(t, engine.MethodTemplate, rec.Method, "stage %s", rec.Agent)
		assert.NotEmpty(t, rec.Error, "stage %s", rec.Agent)
		assert.NotEmpty(t, rec.Log, "stage %s", rec.Agent)
	}

	// Domain template seeded the model.
	names := make([]string, 0, len(final.Entities))
	for _, ent := range final.Entities {
		names = append(names, ent.Name)
	}
	assert.ElementsMatch(t, []string{"Product", "Customer", "Order", "OrderItem"}, names)
	assert.Equal(t, "Product", final.MainEntity)

	// The schema declares every seeded entity.
	schema, ok := final.Artifacts.Get(engine.CategoryDB, "db/schema.cds")
	require.True(t, ok)
	for _, name := range names {
		assert.Contains(t, schema.Content, "entity "+name)
	}
	assert.Contains(t, schema.Content, final.ProjectNamespace)

	// One sample CSV per entity plus schema and index.
	assert.Len(t, final.Artifacts.ByCategory(engine.CategoryDB), 7)

	// Core files of every other category.
	for _, want := range []struct {
		cat  engine.Category
		path string
	}{
		{engine.CategorySrv, "srv/service.cds"},
		{engine.CategorySrv, "srv/service.js"},
		{engine.CategorySrv, "srv/lib/hooks.js"},
		{engine.CategoryApp, "app/online_shop/webapp/manifest.json"},
		{engine.CategoryDeployment, "xs-security.json"},
		{engine.CategoryDeployment, "srv/auth.cds"},
		{engine.CategoryDeployment, "test/data/mock-users.csv"},
		{engine.CategoryDeployment, "Dockerfile"},
		{engine.CategoryDeployment, ".github/workflows/deploy.yml"},
		{engine.CategoryDocs, "docs/REQUIREMENTS.md"},
		{engine.CategoryDocs, "docs/EXTENSION_GUIDE.md"},
		{engine.CategoryDocs, "docs/COMPLIANCE_REPORT.md"},
	} {
		_, ok := final.Artifacts.Get(want.cat, want.path)
		assert.True(t, ok, "missing %s in %s", want.path, want.cat)
	}
}

func TestCustomDomainWithoutEntitiesFailsAtDataModeling(t *testing.T) {
	st := engine.NewState("sess-1", "Mystery App")
	st.Domain = engine.DomainCustom

	e := newEngine(t, st, llm.NewFailing("openai"))
	err := e.Generate(context.Background())
	require.Error(t, err)

	var fatal *engine.FatalStageError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, engine.StageDataModeling, fatal.Stage)

	final := e.State()
	assert.Equal(t, engine.RunFailed, final.Status)
	// requirements still delivered its summary document
	_, ok := final.Artifacts.Get(engine.CategoryDocs, "docs/REQUIREMENTS.md")
	assert.True(t, ok)
}

func TestRequirementsExtractsEntitiesFromLLM(t *testing.T) {
	resp := "```json\n" + `{
		"entities": [
			{"name": "Ticket", "fields": [
				{"name": "ID", "type": "UUID", "key": true},
				{"name": "subject", "type": "String", "length": 100}
			]}
		],
		"relationships": [],
		"business_rules": []
	}` + "\n```"

	st := engine.NewState("sess-1", "Helpdesk")
	st.Domain = engine.DomainCustom

	agent := &Requirements{base: base{llm: &llm.Static{Provider: "openai", Responses: []string{resp}}, log: zap.NewNop()}}
	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Nil(t, out.Fallback)
	require.Len(t, out.Delta.Entities, 1)
	assert.Equal(t, "Ticket", out.Delta.Entities[0].Name)
	assert.Equal(t, "Ticket", out.Delta.MainEntity)
}

func TestRequirementsInjectsMissingKey(t *testing.T) {
	resp := `{"entities": [{"name": "Note", "fields": [{"name": "text", "type": "String"}]}]}`

	st := engine.NewState("sess-1", "Notes")
	agent := &Requirements{base: base{llm: &llm.Static{Provider: "openai", Responses: []string{resp}}, log: zap.NewNop()}}

	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, out.Delta.Entities, 1)
	fields := out.Delta.Entities[0].Fields
	require.NotEmpty(t, fields)
	assert.Equal(t, "ID", fields[0].Name)
	assert.True(t, fields[0].Key)
}

func TestRequirementsFallsBackOnInvalidLLMModel(t *testing.T) {
	resp := `{
		"entities": [{"name": "Order", "fields": [{"name": "ID", "type": "UUID", "key": true}]}],
		"relationships": [{"source_entity": "Order", "target_entity": "Ghost", "type": "association", "cardinality": "n:1"}]
	}`

	st := engine.NewState("sess-1", "Shop")
	st.Domain = engine.DomainEcommerce
	agent := &Requirements{base: base{llm: &llm.Static{Provider: "openai", Responses: []string{resp}}, log: zap.NewNop()}}

	// A model that parses but references an undefined entity is rejected
	// like any other bad output: the domain template takes over.
	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, out.Fallback)
	assert.ErrorIs(t, out.Fallback, engine.ErrBadOutput)

	names := make([]string, 0, len(out.Delta.Entities))
	for _, ent := range out.Delta.Entities {
		names = append(names, ent.Name)
	}
	assert.ElementsMatch(t, []string{"Product", "Customer", "Order", "OrderItem"}, names)
	for _, rel := range out.Delta.Relationships {
		assert.NotEqual(t, "Ghost", rel.Target)
	}
}

func TestRequirementsRejectsInvalidWizardModel(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Entities = []engine.EntityDefinition{{
		Name:   "Order",
		Fields: []engine.FieldDefinition{{Name: "ID", Type: engine.TypeUUID, Key: true}},
	}}
	st.Relationships = []engine.RelationshipDefinition{
		{Source: "Order", Target: "Ghost", Type: "association", Cardinality: "n:1"},
	}

	agent := &Requirements{base: base{llm: llm.NewFailing("openai"), log: zap.NewNop()}}
	_, err := agent.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestDataModelingAcceptsValidLLMSchema(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Entities = []engine.EntityDefinition{{
		Name:   "Order",
		Fields: []engine.FieldDefinition{{Name: "ID", Type: engine.TypeUUID, Key: true}},
	}}

	resp := `{
		"schema_cds": "namespace com.company.shop;\n\nentity Order { key ID : UUID; }",
		"sample_data": [
			{"filename": "db/data/com.company.shop-Order.csv", "content": "ID\n1"},
			{"filename": "../escape.csv", "content": "ignored"}
		]
	}`
	agent := &DataModeling{base: base{llm: &llm.Static{Provider: "openai", Responses: []string{resp}}, log: zap.NewNop()}}

	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Nil(t, out.Fallback)

	paths := make([]string, 0, len(out.Artifacts))
	for _, a := range out.Artifacts {
		paths = append(paths, a.Path)
	}
	assert.Contains(t, paths, "db/schema.cds")
	assert.Contains(t, paths, "db/data/com.company.shop-Order.csv")
	assert.Contains(t, paths, "db/index.cds")
	assert.NotContains(t, paths, "../escape.csv")
}

func TestDataModelingRejectsSchemaMissingEntities(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Entities = []engine.EntityDefinition{
		{Name: "Order", Fields: []engine.FieldDefinition{{Name: "ID", Type: engine.TypeUUID, Key: true}}},
		{Name: "Customer", Fields: []engine.FieldDefinition{{Name: "ID", Type: engine.TypeUUID, Key: true}}},
	}

	resp := `{"schema_cds": "namespace x;\nentity Order {}"}`
	agent := &DataModeling{base: base{llm: &llm.Static{Provider: "openai", Responses: []string{resp}}, log: zap.NewNop()}}

	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)
	// Rejected output falls back to templates, which cover every entity.
	require.NotNil(t, out.Fallback)
	schema := ""
	for _, a := range out.Artifacts {
		if a.Path == "db/schema.cds" {
			schema = a.Content
		}
	}
	assert.Contains(t, schema, "entity Customer")
}

func TestServiceExposureRequiresSchema(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Entities = []engine.EntityDefinition{{
		Name:   "Order",
		Fields: []engine.FieldDefinition{{Name: "ID", Type: engine.TypeUUID, Key: true}},
	}}

	agent := &ServiceExposure{base: base{llm: llm.NewFailing("openai"), log: zap.NewNop()}}
	_, err := agent.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db/schema.cds")
}

func TestFioriUIFailsOnUndefinedMainEntity(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Entities = []engine.EntityDefinition{{
		Name:   "Order",
		Fields: []engine.FieldDefinition{{Name: "ID", Type: engine.TypeUUID, Key: true}},
	}}
	st.MainEntity = "Ghost"

	agent := &FioriUI{base: base{llm: llm.NewFailing("openai"), log: zap.NewNop()}}
	_, err := agent.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghost")
}

func TestDeploymentTargetSelectsDescriptors(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Target = engine.DeployCF

	agent := &Deployment{base: base{llm: llm.NewFailing("openai"), log: zap.NewNop()}}
	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, "mta.yaml", out.Artifacts[0].Path)
	assert.Contains(t, out.Artifacts[0].Content, "_schema-version")
}

func TestValidationPatchKeepsOwningBucket(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")
	st.Artifacts.Put(engine.Artifact{
		Path: "srv/auth.cds", Content: "original", FileType: "cds", Category: engine.CategoryDeployment,
	})

	resp := `{
		"report_md": "# Review\nAll good.",
		"patches": [
			{"path": "srv/auth.cds", "content": "patched"},
			{"path": "srv/new-helper.cds", "content": "fresh"}
		]
	}`
	agent := &Validation{base: base{llm: &llm.Static{Provider: "openai", Responses: []string{resp}}, log: zap.NewNop()}}

	out, err := agent.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Nil(t, out.Fallback)

	// A patch to an existing file lands in the bucket that owns it; a patch
	// to a new path is bucketed by prefix.
	for _, a := range out.Artifacts {
		switch a.Path {
		case "srv/auth.cds":
			assert.Equal(t, engine.CategoryDeployment, a.Category)
		case "srv/new-helper.cds":
			assert.Equal(t, engine.CategorySrv, a.Category)
		}
		st.Artifacts.Put(a)
	}

	// Applying the patch replaced the original instead of duplicating it.
	_, inSrv := st.Artifacts.Get(engine.CategorySrv, "srv/auth.cds")
	assert.False(t, inSrv)
	got, ok := st.Artifacts.Get(engine.CategoryDeployment, "srv/auth.cds")
	require.True(t, ok)
	assert.Equal(t, "patched", got.Content)
}

func TestValidationRequiresArtifacts(t *testing.T) {
	st := engine.NewState("sess-1", "Shop")

	agent := &Validation{base: base{llm: llm.NewFailing("openai"), log: zap.NewNop()}}
	_, err := agent.Run(context.Background(), st)
	require.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain object", raw: `{"name": "x"}`, want: "x"},
		{name: "json fence", raw: "```json\n{\"name\": \"x\"}\n```", want: "x"},
		{name: "bare fence", raw: "```\n{\"name\": \"x\"}\n```", want: "x"},
		{name: "prose around object", raw: `Here you go: {"name": "x"} hope that helps`, want: "x"},
		{name: "no json at all", raw: "sorry, I cannot do that", wantErr: true},
		{name: "broken json", raw: `{"name": `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := parseJSON(tt.raw, &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestCategoryForPath(t *testing.T) {
	assert.Equal(t, engine.CategoryDB, categoryForPath("db/schema.cds"))
	assert.Equal(t, engine.CategorySrv, categoryForPath("srv/service.js"))
	assert.Equal(t, engine.CategoryApp, categoryForPath("app/shop/webapp/manifest.json"))
	assert.Equal(t, engine.CategoryDocs, categoryForPath("docs/README.md"))
	assert.Equal(t, engine.CategoryDeployment, categoryForPath("mta.yaml"))
}

func TestFileTypeOf(t *testing.T) {
	assert.Equal(t, "cds", fileTypeOf("db/schema.cds"))
	assert.Equal(t, "yaml", fileTypeOf("deploy.yml"))
	assert.Equal(t, "yaml", fileTypeOf("mta.yaml"))
	assert.Equal(t, "text", fileTypeOf("Dockerfile"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 100)
	assert.Len(t, truncate(long, 80), 83)
}
