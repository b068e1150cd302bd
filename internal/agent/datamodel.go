package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// DataModeling generates the db/ layer: the CDS schema plus sample data. It
// reads entities, relationships, and business rules. An empty entity list is
// a fatal condition; requirements must run first.
type DataModeling struct {
	base
}

func (a *DataModeling) Name() engine.Stage { return engine.StageDataModeling }

// schemaModel is the JSON shape the data modeling prompt asks for.
type schemaModel struct {
	SchemaCDS  string `json:"schema_cds"`
	SampleData []struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	} `json:"sample_data"`
}

func (a *DataModeling) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	if len(st.Entities) == 0 {
		return nil, fmt.Errorf("no entities to model: requirements must supply at least one")
	}

	p := &progress{}
	p.logf("processing %d entities for CDS schema generation", len(st.Entities))

	artifacts, cause := a.complete(ctx, a.Name(), prompts.DataModeling, prompts.EntitiesContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model schemaModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			if err := checkSchema(model.SchemaCDS, st); err != nil {
				return nil, err
			}
			out := []engine.Artifact{artifact(engine.CategoryDB, "db/schema.cds", model.SchemaCDS)}
			for _, sd := range model.SampleData {
				if sd.Filename == "" || sd.Content == "" || !strings.HasPrefix(sd.Filename, "db/data/") {
					continue
				}
				out = append(out, artifact(engine.CategoryDB, sd.Filename, sd.Content))
			}
			return out, nil
		})

	if cause != nil {
		p.logf("generating db/schema.cds via template")
		schema, err := render.SchemaCDS(st)
		if err != nil {
			return nil, fmt.Errorf("template schema generation failed: %w", err)
		}
		artifacts = []engine.Artifact{artifact(engine.CategoryDB, "db/schema.cds", schema)}
		for _, e := range st.Entities {
			path := render.SampleCSVPath(st.ProjectNamespace, e.Name)
			artifacts = append(artifacts, artifact(engine.CategoryDB, path, render.SampleCSV(e)))
		}
	}

	// index.cds is trivial and always template-rendered.
	artifacts = append(artifacts, artifact(engine.CategoryDB, "db/index.cds", render.IndexCDS()))
	p.logf("data modeling produced %d files", len(artifacts))

	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}

// checkSchema sanity-checks an LLM-generated schema: it must declare a
// namespace and every entity of the input state, no more hallucinated ones
// at the top level than we can verify, no fewer than configured.
func checkSchema(schema string, st *engine.PipelineState) error {
	if schema == "" {
		return fmt.Errorf("schema_cds missing")
	}
	if !strings.Contains(schema, "namespace") {
		return fmt.Errorf("schema lacks a namespace declaration")
	}
	for _, e := range st.Entities {
		if !strings.Contains(schema, "entity "+e.Name) {
			return fmt.Errorf("schema does not declare entity %s", e.Name)
		}
	}
	return nil
}
