package agent

import (
	"context"
	"fmt"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// Requirements normalizes the wizard's configuration into a validated data
// model. When the session carries no entities it extracts them from the
// project description via LLM, or seeds them from the domain template on
// fallback. It reads project metadata and domain only, and always emits the
// requirements summary document.
type Requirements struct {
	base
}

func (a *Requirements) Name() engine.Stage { return engine.StageRequirements }

// reqModel is the JSON shape the requirements prompt asks for.
type reqModel struct {
	Entities      []engine.EntityDefinition       `json:"entities"`
	Relationships []engine.RelationshipDefinition `json:"relationships"`
	BusinessRules []engine.BusinessRule           `json:"business_rules"`
}

func (a *Requirements) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	p := &progress{}
	out := &engine.StageOutput{}

	resolved := *st
	if len(st.Entities) == 0 {
		model, cause := a.extract(ctx, st, p)
		out.Fallback = cause
		if cause != nil {
			tmpl, ok := domainTemplates[st.Domain]
			if !ok {
				p.logf("domain %s has no template, leaving entity model empty", st.Domain)
			} else {
				p.logf("seeding %d entities from %s domain template", len(tmpl.Entities), st.Domain)
				model = reqModel{
					Entities:      tmpl.Entities,
					Relationships: tmpl.Relationships,
					BusinessRules: tmpl.BusinessRules,
				}
			}
		}
		if len(model.Entities) > 0 {
			normalizeEntities(model.Entities)
			out.Delta.Entities = model.Entities
			out.Delta.Relationships = model.Relationships
			out.Delta.BusinessRules = model.BusinessRules
			resolved.Entities = model.Entities
			resolved.Relationships = model.Relationships
			resolved.BusinessRules = model.BusinessRules
		}
	} else {
		p.logf("using %d wizard-configured entities", len(st.Entities))
	}

	if resolved.ProjectNamespace == "" {
		out.Delta.Namespace = engine.DefaultNamespace(resolved.ProjectName)
		resolved.ProjectNamespace = out.Delta.Namespace
	}
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("requirements produced an invalid model: %w", err)
	}
	if resolved.MainEntity == "" && len(resolved.Entities) > 0 {
		out.Delta.MainEntity = resolved.Entities[0].Name
	}

	out.Artifacts = []engine.Artifact{
		artifact(engine.CategoryDocs, "docs/REQUIREMENTS.md", render.RequirementsDoc(&resolved)),
	}
	out.Log = p.lines
	return out, nil
}

// extract asks the LLM to derive a data model from the project description.
// Any failure is recoverable and reported as the fallback cause.
func (a *Requirements) extract(ctx context.Context, st *engine.PipelineState, p *progress) (reqModel, error) {
	var model reqModel
	if a.llm == nil {
		p.logf("no llm client configured, using domain template")
		return model, fmt.Errorf("no llm client configured")
	}
	p.logf("calling %s to extract entities from project description", a.llm.Name())
	raw, err := a.llm.Generate(ctx, prompts.Requirements, prompts.ProjectContext(st))
	if err != nil {
		p.logf("llm call failed (%s), falling back to domain template", truncate(err.Error(), 80))
		return model, err
	}
	if err := parseJSON(raw, &model); err != nil {
		p.logf("llm output rejected (%s), falling back to domain template", truncate(err.Error(), 80))
		return model, fmt.Errorf("%w: %v", engine.ErrBadOutput, err)
	}
	if len(model.Entities) == 0 {
		p.logf("llm extracted no entities, falling back to domain template")
		return model, fmt.Errorf("%w: no entities extracted", engine.ErrBadOutput)
	}
	normalizeEntities(model.Entities)
	candidate := *st
	candidate.Entities = model.Entities
	candidate.Relationships = model.Relationships
	candidate.BusinessRules = model.BusinessRules
	if err := candidate.Validate(); err != nil {
		p.logf("llm model rejected (%s), falling back to domain template", truncate(err.Error(), 80))
		return reqModel{}, fmt.Errorf("%w: %v", engine.ErrBadOutput, err)
	}
	p.logf("llm extracted %d entities", len(model.Entities))
	return model, nil
}

// normalizeEntities repairs models that lack a key field by injecting the
// conventional UUID primary key.
func normalizeEntities(entities []engine.EntityDefinition) {
	for i := range entities {
		if entities[i].HasKey() {
			continue
		}
		entities[i].Fields = append([]engine.FieldDefinition{
			{Name: "ID", Type: engine.TypeUUID, Key: true},
		}, entities[i].Fields...)
	}
}
