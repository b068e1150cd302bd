package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// Extension adds the customization seam after the fan-out group: extend
// blocks for customer fields, a hooks module for custom handlers, and the
// guide explaining both.
type Extension struct {
	base
}

func (a *Extension) Name() engine.Stage { return engine.StageExtension }

type extensionModel struct {
	ExtensionsCDS string `json:"extensions_cds"`
	HooksJS       string `json:"hooks_js"`
	GuideMD       string `json:"guide_md"`
}

func (a *Extension) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	p := &progress{}
	p.logf("adding extension points for %d entities", len(st.Entities))

	artifacts, cause := a.complete(ctx, a.Name(), prompts.Extension, prompts.EntitiesContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model extensionModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			if model.ExtensionsCDS == "" || !strings.Contains(model.ExtensionsCDS, "extend") {
				return nil, fmt.Errorf("extensions_cds missing or has no extend blocks")
			}
			if model.HooksJS == "" {
				return nil, fmt.Errorf("hooks_js missing")
			}
			out := []engine.Artifact{
				artifact(engine.CategoryDB, "db/extensions.cds", model.ExtensionsCDS),
				artifact(engine.CategorySrv, "srv/lib/hooks.js", model.HooksJS),
			}
			if model.GuideMD != "" {
				out = append(out, artifact(engine.CategoryDocs, "docs/EXTENSION_GUIDE.md", model.GuideMD))
			}
			return out, nil
		})

	if cause != nil {
		p.logf("generating extension points via template")
		artifacts = []engine.Artifact{
			artifact(engine.CategoryDB, "db/extensions.cds", render.ExtensionsCDS(st)),
			artifact(engine.CategorySrv, "srv/lib/hooks.js", render.HooksJS(st)),
			artifact(engine.CategoryDocs, "docs/EXTENSION_GUIDE.md", render.ExtensionGuide(st)),
		}
	}

	p.logf("extension produced %d files", len(artifacts))
	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}
