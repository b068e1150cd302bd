package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// FioriUI generates the List Report application under app/. It reads entities
// and the theme, resolves the main entity, and records that resolution in its
// delta so later stages and the UI agree.
type FioriUI struct {
	base
}

func (a *FioriUI) Name() engine.Stage { return engine.StageFioriUI }

type uiModel struct {
	Manifest  json.RawMessage `json:"manifest"`
	IndexHTML string          `json:"index_html"`
	I18n      string          `json:"i18n"`
}

func (a *FioriUI) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	main, err := render.MainEntity(st)
	if err != nil {
		return nil, err
	}

	p := &progress{}
	p.logf("building List Report around main entity %s", main)
	appDir := "app/" + render.AppID(st)

	artifacts, cause := a.complete(ctx, a.Name(), prompts.FioriUI, prompts.UIContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model uiModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			if len(model.Manifest) == 0 {
				return nil, fmt.Errorf("manifest missing")
			}
			var manifest map[string]interface{}
			if err := json.Unmarshal(model.Manifest, &manifest); err != nil {
				return nil, fmt.Errorf("manifest is not a JSON object: %w", err)
			}
			if _, ok := manifest["sap.app"]; !ok {
				return nil, fmt.Errorf("manifest lacks sap.app section")
			}
			pretty, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return nil, err
			}
			out := []engine.Artifact{
				artifact(engine.CategoryApp, appDir+"/webapp/manifest.json", string(pretty)+"\n"),
			}
			if model.IndexHTML != "" {
				out = append(out, artifact(engine.CategoryApp, appDir+"/webapp/index.html", model.IndexHTML))
			}
			if model.I18n != "" {
				out = append(out, artifact(engine.CategoryApp, appDir+"/webapp/i18n/i18n.properties", model.I18n))
			}
			return out, nil
		})

	if cause != nil {
		p.logf("generating manifest.json via template")
		manifest, err := render.Manifest(st)
		if err != nil {
			return nil, fmt.Errorf("template manifest generation failed: %w", err)
		}
		artifacts = []engine.Artifact{
			artifact(engine.CategoryApp, appDir+"/webapp/manifest.json", manifest),
			artifact(engine.CategoryApp, appDir+"/webapp/index.html", render.IndexHTML(st)),
			artifact(engine.CategoryApp, appDir+"/webapp/i18n/i18n.properties", render.I18n(st)),
		}
	}

	p.logf("ui generation produced %d files", len(artifacts))
	out := &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}
	if st.MainEntity == "" {
		out.Delta.MainEntity = main
	}
	return out, nil
}
