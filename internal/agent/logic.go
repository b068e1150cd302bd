package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// BusinessLogic generates the Node.js service handlers implementing the
// configured business rules. It runs in the fan-out group and only writes to
// the srv bucket.
type BusinessLogic struct {
	base
}

func (a *BusinessLogic) Name() engine.Stage { return engine.StageBusinessLogic }

type logicModel struct {
	ServiceJS string `json:"service_js"`
	UtilsJS   string `json:"utils_js"`
}

func (a *BusinessLogic) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	p := &progress{}
	p.logf("implementing %d business rules", len(st.BusinessRules))

	artifacts, cause := a.complete(ctx, a.Name(), prompts.BusinessLogic, prompts.EntitiesContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model logicModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			if model.ServiceJS == "" || !strings.Contains(model.ServiceJS, "cds.service.impl") {
				return nil, fmt.Errorf("service_js missing or not a cds.service.impl module")
			}
			out := []engine.Artifact{artifact(engine.CategorySrv, "srv/service.js", model.ServiceJS)}
			if model.UtilsJS != "" {
				out = append(out, artifact(engine.CategorySrv, "srv/lib/utils.js", model.UtilsJS))
			}
			return out, nil
		})

	if cause != nil {
		p.logf("generating srv/service.js via template")
		artifacts = []engine.Artifact{
			artifact(engine.CategorySrv, "srv/service.js", render.ServiceJS(st)),
			artifact(engine.CategorySrv, "srv/lib/utils.js", render.UtilsJS()),
		}
	}

	p.logf("business logic produced %d files", len(artifacts))
	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}
