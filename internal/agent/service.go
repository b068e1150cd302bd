package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// ServiceExposure generates the srv/ definitions: the OData service file and
// its UI annotations. It requires the schema from data modeling to already be
// in the artifact set.
type ServiceExposure struct {
	base
}

func (a *ServiceExposure) Name() engine.Stage { return engine.StageServiceExposure }

type serviceModel struct {
	ServiceCDS     string `json:"service_cds"`
	AnnotationsCDS string `json:"annotations_cds"`
}

func (a *ServiceExposure) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	if _, ok := st.Artifacts.Get(engine.CategoryDB, "db/schema.cds"); !ok {
		return nil, fmt.Errorf("db/schema.cds not present: data modeling must run first")
	}

	p := &progress{}
	p.logf("exposing %d entities as OData projections", len(st.Entities))

	artifacts, cause := a.complete(ctx, a.Name(), prompts.ServiceExposure, prompts.EntitiesContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model serviceModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			if model.ServiceCDS == "" || !strings.Contains(model.ServiceCDS, "service ") {
				return nil, fmt.Errorf("service_cds missing or not a service definition")
			}
			for _, e := range st.Entities {
				if !strings.Contains(model.ServiceCDS, e.Name) {
					return nil, fmt.Errorf("service does not project entity %s", e.Name)
				}
			}
			out := []engine.Artifact{artifact(engine.CategorySrv, "srv/service.cds", model.ServiceCDS)}
			if model.AnnotationsCDS != "" {
				out = append(out, artifact(engine.CategorySrv, "srv/annotations.cds", model.AnnotationsCDS))
			}
			return out, nil
		})

	if cause != nil {
		p.logf("generating srv/service.cds via template")
		service, err := render.ServiceCDS(st)
		if err != nil {
			return nil, fmt.Errorf("template service generation failed: %w", err)
		}
		artifacts = []engine.Artifact{
			artifact(engine.CategorySrv, "srv/service.cds", service),
			artifact(engine.CategorySrv, "srv/annotations.cds", render.AnnotationsCDS(st)),
		}
	}

	artifacts = append(artifacts, artifact(engine.CategorySrv, "srv/index.cds", render.SrvIndexCDS()))
	p.logf("service exposure produced %d files", len(artifacts))

	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}
