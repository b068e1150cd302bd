package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// Deployment emits the descriptors for the session's target: mta.yaml for
// Cloud Foundry, Dockerfile plus compose for local, and the CI workflow when
// enabled.
type Deployment struct {
	base
}

func (a *Deployment) Name() engine.Stage { return engine.StageDeployment }

type deploymentModel struct {
	MTAYaml     string `json:"mta_yaml"`
	Dockerfile  string `json:"dockerfile"`
	WorkflowYml string `json:"workflow_yml"`
}

func (a *Deployment) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	p := &progress{}
	p.logf("generating deployment descriptors for target %s", st.Target)

	artifacts, cause := a.complete(ctx, a.Name(), prompts.Deployment, prompts.DeploymentContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model deploymentModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			var out []engine.Artifact
			switch st.Target {
			case engine.DeployCF:
				if model.MTAYaml == "" || !strings.Contains(model.MTAYaml, "_schema-version") {
					return nil, fmt.Errorf("mta_yaml missing or not an MTA descriptor")
				}
				out = append(out, artifact(engine.CategoryDeployment, "mta.yaml", model.MTAYaml))
			default:
				if model.Dockerfile == "" || !strings.Contains(model.Dockerfile, "FROM") {
					return nil, fmt.Errorf("dockerfile missing or has no base image")
				}
				out = append(out, artifact(engine.CategoryDeployment, "Dockerfile", model.Dockerfile))
			}
			if st.CIEnabled && model.WorkflowYml != "" {
				out = append(out, artifact(engine.CategoryDeployment, ".github/workflows/deploy.yml", model.WorkflowYml))
			}
			return out, nil
		})

	if cause != nil {
		p.logf("generating descriptors via template")
		switch st.Target {
		case engine.DeployCF:
			mta, err := render.MTA(st)
			if err != nil {
				return nil, fmt.Errorf("template mta generation failed: %w", err)
			}
			artifacts = []engine.Artifact{artifact(engine.CategoryDeployment, "mta.yaml", mta)}
		default:
			artifacts = []engine.Artifact{
				artifact(engine.CategoryDeployment, "Dockerfile", render.Dockerfile(st)),
				artifact(engine.CategoryDeployment, "docker-compose.yml", render.DockerCompose(st)),
			}
		}
		if st.CIEnabled {
			artifacts = append(artifacts,
				artifact(engine.CategoryDeployment, ".github/workflows/deploy.yml", render.Workflow(st)))
		}
	}

	p.logf("deployment produced %d files", len(artifacts))
	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}
