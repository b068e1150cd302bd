package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// Security generates the authorization surface: the xs-security descriptor,
// the CDS restrict annotations, and mock users when the session uses mock
// auth. All of its files live in the deployment bucket.
type Security struct {
	base
}

func (a *Security) Name() engine.Stage { return engine.StageSecurity }

type securityModel struct {
	XSSecurity json.RawMessage `json:"xs_security"`
	AuthCDS    string          `json:"auth_cds"`
}

func (a *Security) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	p := &progress{}
	p.logf("deriving roles for auth type %s", st.Auth)

	artifacts, cause := a.complete(ctx, a.Name(), prompts.Security, prompts.SecurityContext(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model securityModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			var desc map[string]interface{}
			if err := json.Unmarshal(model.XSSecurity, &desc); err != nil {
				return nil, fmt.Errorf("xs_security is not a JSON object: %w", err)
			}
			if _, ok := desc["xsappname"]; !ok {
				return nil, fmt.Errorf("xs_security lacks xsappname")
			}
			if model.AuthCDS == "" || !strings.Contains(model.AuthCDS, "annotate") {
				return nil, fmt.Errorf("auth_cds missing or has no annotations")
			}
			pretty, err := json.MarshalIndent(desc, "", "  ")
			if err != nil {
				return nil, err
			}
			return []engine.Artifact{
				artifact(engine.CategoryDeployment, "xs-security.json", string(pretty)+"\n"),
				artifact(engine.CategoryDeployment, "srv/auth.cds", model.AuthCDS),
			}, nil
		})

	if cause != nil {
		p.logf("generating xs-security.json via template")
		desc, err := render.XSSecurity(st)
		if err != nil {
			return nil, fmt.Errorf("template security generation failed: %w", err)
		}
		artifacts = []engine.Artifact{
			artifact(engine.CategoryDeployment, "xs-security.json", desc),
			artifact(engine.CategoryDeployment, "srv/auth.cds", render.AuthCDS(st)),
		}
	}

	if st.Auth == engine.AuthMock {
		p.logf("adding mock users for %d roles", len(render.Roles(st)))
		artifacts = append(artifacts,
			artifact(engine.CategoryDeployment, "test/data/mock-users.csv", render.MockUsersCSV(st)))
	}

	p.logf("security produced %d files", len(artifacts))
	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}
