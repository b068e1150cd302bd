package agent

import (
	"context"
	"fmt"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/prompts"
	"github.com/yalochat/capforge/internal/render"
)

// Validation closes the pipeline: it reviews the accumulated artifact set and
// writes the compliance report. LLM review may also attach small corrective
// patches; the fallback review is a deterministic structural check.
type Validation struct {
	base
}

func (a *Validation) Name() engine.Stage { return engine.StageValidation }

type validationModel struct {
	ReportMD string `json:"report_md"`
	Patches  []struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"patches"`
}

func (a *Validation) Run(ctx context.Context, st *engine.PipelineState) (*engine.StageOutput, error) {
	if st.Artifacts.Len() == 0 {
		return nil, fmt.Errorf("no artifacts to review")
	}

	p := &progress{}
	p.logf("reviewing %d generated files", st.Artifacts.Len())

	artifacts, cause := a.complete(ctx, a.Name(), prompts.Validation, prompts.ArtifactIndex(st), p,
		func(raw string) ([]engine.Artifact, error) {
			var model validationModel
			if err := parseJSON(raw, &model); err != nil {
				return nil, err
			}
			if model.ReportMD == "" {
				return nil, fmt.Errorf("report_md missing")
			}
			out := []engine.Artifact{artifact(engine.CategoryDocs, "docs/COMPLIANCE_REPORT.md", model.ReportMD)}
			for _, patch := range model.Patches {
				if patch.Path == "" || patch.Content == "" {
					continue
				}
				// A patch to an existing file must land in the bucket that
				// owns it, not the one its path prefix suggests.
				cat := categoryForPath(patch.Path)
				if existing, ok := st.Artifacts.Find(patch.Path); ok {
					cat = existing.Category
				}
				out = append(out, artifact(cat, patch.Path, patch.Content))
			}
			return out, nil
		})

	if cause != nil {
		findings := render.ReviewArtifacts(st)
		p.logf("structural review found %d issues", len(findings))
		artifacts = []engine.Artifact{
			artifact(engine.CategoryDocs, "docs/COMPLIANCE_REPORT.md", render.ComplianceReport(st, findings)),
		}
	}

	p.logf("validation produced %d files", len(artifacts))
	return &engine.StageOutput{Artifacts: artifacts, Fallback: cause, Log: p.lines}, nil
}
