// Package agent implements the nine pipeline stages. Every agent follows the
// same contract: try LLM generation from its documented slice of state, fall
// back to the deterministic template renderers on any recoverable failure,
// and always hand the orchestrator a non-empty artifact set. Only a failing
// template renderer or missing upstream input escapes as a fatal error.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/llm"
)

// RegisterAll registers the full stage set with the engine.
func RegisterAll(e *engine.Engine, client llm.Client, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	b := base{llm: client, log: log}
	e.Register(&Requirements{base: b})
	e.Register(&DataModeling{base: b})
	e.Register(&ServiceExposure{base: b})
	e.Register(&BusinessLogic{base: b})
	e.Register(&FioriUI{base: b})
	e.Register(&Security{base: b})
	e.Register(&Extension{base: b})
	e.Register(&Deployment{base: b})
	e.Register(&Validation{base: b})
}

// base carries the collaborators every agent shares.
type base struct {
	llm llm.Client
	log *zap.Logger
}

// progress is the per-run log accumulator surfaced on the execution record.
type progress struct {
	lines []string
}

func (p *progress) logf(format string, args ...interface{}) {
	p.lines = append(p.lines, fmt.Sprintf(format, args...))
}

// complete runs the LLM-first path for one stage. It returns the parsed
// artifacts on success, or the recoverable cause when the caller should take
// the template path instead. Provider failures and output validation
// failures are treated identically.
func (b *base) complete(
	ctx context.Context,
	stage engine.Stage,
	systemPrompt, userContext string,
	p *progress,
	parse func(raw string) ([]engine.Artifact, error),
) ([]engine.Artifact, error) {
	if b.llm == nil {
		p.logf("no llm client configured, using template generation")
		return nil, errors.New("no llm client configured")
	}

	p.logf("calling %s for %s generation", b.llm.Name(), stage)
	raw, err := b.llm.Generate(ctx, systemPrompt, userContext)
	if err != nil {
		b.log.Warn("llm call failed, falling back to template",
			zap.String("stage", string(stage)), zap.Error(err))
		p.logf("llm call failed (%s), falling back to template generation", truncate(err.Error(), 80))
		return nil, err
	}

	artifacts, err := parse(raw)
	if err != nil {
		b.log.Warn("llm output rejected, falling back to template",
			zap.String("stage", string(stage)), zap.Error(err))
		p.logf("llm output rejected (%s), falling back to template generation", truncate(err.Error(), 80))
		return nil, fmt.Errorf("%w: %v", engine.ErrBadOutput, err)
	}
	if len(artifacts) == 0 {
		p.logf("llm output produced no artifacts, falling back to template generation")
		return nil, fmt.Errorf("%w: empty artifact set", engine.ErrBadOutput)
	}
	p.logf("llm-generated output accepted (%d files)", len(artifacts))
	return artifacts, nil
}

// parseJSON decodes an LLM response into v, stripping markdown code fences
// and salvaging the outermost JSON object when the response has prose
// around it.
func parseJSON(raw string, v interface{}) error {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// categoryForPath infers the bucket for a file not yet in the artifact set
// from its path prefix. Descriptor files at the repo root belong to
// deployment. Existing paths keep their owning bucket; see Validation.
func categoryForPath(path string) engine.Category {
	switch {
	case strings.HasPrefix(path, "db/"):
		return engine.CategoryDB
	case strings.HasPrefix(path, "srv/"):
		return engine.CategorySrv
	case strings.HasPrefix(path, "app/"):
		return engine.CategoryApp
	case strings.HasPrefix(path, "docs/"):
		return engine.CategoryDocs
	default:
		return engine.CategoryDeployment
	}
}

// fileTypeOf maps a path to its artifact file type.
func fileTypeOf(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 || i == len(path)-1 {
		return "text"
	}
	ext := path[i+1:]
	if ext == "yml" {
		return "yaml"
	}
	return ext
}

func artifact(cat engine.Category, path, content string) engine.Artifact {
	return engine.Artifact{Path: path, Content: content, FileType: fileTypeOf(path), Category: cat}
}
