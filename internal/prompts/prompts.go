// Package prompts holds the fixed per-agent system prompts and the builders
// that assemble each agent's user context from its slice of pipeline state.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
)

// Requirements analyzes project intent into structured entity definitions.
const Requirements = `You are an expert SAP CAP (Cloud Application Programming Model) architect.
Analyze business requirements and convert them into structured specifications.

STRICT RULES:
1. Only use official SAP CAP patterns and CDS syntax
2. PascalCase for entities, camelCase for fields
3. Every entity needs a key field, preferably a UUID primary key
4. Use CDS types only: String, LargeString, Integer, Decimal, Boolean, Date, DateTime, UUID, Binary

Respond ONLY with valid JSON of the shape:
{"entities": [...], "relationships": [...], "business_rules": [...]}`

// DataModeling turns entity definitions into a CDS schema plus sample data.
const DataModeling = `You are an SAP CAP data modeling expert.
Generate a production-quality CDS schema for the given entities and relationships.

Respond ONLY with valid JSON of the shape:
{"schema_cds": "...", "sample_data": [{"filename": "db/data/<ns>-<Entity>.csv", "content": "..."}]}

The schema must declare the project namespace and one entity per input entity.`

// ServiceExposure projects entities into an OData service definition.
const ServiceExposure = `You are an SAP CAP service design expert.
Generate the srv/ layer exposing every entity as an OData projection with
draft support where appropriate.

Respond ONLY with valid JSON of the shape:
{"service_cds": "...", "annotations_cds": "..."}`

// BusinessLogic writes service handlers for the declared business rules.
const BusinessLogic = `You are an SAP CAP Node.js developer.
Implement service handlers for the given business rules using the standard
cds.service.impl style. Validation rules become before-handlers, calculation
rules become on/after-handlers.

Respond ONLY with valid JSON of the shape:
{"service_js": "...", "utils_js": "..."}`

// FioriUI produces a Fiori Elements app manifest.
const FioriUI = `You are an SAP Fiori Elements expert.
Generate a List Report application manifest for the main entity.

Respond ONLY with valid JSON of the shape:
{"manifest": {...}, "index_html": "...", "i18n": "..."}`

// Security derives roles and scopes from the business rules and auth type.
const Security = `You are an SAP BTP security expert.
Generate the xs-security.json descriptor and CDS authorization annotations
for the given entities, roles, and auth configuration.

Respond ONLY with valid JSON of the shape:
{"xs_security": {...}, "auth_cds": "..."}`

// Extension adds stable extension points to the generated model.
const Extension = `You are an SAP CAP extensibility expert.
Generate extension hooks: an extensions CDS aspect file and a hooks module
that projects can customize without touching generated files.

Respond ONLY with valid JSON of the shape:
{"extensions_cds": "...", "hooks_js": "...", "guide_md": "..."}`

// Deployment emits the deployment descriptors for the chosen target.
const Deployment = `You are an SAP BTP deployment expert.
Generate deployment descriptors (mta.yaml for Cloud Foundry, Dockerfile and
docker-compose for local) for the project.

Respond ONLY with valid JSON of the shape:
{"mta_yaml": "...", "dockerfile": "...", "workflow_yml": "..."}`

// Validation reviews the full artifact set and writes a compliance report.
const Validation = `You are an SAP CAP quality reviewer.
Review the generated project files and produce a compliance report in
Markdown: per-category findings, severity, and concrete fix suggestions.

Respond ONLY with valid JSON of the shape:
{"report_md": "...", "patches": [{"path": "...", "content": "..."}]}`

// ProjectContext renders the project metadata slice shared by most builders.
func ProjectContext(st *engine.PipelineState) string {
	return fmt.Sprintf("Project: %s\nNamespace: %s\nDomain: %s\nDescription: %s",
		st.ProjectName, st.ProjectNamespace, st.Domain, orNone(st.ProjectDescription))
}

// EntitiesContext renders entities, relationships, and rules as JSON blocks.
func EntitiesContext(st *engine.PipelineState) string {
	var b strings.Builder
	b.WriteString(ProjectContext(st))
	b.WriteString("\n\nEntities:\n")
	b.WriteString(asJSON(st.Entities))
	if len(st.Relationships) > 0 {
		b.WriteString("\n\nRelationships:\n")
		b.WriteString(asJSON(st.Relationships))
	}
	if len(st.BusinessRules) > 0 {
		b.WriteString("\n\nBusiness rules:\n")
		b.WriteString(asJSON(st.BusinessRules))
	}
	return b.String()
}

// UIContext renders the slice the UI generator reads: entities and theme,
// nothing else.
func UIContext(st *engine.PipelineState) string {
	return fmt.Sprintf("%s\n\nMain entity: %s\nTheme: %s\n\nEntities:\n%s",
		ProjectContext(st), orNone(st.MainEntity), orNone(st.Theme), asJSON(st.Entities))
}

// SecurityContext renders auth type plus the authorization-relevant rules.
func SecurityContext(st *engine.PipelineState) string {
	var authRules []engine.BusinessRule
	for _, r := range st.BusinessRules {
		if r.RuleType == "authorization" {
			authRules = append(authRules, r)
		}
	}
	return fmt.Sprintf("%s\n\nAuth type: %s\n\nEntities:\n%s\n\nAuthorization rules:\n%s",
		ProjectContext(st), st.Auth, asJSON(st.Entities), asJSON(authRules))
}

// DeploymentContext renders target and CI configuration.
func DeploymentContext(st *engine.PipelineState) string {
	return fmt.Sprintf("%s\n\nTarget: %s\nCI enabled: %t", ProjectContext(st), st.Target, st.CIEnabled)
}

// ArtifactIndex lists every generated path per category, for the validation
// agent's review context.
func ArtifactIndex(st *engine.PipelineState) string {
	var b strings.Builder
	b.WriteString(ProjectContext(st))
	for _, cat := range engine.Categories {
		bucket := st.Artifacts.ByCategory(cat)
		if len(bucket) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n\n[%s]\n", cat)
		for _, a := range bucket {
			fmt.Fprintf(&b, "- %s (%d bytes)\n", a.Path, len(a.Content))
		}
	}
	return b.String()
}

func asJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
