package render

import (
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
)

// ServiceName derives the OData service name from the project name.
func ServiceName(st *engine.PipelineState) string {
	parts := strings.Split(engine.Identifier(st.ProjectName), "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	if b.Len() == 0 {
		return "AppService"
	}
	return b.String() + "Service"
}

// ServiceCDS renders srv/service.cds: one draft-enabled projection per
// entity. Fails without entities.
func ServiceCDS(st *engine.PipelineState) (string, error) {
	if len(st.Entities) == 0 {
		return "", fmt.Errorf("no entities to expose")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "using { %s as db } from '../db/schema';\n\n", st.ProjectNamespace)
	fmt.Fprintf(&b, "service %s @(path: '/%s') {\n", ServiceName(st), engine.Identifier(st.ProjectName))
	for _, e := range st.Entities {
		fmt.Fprintf(&b, "  @odata.draft.enabled\n  entity %s as projection on db.%s;\n", e.Name, e.Name)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// AnnotationsCDS renders srv/annotations.cds with list report annotations
// for every entity: the first few non-key fields become line items.
func AnnotationsCDS(st *engine.PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "using %s from './service';\n", ServiceName(st))
	for _, e := range st.Entities {
		fmt.Fprintf(&b, "\nannotate %s.%s with @(\n  UI.LineItem: [\n", ServiceName(st), e.Name)
		n := 0
		for _, f := range e.Fields {
			if f.Key || n >= 5 {
				continue
			}
			fmt.Fprintf(&b, "    { Value: %s },\n", f.Name)
			n++
		}
		b.WriteString("  ]\n);\n")
	}
	return b.String()
}

// SrvIndexCDS renders the srv/index.cds import file.
func SrvIndexCDS() string {
	return "// Service layer index\nusing from './service';\nusing from './annotations';\n"
}
