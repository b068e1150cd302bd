package render

import (
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
)

// ExtensionsCDS renders db/extensions.cds: one empty extend block per entity
// so customer fields live outside the generated schema.
func ExtensionsCDS(st *engine.PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "using { %s as db } from './schema';\n", st.ProjectNamespace)
	b.WriteString("\n// Customer extension fields. Add fields here, never in schema.cds:\n// regeneration preserves this file's concerns via separate extend blocks.\n")
	for _, e := range st.Entities {
		fmt.Fprintf(&b, "\nextend db.%s with {\n  // customer fields for %s\n};\n", e.Name, e.Name)
	}
	return b.String()
}

// HooksJS renders srv/lib/hooks.js, the registration point for custom
// handler logic that survives regeneration.
func HooksJS(st *engine.PipelineState) string {
	var b strings.Builder
	b.WriteString("// Custom handler hooks. Register handlers here; service.js calls\n")
	b.WriteString("// registerHooks(service) after its own registrations.\n\n")
	b.WriteString("function registerHooks(service) {\n")
	for _, e := range st.Entities {
		fmt.Fprintf(&b, "  // service.after('READ', '%s', (rows) => { ... });\n", e.Name)
	}
	b.WriteString("}\n\nmodule.exports = { registerHooks };\n")
	return b.String()
}

// ExtensionGuide renders docs/EXTENSION_GUIDE.md.
func ExtensionGuide(st *engine.PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Extending %s\n\n", st.ProjectName)
	b.WriteString("Generated files are overwritten on regeneration. Put customizations in:\n\n")
	b.WriteString("- `db/extensions.cds` — additional entity fields\n")
	b.WriteString("- `srv/lib/hooks.js` — additional service handlers\n\n")
	b.WriteString("## Extendable entities\n\n")
	for _, e := range st.Entities {
		fmt.Fprintf(&b, "- **%s**", e.Name)
		if e.Description != "" {
			fmt.Fprintf(&b, " — %s", e.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
