package render

import (
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
)

// ServiceJS renders srv/service.js: one cds.service.impl module wiring the
// business rules into before/on handlers. Entities without rules still get a
// registration comment so the file is well-formed for any input.
func ServiceJS(st *engine.PipelineState) string {
	var b strings.Builder
	b.WriteString("const cds = require('@sap/cds');\n")
	b.WriteString("const { validateRequired, applyDefaults } = require('./lib/utils');\n\n")
	b.WriteString("module.exports = cds.service.impl(async function () {\n")

	byEntity := make(map[string][]engine.BusinessRule)
	for _, r := range st.BusinessRules {
		byEntity[r.Entity] = append(byEntity[r.Entity], r)
	}

	for _, e := range st.Entities {
		rules := byEntity[e.Name]
		if len(rules) == 0 {
			fmt.Fprintf(&b, "  // %s: no business rules configured\n", e.Name)
			continue
		}
		for _, r := range rules {
			switch r.RuleType {
			case "validation":
				fmt.Fprintf(&b, "  this.before(['CREATE', 'UPDATE'], '%s', (req) => {\n", e.Name)
				fmt.Fprintf(&b, "    // %s\n", ruleComment(r))
				if r.Condition != "" {
					fmt.Fprintf(&b, "    if (!(%s)) req.error(400, %q);\n", r.Condition, r.Name+" failed")
				} else {
					b.WriteString("    validateRequired(req.data);\n")
				}
				b.WriteString("  });\n")
			case "calculation":
				fmt.Fprintf(&b, "  this.before(['CREATE', 'UPDATE'], '%s', (req) => {\n", e.Name)
				fmt.Fprintf(&b, "    // %s\n", ruleComment(r))
				b.WriteString("    applyDefaults(req.data);\n")
				b.WriteString("  });\n")
			default:
				fmt.Fprintf(&b, "  // %s rule %q handled declaratively\n", r.RuleType, r.Name)
			}
		}
	}

	b.WriteString("});\n")
	return b.String()
}

// UtilsJS renders the shared srv/lib/utils.js helper module.
func UtilsJS() string {
	return `// Shared service helpers
function validateRequired(data) {
  for (const [key, value] of Object.entries(data)) {
    if (value === null || value === undefined) {
      continue; // nullability enforced by the schema
    }
    if (typeof value === 'string' && value.trim() === '') {
      const err = new Error('field ' + key + ' must not be empty');
      err.code = 400;
      throw err;
    }
  }
}

function applyDefaults(data) {
  if (!data.createdAt) data.createdAt = new Date().toISOString();
  return data;
}

module.exports = { validateRequired, applyDefaults };
`
}

func ruleComment(r engine.BusinessRule) string {
	if r.Description != "" {
		return r.Name + ": " + r.Description
	}
	return r.Name
}
