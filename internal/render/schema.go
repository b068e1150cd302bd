// Package render holds the deterministic template renderers the agents fall
// back to when LLM generation fails. Renderers are pure functions of the
// pipeline state: same inputs, same outputs, same artifact paths.
package render

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yalochat/capforge/internal/engine"
)

// FieldCDS renders one field declaration line.
func FieldCDS(f engine.FieldDefinition) string {
	var b strings.Builder
	if f.Key {
		b.WriteString("key ")
	}
	b.WriteString(f.Name)
	b.WriteString(" : ")
	b.WriteString(string(f.Type))
	if f.Type == engine.TypeString && f.Length > 0 {
		fmt.Fprintf(&b, "(%d)", f.Length)
	}
	if !f.Nullable && !f.Key {
		b.WriteString(" not null")
	}
	if f.Default != "" {
		fmt.Fprintf(&b, " default %s", f.Default)
	}
	b.WriteString(";")
	return b.String()
}

// EntityCDS renders one entity block, including association lines for the
// relationships it sources.
func EntityCDS(e engine.EntityDefinition, rels []engine.RelationshipDefinition) string {
	var b strings.Builder
	if e.Description != "" {
		fmt.Fprintf(&b, "// %s\n", e.Description)
	}
	b.WriteString("entity " + e.Name)
	if len(e.Aspects) > 0 {
		b.WriteString(" : " + strings.Join(e.Aspects, ", "))
	}
	b.WriteString(" {\n")
	for _, f := range e.Fields {
		b.WriteString("  " + FieldCDS(f) + "\n")
	}
	for _, r := range rels {
		if r.Source != e.Name {
			continue
		}
		name := r.Name
		if name == "" {
			name = strings.ToLower(r.Target) + "s"
		}
		switch {
		case r.Type == "composition":
			fmt.Fprintf(&b, "  %s : Composition of many %s;\n", name, r.Target)
		case r.Cardinality == "1:n" || r.Cardinality == "n:m":
			fmt.Fprintf(&b, "  %s : Association to many %s;\n", name, r.Target)
		default:
			fmt.Fprintf(&b, "  %s : Association to %s;\n", strings.ToLower(r.Target), r.Target)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// SchemaCDS renders db/schema.cds for the whole model. Fails when the state
// carries no entities, which the caller treats as fatal.
func SchemaCDS(st *engine.PipelineState) (string, error) {
	if len(st.Entities) == 0 {
		return "", fmt.Errorf("no entities to model")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "namespace %s;\n\n", st.ProjectNamespace)
	b.WriteString("using { cuid, managed, temporal } from '@sap/cds/common';\n\n")
	for i, e := range st.Entities {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(EntityCDS(e, st.Relationships))
	}
	return b.String(), nil
}

// IndexCDS renders the trivial db/index.cds import file.
func IndexCDS() string {
	return "// Database model index\nusing from './schema';\n"
}

// SampleCSV renders three deterministic sample rows for an entity, semicolon
// separated, header first.
func SampleCSV(e engine.EntityDefinition) string {
	header := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		header[i] = f.Name
	}
	var b strings.Builder
	b.WriteString(strings.Join(header, ";"))
	for i := 0; i < 3; i++ {
		row := make([]string, len(e.Fields))
		for j, f := range e.Fields {
			row[j] = sampleValue(f, i)
		}
		b.WriteString("\n" + strings.Join(row, ";"))
	}
	return b.String()
}

// SampleCSVPath returns the canonical db/data path for an entity's samples.
func SampleCSVPath(namespace, entity string) string {
	return fmt.Sprintf("db/data/%s-%s.csv", strings.ReplaceAll(namespace, ".", "-"), entity)
}

func sampleValue(f engine.FieldDefinition, row int) string {
	switch f.Type {
	case engine.TypeUUID:
		// Deterministic per field+row so re-renders are stable.
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s-%d", f.Name, row))).String()
	case engine.TypeString, engine.TypeLargeString:
		return fmt.Sprintf("Sample %s %d", f.Name, row+1)
	case engine.TypeInteger:
		return fmt.Sprintf("%d", (row+1)*10)
	case engine.TypeDecimal:
		return fmt.Sprintf("%.2f", float64(row+1)*100.99)
	case engine.TypeBoolean:
		if row%2 == 0 {
			return "true"
		}
		return "false"
	case engine.TypeDate:
		return fmt.Sprintf("2024-0%d-15", row+1)
	case engine.TypeDateTime:
		return fmt.Sprintf("2024-0%d-15T10:30:00Z", row+1)
	default:
		return fmt.Sprintf("Value%d", row+1)
	}
}
