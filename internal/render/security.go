package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yalochat/capforge/internal/engine"
)

// Roles derives the role collection from the state: a Viewer and an Admin
// role always, plus one role per authorization rule.
func Roles(st *engine.PipelineState) []string {
	roles := []string{"Viewer", "Admin"}
	seen := map[string]bool{"Viewer": true, "Admin": true}
	for _, r := range st.BusinessRules {
		if r.RuleType != "authorization" || r.Action == "" {
			continue
		}
		if !seen[r.Action] {
			roles = append(roles, r.Action)
			seen[r.Action] = true
		}
	}
	return roles
}

// XSSecurity renders the xs-security.json descriptor for the app.
func XSSecurity(st *engine.PipelineState) (string, error) {
	appName := engine.Identifier(st.ProjectName)
	roles := Roles(st)

	scopes := make([]map[string]string, 0, len(roles))
	templates := make([]map[string]interface{}, 0, len(roles))
	for _, role := range roles {
		scope := "$XSAPPNAME." + role
		scopes = append(scopes, map[string]string{
			"name":        scope,
			"description": role + " access",
		})
		templates = append(templates, map[string]interface{}{
			"name":             role,
			"description":      role + " role",
			"scope-references": []string{scope},
		})
	}

	desc := map[string]interface{}{
		"xsappname":            appName,
		"tenant-mode":          "dedicated",
		"scopes":               scopes,
		"role-templates":       templates,
		"oauth2-configuration": map[string]interface{}{"redirect-uris": []string{"https://*.hana.ondemand.com/**"}},
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal xs-security: %w", err)
	}
	return string(data) + "\n", nil
}

// AuthCDS renders the authorization annotations: Viewer reads, Admin writes.
// With mock auth the annotations still apply, backed by mocked users.
func AuthCDS(st *engine.PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "using %s from './service';\n\n", ServiceName(st))
	fmt.Fprintf(&b, "annotate %s with @(requires: 'authenticated-user');\n", ServiceName(st))
	for _, e := range st.Entities {
		fmt.Fprintf(&b, "\nannotate %s.%s with @(restrict: [\n", ServiceName(st), e.Name)
		b.WriteString("  { grant: 'READ', to: 'Viewer' },\n")
		b.WriteString("  { grant: '*', to: 'Admin' }\n")
		b.WriteString("]);\n")
	}
	return b.String()
}

// MockUsersCSV renders test users for the mock auth strategy, one per role.
func MockUsersCSV(st *engine.PipelineState) string {
	var b strings.Builder
	b.WriteString("username;password;roles")
	for _, role := range Roles(st) {
		fmt.Fprintf(&b, "\n%s;initial;%s", strings.ToLower(role), role)
	}
	return b.String()
}
