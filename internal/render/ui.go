package render

import (
	"encoding/json"
	"fmt"

	"github.com/yalochat/capforge/internal/engine"
)

// AppID returns the Fiori app identifier, also used as the app/ folder name.
func AppID(st *engine.PipelineState) string {
	return engine.Identifier(st.ProjectName)
}

// MainEntity resolves the entity the UI is built around: the configured main
// entity when set, otherwise the first entity. Fails without entities.
func MainEntity(st *engine.PipelineState) (string, error) {
	if st.MainEntity != "" {
		if _, ok := st.Entity(st.MainEntity); ok {
			return st.MainEntity, nil
		}
		return "", fmt.Errorf("main entity %s not defined", st.MainEntity)
	}
	if len(st.Entities) == 0 {
		return "", fmt.Errorf("no entities for UI generation")
	}
	return st.Entities[0].Name, nil
}

// Manifest renders the Fiori Elements List Report manifest.json.
func Manifest(st *engine.PipelineState) (string, error) {
	main, err := MainEntity(st)
	if err != nil {
		return "", err
	}
	theme := st.Theme
	if theme == "" {
		theme = "sap_horizon"
	}
	m := map[string]interface{}{
		"_version": "1.49.0",
		"sap.app": map[string]interface{}{
			"id":          AppID(st),
			"type":        "application",
			"title":       st.ProjectName,
			"description": st.ProjectDescription,
			"dataSources": map[string]interface{}{
				"mainService": map[string]interface{}{
					"uri":  "/" + engine.Identifier(st.ProjectName) + "/",
					"type": "OData",
					"settings": map[string]interface{}{
						"odataVersion": "4.0",
					},
				},
			},
		},
		"sap.ui5": map[string]interface{}{
			"dependencies": map[string]interface{}{
				"libs": map[string]interface{}{
					"sap.fe.templates": map[string]interface{}{},
				},
			},
			"routing": map[string]interface{}{
				"routes": []map[string]interface{}{
					{
						"name":    main + "List",
						"pattern": ":?query:",
						"target":  main + "List",
					},
				},
				"targets": map[string]interface{}{
					main + "List": map[string]interface{}{
						"type": "Component",
						"id":   main + "List",
						"name": "sap.fe.templates.ListReport",
						"options": map[string]interface{}{
							"settings": map[string]interface{}{
								"contextPath": "/" + main,
							},
						},
					},
				},
			},
		},
		"sap.ui": map[string]interface{}{
			"technology": "UI5",
			"deviceTypes": map[string]bool{
				"desktop": true, "tablet": true, "phone": true,
			},
		},
		"sap.fiori": map[string]interface{}{
			"registrationIds": []string{},
			"archeType":       "transactional",
		},
		"sap.platform.cf": map[string]interface{}{
			"theme": theme,
		},
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	return string(data) + "\n", nil
}

// IndexHTML renders the app bootstrap page.
func IndexHTML(st *engine.PipelineState) string {
	theme := st.Theme
	if theme == "" {
		theme = "sap_horizon"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
  <script id="sap-ui-bootstrap"
    src="https://ui5.sap.com/resources/sap-ui-core.js"
    data-sap-ui-theme="%s"
    data-sap-ui-resourceroots='{"%s": "./"}'
    data-sap-ui-compatVersion="edge"
    data-sap-ui-async="true"
    data-sap-ui-frameOptions="trusted"></script>
</head>
<body class="sapUiBody">
  <div data-sap-ui-component data-name="%s" data-id="container" data-settings='{"id" : "%s"}'></div>
</body>
</html>
`, st.ProjectName, theme, AppID(st), AppID(st), AppID(st))
}

// I18n renders the default i18n.properties bundle.
func I18n(st *engine.PipelineState) string {
	return fmt.Sprintf("appTitle=%s\nappDescription=%s\n", st.ProjectName, st.ProjectDescription)
}
