package render

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/yalochat/capforge/internal/engine"
)

// mtaDescriptor mirrors the mta.yaml structure; field order matters for the
// emitted document, hence structs over maps.
type mtaDescriptor struct {
	Schema     string      `yaml:"_schema-version"`
	ID         string      `yaml:"ID"`
	Version    string      `yaml:"version"`
	Parameters mtaParams   `yaml:"parameters"`
	Modules    []mtaModule `yaml:"modules"`
	Resources  []mtaRes    `yaml:"resources,omitempty"`
}

type mtaParams struct {
	EnableParallel bool `yaml:"enable-parallel-deployments"`
}

type mtaModule struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Path       string            `yaml:"path"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
	Requires   []mtaRequire      `yaml:"requires,omitempty"`
}

type mtaRequire struct {
	Name string `yaml:"name"`
}

type mtaRes struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
}

// MTA renders mta.yaml for a Cloud Foundry deployment.
func MTA(st *engine.PipelineState) (string, error) {
	appName := engine.Identifier(st.ProjectName)
	desc := mtaDescriptor{
		Schema:     "3.1",
		ID:         appName,
		Version:    "1.0.0",
		Parameters: mtaParams{EnableParallel: true},
		Modules: []mtaModule{
			{
				Name:       appName + "-srv",
				Type:       "nodejs",
				Path:       "gen/srv",
				Parameters: map[string]string{"buildpack": "nodejs_buildpack"},
				Requires:   []mtaRequire{{Name: appName + "-db"}, {Name: appName + "-uaa"}},
			},
			{
				Name: appName + "-app",
				Type: "html5",
				Path: "app/" + appName,
			},
		},
		Resources: []mtaRes{
			{
				Name:       appName + "-db",
				Type:       "org.cloudfoundry.managed-service",
				Parameters: map[string]string{"service": "hana", "service-plan": "hdi-shared"},
			},
			{
				Name:       appName + "-uaa",
				Type:       "org.cloudfoundry.managed-service",
				Parameters: map[string]string{"service": "xsuaa", "service-plan": "application", "path": "./xs-security.json"},
			},
		},
	}
	data, err := yaml.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("marshal mta descriptor: %w", err)
	}
	return string(data), nil
}

// Dockerfile renders a production image build for the service layer.
func Dockerfile(st *engine.PipelineState) string {
	return `FROM node:20-slim AS build
WORKDIR /app
COPY package*.json ./
RUN npm ci
COPY . .
RUN npx cds build --production

FROM node:20-slim
WORKDIR /app
COPY --from=build /app/gen/srv .
RUN npm ci --omit=dev
EXPOSE 4004
CMD ["npx", "cds-serve"]
`
}

// DockerCompose renders a local compose setup with sqlite persistence.
func DockerCompose(st *engine.PipelineState) string {
	appName := engine.Identifier(st.ProjectName)
	return fmt.Sprintf(`services:
  %s:
    build: .
    ports:
      - "4004:4004"
    environment:
      - NODE_ENV=production
    volumes:
      - %s-data:/app/db
volumes:
  %s-data:
`, appName, appName, appName)
}

// Workflow renders the GitHub Actions deploy workflow, emitted only when CI
// is enabled for the session.
func Workflow(st *engine.PipelineState) string {
	appName := engine.Identifier(st.ProjectName)
	return fmt.Sprintf(`name: Deploy %s

on:
  push:
    branches: [main]

jobs:
  deploy:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - uses: actions/setup-node@v4
        with:
          node-version: 20
      - run: npm ci
      - run: npm test --if-present
      - run: npx mbt build
      - name: Deploy to Cloud Foundry
        run: cf deploy mta_archives/%s_1.0.0.mtar
        env:
          CF_API: ${{ secrets.CF_API }}
          CF_USERNAME: ${{ secrets.CF_USERNAME }}
          CF_PASSWORD: ${{ secrets.CF_PASSWORD }}
`, st.ProjectName, appName)
}
