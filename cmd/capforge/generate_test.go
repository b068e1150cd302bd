package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yalochat/capforge/internal/engine"
)

const sampleProject = `
name: Online Shop
description: A small web shop
domain: custom
auth: xsuaa
target: cf
ci_enabled: true
main_entity: Order
entities:
  - name: Order
    description: Customer order
    aspects: [cuid, managed]
    fields:
      - name: ID
        type: UUID
        key: true
      - name: orderNumber
        type: String
        length: 20
  - name: Customer
    fields:
      - name: ID
        type: UUID
        key: true
      - name: name
        type: String
        length: 100
relationships:
  - source: Order
    target: Customer
    type: association
    cardinality: "n:1"
business_rules:
  - name: OrderNumberRequired
    entity: Order
    rule_type: validation
    condition: req.data.orderNumber
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProject(t *testing.T) {
	st, err := loadProject(writeProject(t, sampleProject))
	require.NoError(t, err)

	assert.Equal(t, "Online Shop", st.ProjectName)
	assert.Equal(t, "com.company.online_shop", st.ProjectNamespace)
	assert.Equal(t, engine.AuthXSUAA, st.Auth)
	assert.Equal(t, engine.DeployCF, st.Target)
	assert.True(t, st.CIEnabled)
	assert.Equal(t, "Order", st.MainEntity)

	require.Len(t, st.Entities, 2)
	assert.Equal(t, []string{"cuid", "managed"}, st.Entities[0].Aspects)
	require.Len(t, st.Entities[0].Fields, 2)
	assert.True(t, st.Entities[0].Fields[0].Key)
	assert.Equal(t, engine.TypeString, st.Entities[0].Fields[1].Type)
	assert.Equal(t, 20, st.Entities[0].Fields[1].Length)

	require.Len(t, st.Relationships, 1)
	assert.Equal(t, "Customer", st.Relationships[0].Target)
	require.Len(t, st.BusinessRules, 1)
}

func TestLoadProjectRequiresName(t *testing.T) {
	_, err := loadProject(writeProject(t, "description: nameless"))
	require.Error(t, err)
}

func TestLoadProjectValidatesModel(t *testing.T) {
	broken := `
name: Broken
entities:
  - name: Note
    fields:
      - name: text
        type: String
`
	_, err := loadProject(writeProject(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key field")
}

func TestLoadProjectMissingFile(t *testing.T) {
	_, err := loadProject("/nonexistent/project.yaml")
	require.Error(t, err)
}
