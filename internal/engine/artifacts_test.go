package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutReplacesByPath(t *testing.T) {
	as := NewArtifactSet()
	as.Put(Artifact{Path: "db/schema.cds", Content: "v1", Category: CategoryDB})
	as.Put(Artifact{Path: "db/schema.cds", Content: "v2", Category: CategoryDB})

	assert.Equal(t, 1, as.Len())
	a, ok := as.Get(CategoryDB, "db/schema.cds")
	require.True(t, ok)
	assert.Equal(t, "v2", a.Content)
}

func TestPutSkipsPinnedPaths(t *testing.T) {
	as := NewArtifactSet()
	as.Put(Artifact{Path: "db/schema.cds", Content: "generated", Category: CategoryDB})
	require.True(t, as.Save("db/schema.cds", "edited"))

	as.Put(Artifact{Path: "db/schema.cds", Content: "regenerated", Category: CategoryDB})

	a, _ := as.Get(CategoryDB, "db/schema.cds")
	assert.Equal(t, "edited", a.Content)
	assert.True(t, a.Edited)

	as.Reset()
	assert.Equal(t, 0, as.Len())
	as.Put(Artifact{Path: "db/schema.cds", Content: "regenerated", Category: CategoryDB})
	a, _ = as.Get(CategoryDB, "db/schema.cds")
	assert.Equal(t, "regenerated", a.Content)
}

func TestSaveUnknownPath(t *testing.T) {
	as := NewArtifactSet()
	assert.False(t, as.Save("db/nope.cds", "x"))
}

func TestFindSearchesEveryBucket(t *testing.T) {
	as := NewArtifactSet()
	as.Put(Artifact{Path: "srv/auth.cds", Content: "auth", Category: CategoryDeployment})

	a, ok := as.Find("srv/auth.cds")
	require.True(t, ok)
	assert.Equal(t, CategoryDeployment, a.Category)
	assert.Equal(t, "auth", a.Content)

	_, ok = as.Find("srv/nope.cds")
	assert.False(t, ok)
}

func TestByCategoryPreservesInsertionOrder(t *testing.T) {
	as := NewArtifactSet()
	as.Put(Artifact{Path: "db/schema.cds", Category: CategoryDB})
	as.Put(Artifact{Path: "db/index.cds", Category: CategoryDB})
	as.Put(Artifact{Path: "srv/service.cds", Category: CategorySrv})

	db := as.ByCategory(CategoryDB)
	require.Len(t, db, 2)
	assert.Equal(t, "db/schema.cds", db[0].Path)
	assert.Equal(t, "db/index.cds", db[1].Path)

	all := as.All()
	require.Len(t, all, 3)
	assert.Equal(t, "srv/service.cds", all[2].Path)
}

func TestJSONShapeUsesBucketKeys(t *testing.T) {
	as := NewArtifactSet()
	as.Put(Artifact{Path: "db/schema.cds", Content: "x", FileType: "cds", Category: CategoryDB})

	data, err := json.Marshal(as)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"artifacts_db", "artifacts_srv", "artifacts_app", "artifacts_deployment", "artifacts_docs"} {
		assert.Contains(t, raw, key)
	}

	var restored ArtifactSet
	require.NoError(t, json.Unmarshal(data, &restored))
	a, ok := restored.Get(CategoryDB, "db/schema.cds")
	require.True(t, ok)
	assert.Equal(t, "x", a.Content)
}
