package engine

import "encoding/json"

// Category is one of the five fixed artifact buckets.
type Category string

const (
	CategoryDB         Category = "db"
	CategorySrv        Category = "srv"
	CategoryApp        Category = "app"
	CategoryDeployment Category = "deployment"
	CategoryDocs       Category = "docs"
)

// Categories lists the buckets in their fixed display order.
var Categories = []Category{CategoryDB, CategorySrv, CategoryApp, CategoryDeployment, CategoryDocs}

// Artifact is one generated output file.
type Artifact struct {
	Path     string   `json:"path"`
	Content  string   `json:"content"`
	FileType string   `json:"file_type"`
	Category Category `json:"category"`
	Edited   bool     `json:"edited,omitempty"` // set by a manual save, pins the path
}

// ArtifactSet holds the five ordered category buckets. Adding an artifact
// whose path already exists in its bucket replaces it in place
// (last-writer-wins), so a later stage can patch an earlier stage's output.
// Paths pinned by a manual edit are skipped by pipeline writes until Reset.
//
// ArtifactSet is not safe for concurrent use; the orchestrator is the only
// writer during a run.
type ArtifactSet struct {
	buckets map[Category][]Artifact
}

// NewArtifactSet creates an empty set.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{buckets: make(map[Category][]Artifact, len(Categories))}
}

// Put inserts or replaces an artifact by path within its category bucket.
// A pipeline write against a path pinned by a manual edit is dropped; the
// edited content survives until the user explicitly regenerates.
func (as *ArtifactSet) Put(a Artifact) {
	bucket := as.buckets[a.Category]
	for i, existing := range bucket {
		if existing.Path == a.Path {
			if existing.Edited && !a.Edited {
				return
			}
			bucket[i] = a
			return
		}
	}
	as.buckets[a.Category] = append(bucket, a)
}

// Save replaces one artifact's content by path without re-running the
// pipeline, marking it as user-edited. The artifact must already exist in
// some bucket; Save reports whether it was found.
func (as *ArtifactSet) Save(path, content string) bool {
	for cat, bucket := range as.buckets {
		for i, a := range bucket {
			if a.Path == path {
				a.Content = content
				a.Edited = true
				as.buckets[cat][i] = a
				return true
			}
		}
	}
	return false
}

// Get returns the artifact with the given path in the given category.
func (as *ArtifactSet) Get(cat Category, path string) (Artifact, bool) {
	for _, a := range as.buckets[cat] {
		if a.Path == path {
			return a, true
		}
	}
	return Artifact{}, false
}

// Find returns the artifact with the given path, searching every bucket.
// Paths are unique across the set, so at most one bucket owns a path.
func (as *ArtifactSet) Find(path string) (Artifact, bool) {
	for _, cat := range Categories {
		for _, a := range as.buckets[cat] {
			if a.Path == path {
				return a, true
			}
		}
	}
	return Artifact{}, false
}

// ByCategory returns a copy of one bucket in insertion order.
func (as *ArtifactSet) ByCategory(cat Category) []Artifact {
	return append([]Artifact(nil), as.buckets[cat]...)
}

// All returns every artifact in fixed category order.
func (as *ArtifactSet) All() []Artifact {
	var out []Artifact
	for _, cat := range Categories {
		out = append(out, as.buckets[cat]...)
	}
	return out
}

// Len returns the total artifact count across buckets.
func (as *ArtifactSet) Len() int {
	n := 0
	for _, b := range as.buckets {
		n += len(b)
	}
	return n
}

// Reset drops all artifacts, including user edits. Called on an explicit
// full regeneration.
func (as *ArtifactSet) Reset() {
	as.buckets = make(map[Category][]Artifact, len(Categories))
}

// Clone returns a deep copy of the set.
func (as *ArtifactSet) Clone() *ArtifactSet {
	cp := NewArtifactSet()
	for cat, bucket := range as.buckets {
		cp.buckets[cat] = append([]Artifact(nil), bucket...)
	}
	return cp
}

// MarshalJSON renders the set as one array per category bucket, matching
// the persistence and API shape (artifacts_db, artifacts_srv, ...).
func (as *ArtifactSet) MarshalJSON() ([]byte, error) {
	out := make(map[string][]Artifact, len(Categories))
	for _, cat := range Categories {
		bucket := as.buckets[cat]
		if bucket == nil {
			bucket = []Artifact{}
		}
		out["artifacts_"+string(cat)] = bucket
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a set marshaled by MarshalJSON.
func (as *ArtifactSet) UnmarshalJSON(data []byte) error {
	var raw map[string][]Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	as.buckets = make(map[Category][]Artifact, len(Categories))
	for _, cat := range Categories {
		if bucket := raw["artifacts_"+string(cat)]; len(bucket) > 0 {
			as.buckets[cat] = bucket
		}
	}
	return nil
}
