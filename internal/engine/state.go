package engine

import (
	"fmt"
	"time"
)

// Stage identifies one pipeline stage.
type Stage string

const (
	StageRequirements    Stage = "requirements"
	StageDataModeling    Stage = "data_modeling"
	StageServiceExposure Stage = "service_exposure"
	StageBusinessLogic   Stage = "business_logic"
	StageFioriUI         Stage = "fiori_ui"
	StageSecurity        Stage = "security"
	StageExtension       Stage = "extension"
	StageDeployment      Stage = "deployment"
	StageValidation      Stage = "validation"
)

// RunStatus is the overall status of a generation run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// DomainType selects a pre-defined domain template for seeding entities.
type DomainType string

const (
	DomainCustom    DomainType = "custom"
	DomainEcommerce DomainType = "ecommerce"
	DomainHR        DomainType = "hr"
	DomainInventory DomainType = "inventory"
)

// FieldType is the closed set of CDS field types the generators understand.
type FieldType string

const (
	TypeString      FieldType = "String"
	TypeLargeString FieldType = "LargeString"
	TypeInteger     FieldType = "Integer"
	TypeDecimal     FieldType = "Decimal"
	TypeBoolean     FieldType = "Boolean"
	TypeDate        FieldType = "Date"
	TypeDateTime    FieldType = "DateTime"
	TypeUUID        FieldType = "UUID"
	TypeBinary      FieldType = "Binary"
)

// AuthType selects the authentication model for the security stage.
type AuthType string

const (
	AuthMock  AuthType = "mock"
	AuthXSUAA AuthType = "xsuaa"
)

// DeployTarget selects the deployment descriptor flavor.
type DeployTarget string

const (
	DeployLocal DeployTarget = "local"
	DeployCF    DeployTarget = "cf"
)

// FieldDefinition is a single entity field.
type FieldDefinition struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Length   int       `json:"length,omitempty"`
	Key      bool      `json:"key,omitempty"`
	Nullable bool      `json:"nullable,omitempty"`
	Default  string    `json:"default,omitempty"`
}

// EntityDefinition is a business entity with its ordered fields.
type EntityDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDefinition `json:"fields"`
	Aspects     []string          `json:"aspects,omitempty"`
}

// HasKey reports whether at least one field is marked as key.
func (e EntityDefinition) HasKey() bool {
	for _, f := range e.Fields {
		if f.Key {
			return true
		}
	}
	return false
}

// RelationshipDefinition links two entities.
type RelationshipDefinition struct {
	Name        string `json:"name,omitempty"`
	Source      string `json:"source_entity"`
	Target      string `json:"target_entity"`
	Type        string `json:"type"`        // association | composition
	Cardinality string `json:"cardinality"` // 1:1, 1:n, n:1, n:m
}

// BusinessRule is a declarative rule attached to an entity.
type BusinessRule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Entity      string `json:"entity"`
	RuleType    string `json:"rule_type"` // validation | calculation | authorization | workflow
	Condition   string `json:"condition,omitempty"`
	Action      string `json:"action,omitempty"`
}

// PipelineState is the shared state threaded through all agents of one run.
// Agents receive it read-only; only the orchestrator applies a completed
// stage's StageOutput back onto it.
type PipelineState struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`

	ProjectName        string `json:"project_name"`
	ProjectNamespace   string `json:"project_namespace"`
	ProjectDescription string `json:"project_description"`

	Domain        DomainType               `json:"domain_type"`
	Entities      []EntityDefinition       `json:"entities"`
	Relationships []RelationshipDefinition `json:"relationships"`
	BusinessRules []BusinessRule           `json:"business_rules"`

	Provider string `json:"llm_provider"`
	Model    string `json:"llm_model,omitempty"`

	Auth       AuthType     `json:"auth_type"`
	Target     DeployTarget `json:"deployment_target"`
	CIEnabled  bool         `json:"ci_cd_enabled"`
	MainEntity string       `json:"main_entity,omitempty"`
	Theme      string       `json:"fiori_theme,omitempty"`

	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	Artifacts *ArtifactSet     `json:"artifacts"`
	History   []AgentExecution `json:"agent_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a fresh pending state for a session.
func NewState(sessionID, projectName string) *PipelineState {
	now := time.Now()
	return &PipelineState{
		SessionID:        sessionID,
		ProjectName:      projectName,
		ProjectNamespace: DefaultNamespace(projectName),
		Domain:           DomainCustom,
		Auth:             AuthMock,
		Target:           DeployLocal,
		Status:           RunPending,
		Artifacts:        NewArtifactSet(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// DefaultNamespace derives a CDS namespace from a project name.
func DefaultNamespace(projectName string) string {
	return "com.company." + Identifier(projectName)
}

// Clone returns a deep copy. Fan-out stages each get their own clone so
// concurrent reads never alias the slices the orchestrator mutates.
func (s *PipelineState) Clone() *PipelineState {
	cp := *s
	cp.Entities = append([]EntityDefinition(nil), s.Entities...)
	for i, e := range cp.Entities {
		cp.Entities[i].Fields = append([]FieldDefinition(nil), e.Fields...)
		cp.Entities[i].Aspects = append([]string(nil), e.Aspects...)
	}
	cp.Relationships = append([]RelationshipDefinition(nil), s.Relationships...)
	cp.BusinessRules = append([]BusinessRule(nil), s.BusinessRules...)
	cp.History = append([]AgentExecution(nil), s.History...)
	for i := range cp.History {
		cp.History[i].Log = append([]string(nil), s.History[i].Log...)
	}
	if s.Artifacts != nil {
		cp.Artifacts = s.Artifacts.Clone()
	}
	return &cp
}

// Entity looks up an entity by name.
func (s *PipelineState) Entity(name string) (EntityDefinition, bool) {
	for _, e := range s.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityDefinition{}, false
}

// Validate enforces the state invariants: entity names unique within a run,
// every entity carries a key field, and relationship endpoints exist.
func (s *PipelineState) Validate() error {
	seen := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity with empty name")
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate entity name: %s", e.Name)
		}
		seen[e.Name] = true
		if len(e.Fields) == 0 {
			return fmt.Errorf("entity %s has no fields", e.Name)
		}
		if !e.HasKey() {
			return fmt.Errorf("entity %s has no key field", e.Name)
		}
	}
	for _, r := range s.Relationships {
		if !seen[r.Source] {
			return fmt.Errorf("relationship %s→%s: source entity %s not defined", r.Source, r.Target, r.Source)
		}
		if !seen[r.Target] {
			return fmt.Errorf("relationship %s→%s: target entity %s not defined", r.Source, r.Target, r.Target)
		}
	}
	return nil
}

// StateDelta is the structured set of state updates a stage may return.
// Zero-value fields are left untouched when applied. Fan-out stages have
// disjoint write sets: business_logic returns no delta, fiori_ui sets
// MainEntity only, security sets nothing.
type StateDelta struct {
	Entities      []EntityDefinition
	Relationships []RelationshipDefinition
	BusinessRules []BusinessRule
	Namespace     string
	MainEntity    string
}

// Apply merges the delta into the state.
func (s *PipelineState) Apply(d StateDelta) {
	if d.Entities != nil {
		s.Entities = d.Entities
	}
	if d.Relationships != nil {
		s.Relationships = d.Relationships
	}
	if d.BusinessRules != nil {
		s.BusinessRules = d.BusinessRules
	}
	if d.Namespace != "" {
		s.ProjectNamespace = d.Namespace
	}
	if d.MainEntity != "" {
		s.MainEntity = d.MainEntity
	}
	s.UpdatedAt = time.Now()
}

// StageOutput is what an agent hands back to the orchestrator: artifacts for
// its category buckets, structured state updates, and, when the LLM path
// failed, the recoverable cause that triggered template fallback.
type StageOutput struct {
	Artifacts []Artifact
	Delta     StateDelta
	Fallback  error    // recoverable failure behind the template path, nil on the LLM path
	Log       []string // progress lines recorded on the execution
}

// Identifier lowercases a project name into a CDS/URL-safe identifier.
func Identifier(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '.':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "app"
	}
	return string(out)
}
