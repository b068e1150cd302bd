package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yalochat/capforge/internal/agent"
	"github.com/yalochat/capforge/internal/config"
	"github.com/yalochat/capforge/internal/engine"
	"github.com/yalochat/capforge/internal/llm"
)

var (
	projectPath string
	outputDir   string
	noLLM       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a CAP project from a YAML description",
	Long: `Run the full generation pipeline once and write the resulting project
files to the output directory.

Examples:
  # Generate from a project file
  capforge generate -p project.yaml -o ./out

  # Skip LLM calls and use deterministic templates only
  capforge generate -p project.yaml -o ./out --no-llm`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&projectPath, "project", "p", "", "path to project description (YAML)")
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write generated files into")
	generateCmd.Flags().BoolVar(&noLLM, "no-llm", false, "use template generation only")
	generateCmd.MarkFlagRequired("project")
}

// projectSpec is the YAML shape of a project description file.
type projectSpec struct {
	Name        string `yaml:"name"`
	Namespace   string `yaml:"namespace"`
	Description string `yaml:"description"`
	Domain      string `yaml:"domain"`

	Entities []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Aspects     []string `yaml:"aspects"`
		Fields      []struct {
			Name     string `yaml:"name"`
			Type     string `yaml:"type"`
			Length   int    `yaml:"length"`
			Key      bool   `yaml:"key"`
			Nullable bool   `yaml:"nullable"`
			Default  string `yaml:"default"`
		} `yaml:"fields"`
	} `yaml:"entities"`

	Relationships []struct {
		Name        string `yaml:"name"`
		Source      string `yaml:"source"`
		Target      string `yaml:"target"`
		Type        string `yaml:"type"`
		Cardinality string `yaml:"cardinality"`
	} `yaml:"relationships"`

	BusinessRules []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Entity      string `yaml:"entity"`
		RuleType    string `yaml:"rule_type"`
		Condition   string `yaml:"condition"`
		Action      string `yaml:"action"`
	} `yaml:"business_rules"`

	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Auth       string `yaml:"auth"`
	Target     string `yaml:"target"`
	CIEnabled  bool   `yaml:"ci_enabled"`
	MainEntity string `yaml:"main_entity"`
	Theme      string `yaml:"theme"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := loadProject(projectPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var client llm.Client
	if !noLLM {
		llmCfg := cfg.LLM
		if st.Provider != "" {
			llmCfg.Provider = st.Provider
		}
		if st.Model != "" {
			llmCfg.Model = st.Model
		}
		client, err = llm.New(ctx, llmCfg)
		if err != nil {
			log.Warn("llm client unavailable, using templates", zap.Error(err))
			client = nil
		}
	}

	eng := engine.New(st, nil, log)
	eng.SetParallel(cfg.Pipeline.Parallel)
	agent.RegisterAll(eng, client, log)

	if err := eng.Generate(ctx); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	final := eng.State()
	for _, a := range final.Artifacts.All() {
		path := filepath.Join(outputDir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil {
			return err
		}
	}

	fmt.Printf("generated %d files in %s\n", final.Artifacts.Len(), outputDir)
	return nil
}

func loadProject(path string) (*engine.PipelineState, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	var spec projectSpec
	if err := yaml.Unmarshal(content, &spec); err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("project file must set name")
	}

	st := engine.NewState(uuid.New().String(), spec.Name)
	if spec.Namespace != "" {
		st.ProjectNamespace = spec.Namespace
	}
	st.ProjectDescription = spec.Description
	if spec.Domain != "" {
		st.Domain = engine.DomainType(spec.Domain)
	}
	st.Provider = spec.Provider
	st.Model = spec.Model
	if spec.Auth != "" {
		st.Auth = engine.AuthType(spec.Auth)
	}
	if spec.Target != "" {
		st.Target = engine.DeployTarget(spec.Target)
	}
	st.CIEnabled = spec.CIEnabled
	st.MainEntity = spec.MainEntity
	st.Theme = spec.Theme

	for _, e := range spec.Entities {
		ent := engine.EntityDefinition{
			Name:        e.Name,
			Description: e.Description,
			Aspects:     e.Aspects,
		}
		for _, f := range e.Fields {
			ent.Fields = append(ent.Fields, engine.FieldDefinition{
				Name:     f.Name,
				Type:     engine.FieldType(f.Type),
				Length:   f.Length,
				Key:      f.Key,
				Nullable: f.Nullable,
				Default:  f.Default,
			})
		}
		st.Entities = append(st.Entities, ent)
	}
	for _, r := range spec.Relationships {
		st.Relationships = append(st.Relationships, engine.RelationshipDefinition{
			Name:        r.Name,
			Source:      r.Source,
			Target:      r.Target,
			Type:        r.Type,
			Cardinality: r.Cardinality,
		})
	}
	for _, r := range spec.BusinessRules {
		st.BusinessRules = append(st.BusinessRules, engine.BusinessRule{
			Name:        r.Name,
			Description: r.Description,
			Entity:      r.Entity,
			RuleType:    r.RuleType,
			Condition:   r.Condition,
			Action:      r.Action,
		})
	}

	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	return st, nil
}
