// Package plan loads and saves the engine's plan format: a YAML document
// with conventional snake_case keys (spec.md §6). The engine itself is
// format-agnostic; this package is the one concrete serialization the
// shipped CLI uses.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arittr/chopstack/internal/task"
)

// document mirrors the on-disk YAML shape. Field names use snake_case tags
// per spec.md §6; the in-memory task.Plan/task.Task types use Go-idiomatic
// field names, so this package is the translation layer between the two.
type document struct {
	Name           string     `yaml:"name"`
	Description    string     `yaml:"description,omitempty"`
	Strategy       string     `yaml:"strategy"`
	Phases         []phaseDoc `yaml:"phases,omitempty"`
	Tasks          []taskDoc  `yaml:"tasks"`
	SuccessMetrics []string   `yaml:"success_metrics,omitempty"`
}

type phaseDoc struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Strategy string   `yaml:"strategy,omitempty"`
	Tasks    []string `yaml:"tasks,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
}

type taskDoc struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Complexity         string   `yaml:"complexity"`
	Description        string   `yaml:"description"`
	Files              []string `yaml:"files,omitempty"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria,omitempty"`
	Dependencies       []string `yaml:"dependencies,omitempty"`
	Phase              string   `yaml:"phase,omitempty"`
}

// Load reads and parses a plan file from path.
func Load(path string) (task.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return task.Plan{}, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes plan YAML bytes into a task.Plan.
func Parse(data []byte) (task.Plan, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return task.Plan{}, fmt.Errorf("failed to parse plan yaml: %w", err)
	}
	return fromDocument(doc), nil
}

// Save serializes p to path as YAML.
func Save(p task.Plan, path string) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan file %s: %w", path, err)
	}
	return nil
}

// Marshal serializes p to plan YAML bytes.
func Marshal(p task.Plan) ([]byte, error) {
	doc := toDocument(p)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	return data, nil
}

func fromDocument(doc document) task.Plan {
	p := task.Plan{
		Name:           doc.Name,
		Description:    doc.Description,
		Strategy:       task.Strategy(doc.Strategy),
		SuccessMetrics: doc.SuccessMetrics,
	}
	for _, ph := range doc.Phases {
		p.Phases = append(p.Phases, task.Phase{
			ID:       ph.ID,
			Name:     ph.Name,
			Strategy: task.Strategy(ph.Strategy),
			Tasks:    ph.Tasks,
			Requires: ph.Requires,
		})
	}
	for _, td := range doc.Tasks {
		p.Tasks = append(p.Tasks, task.Task{
			ID:                 td.ID,
			Name:               td.Name,
			Description:        td.Description,
			Complexity:         task.Complexity(td.Complexity),
			Files:              td.Files,
			DependsOn:          td.Dependencies,
			Phase:              td.Phase,
			AcceptanceCriteria: td.AcceptanceCriteria,
		})
	}
	return p
}

func toDocument(p task.Plan) document {
	doc := document{
		Name:           p.Name,
		Description:    p.Description,
		Strategy:       string(p.Strategy),
		SuccessMetrics: p.SuccessMetrics,
	}
	for _, ph := range p.Phases {
		doc.Phases = append(doc.Phases, phaseDoc{
			ID:       ph.ID,
			Name:     ph.Name,
			Strategy: string(ph.Strategy),
			Tasks:    ph.Tasks,
			Requires: ph.Requires,
		})
	}
	for _, t := range p.Tasks {
		doc.Tasks = append(doc.Tasks, taskDoc{
			ID:                 t.ID,
			Name:               t.Name,
			Complexity:         string(t.Complexity),
			Description:        t.Description,
			Files:              t.Files,
			AcceptanceCriteria: t.AcceptanceCriteria,
			Dependencies:       t.DependsOn,
			Phase:              t.Phase,
		})
	}
	return doc
}
