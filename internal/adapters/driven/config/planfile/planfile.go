// Package planfile reads processing plans from YAML (or JSON) files.
//
// A plan file lists steps in order. Dependencies may be given per step with
// depends_on, in a top-level dependencies map, or both:
//
//	id: docs-ingest
//	steps:
//	  - id: chunk
//	    kind: chunk
//	    params: {content_ids: [notes.md]}
//	  - id: embed
//	    kind: embed
//	    depends_on: [chunk]
//
// With linear: true every step without explicit dependencies depends on
// the step before it.
package planfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// File is the on-disk shape of a plan.
type File struct {
	ID           string              `yaml:"id"`
	Name         string              `yaml:"name,omitempty"`
	Linear       bool                `yaml:"linear,omitempty"`
	Steps        []Step              `yaml:"steps"`
	Dependencies map[string][]string `yaml:"dependencies,omitempty"`
}

// Step is one step entry in a plan file.
type Step struct {
	ID         string              `yaml:"id"`
	Kind       string              `yaml:"kind"`
	Params     map[string]any      `yaml:"params,omitempty"`
	Requires   domain.Requirements `yaml:"requires,omitempty"`
	MaxRetries *int                `yaml:"max_retries,omitempty"`
	DependsOn  []string            `yaml:"depends_on,omitempty"`
}

// Load reads and validates the plan at path. A plan without an id takes
// the file name without its extension.
func Load(path string) (domain.ProcessingPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ProcessingPlan{}, fmt.Errorf("%w: plan file %s", domain.ErrNotFound, path)
		}
		return domain.ProcessingPlan{}, fmt.Errorf("read plan file: %w", err)
	}
	base := filepath.Base(path)
	return Parse(data, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Parse decodes and validates a plan. defaultID is used when the plan has no id.
func Parse(data []byte, defaultID string) (domain.ProcessingPlan, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.ProcessingPlan{}, fmt.Errorf("%w: parse plan: %w", domain.ErrValidation, err)
	}
	if f.ID == "" {
		f.ID = defaultID
	}

	plan := f.Plan()
	if err := plan.Validate(); err != nil {
		return domain.ProcessingPlan{}, err
	}
	return plan, nil
}

// Plan converts the file into a domain plan, merging per-step and
// top-level dependencies.
func (f *File) Plan() domain.ProcessingPlan {
	plan := domain.ProcessingPlan{
		ID:           f.ID,
		Name:         f.Name,
		Steps:        make([]domain.ProcessStep, 0, len(f.Steps)),
		Dependencies: make(map[string][]string),
	}

	for id, deps := range f.Dependencies {
		plan.Dependencies[id] = append(plan.Dependencies[id], deps...)
	}
	for i, s := range f.Steps {
		plan.Steps = append(plan.Steps, domain.ProcessStep{
			ID:         s.ID,
			Kind:       s.Kind,
			Params:     s.Params,
			Requires:   s.Requires,
			MaxRetries: s.MaxRetries,
		})
		for _, dep := range s.DependsOn {
			if !slices.Contains(plan.Dependencies[s.ID], dep) {
				plan.Dependencies[s.ID] = append(plan.Dependencies[s.ID], dep)
			}
		}
		if f.Linear && i > 0 && len(plan.Dependencies[s.ID]) == 0 {
			plan.Dependencies[s.ID] = []string{f.Steps[i-1].ID}
		}
	}
	return plan
}

// Save writes a plan as YAML.
func Save(path string, plan domain.ProcessingPlan) error {
	f := File{ID: plan.ID, Name: plan.Name}
	for _, s := range plan.Steps {
		f.Steps = append(f.Steps, Step{
			ID:         s.ID,
			Kind:       s.Kind,
			Params:     s.Params,
			Requires:   s.Requires,
			MaxRetries: s.MaxRetries,
			DependsOn:  plan.Prerequisites(s.ID),
		})
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
