package domain

import (
	"fmt"
	"sort"
)

// Built-in step kinds. Callers may register further kinds.
const (
	StepKindChunk     = "chunk"
	StepKindEmbed     = "embed"
	StepKindIndex     = "index"
	StepKindSaveIndex = "save_index"
	StepKindOracle    = "oracle"
)

// ProcessStep is one unit of a processing plan.
type ProcessStep struct {
	// ID is unique within the plan.
	ID string `json:"id" yaml:"id"`

	// Kind selects the step handler.
	Kind string `json:"kind" yaml:"kind"`

	// Params are handler-specific settings.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Requires lists the resources held while the step runs.
	Requires Requirements `json:"requires,omitempty" yaml:"requires,omitempty"`

	// MaxRetries overrides the engine's retry bound when non-nil.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// ProcessingPlan is an ordered list of steps with a dependency map.
// It is immutable once an execution starts.
type ProcessingPlan struct {
	ID    string        `json:"id" yaml:"id"`
	Name  string        `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []ProcessStep `json:"steps" yaml:"steps"`

	// Dependencies maps a step ID to its prerequisite step IDs.
	Dependencies map[string][]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Step returns the step with the given ID.
func (p *ProcessingPlan) Step(id string) (ProcessStep, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return ProcessStep{}, false
}

// Prerequisites returns the prerequisites of a step.
func (p *ProcessingPlan) Prerequisites(id string) []string {
	return p.Dependencies[id]
}

// Dependents returns the steps that list id as a prerequisite, sorted.
func (p *ProcessingPlan) Dependents(id string) []string {
	var out []string
	for step, prereqs := range p.Dependencies {
		for _, pre := range prereqs {
			if pre == id {
				out = append(out, step)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks step IDs, dependency references and acyclicity.
func (p *ProcessingPlan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan id is required", ErrValidation)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: plan %s has no steps", ErrValidation, p.ID)
	}

	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("%w: plan %s has a step without an id", ErrValidation, p.ID)
		}
		if s.Kind == "" {
			return fmt.Errorf("%w: step %s has no kind", ErrValidation, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate step id %s", ErrValidation, s.ID)
		}
		if s.MaxRetries != nil && *s.MaxRetries < 0 {
			return fmt.Errorf("%w: step %s has negative max_retries", ErrValidation, s.ID)
		}
		seen[s.ID] = true
	}

	for step, prereqs := range p.Dependencies {
		if !seen[step] {
			return fmt.Errorf("%w: dependencies reference unknown step %s", ErrValidation, step)
		}
		listed := make(map[string]bool, len(prereqs))
		for _, pre := range prereqs {
			if listed[pre] {
				return fmt.Errorf("%w: step %s lists %s twice", ErrValidation, step, pre)
			}
			listed[pre] = true
			if !seen[pre] {
				return fmt.Errorf("%w: step %s depends on unknown step %s", ErrValidation, step, pre)
			}
			if pre == step {
				return fmt.Errorf("%w: step %s depends on itself", ErrValidation, step)
			}
		}
	}

	if _, err := p.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}

// TopologicalOrder returns step IDs so that every step follows its prerequisites.
// Ties keep plan order.
func (p *ProcessingPlan) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(p.Steps))
	for _, s := range p.Steps {
		indegree[s.ID] = len(p.Dependencies[s.ID])
	}

	order := make([]string, 0, len(p.Steps))
	done := make(map[string]bool, len(p.Steps))
	for len(order) < len(p.Steps) {
		progressed := false
		for _, s := range p.Steps {
			if done[s.ID] || indegree[s.ID] > 0 {
				continue
			}
			done[s.ID] = true
			order = append(order, s.ID)
			progressed = true
			for _, dep := range p.Dependents(s.ID) {
				indegree[dep]--
			}
		}
		if !progressed {
			return nil, fmt.Errorf("%w: plan %s has a dependency cycle", ErrValidation, p.ID)
		}
	}
	return order, nil
}

// LinearPlan builds a plan where each step depends on the one before it.
func LinearPlan(id string, steps ...ProcessStep) ProcessingPlan {
	plan := ProcessingPlan{
		ID:           id,
		Steps:        steps,
		Dependencies: make(map[string][]string),
	}
	for i := 1; i < len(steps); i++ {
		plan.Dependencies[steps[i].ID] = []string{steps[i-1].ID}
	}
	return plan
}
