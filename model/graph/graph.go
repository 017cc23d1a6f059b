package graph

import (
	"errors"
	"fmt"

	"github.com/viant/onboard/model"
)

// Find returns the step with id or nil.
func Find(steps []*model.Step, id string) *model.Step {
	if idx := IndexOf(steps, id); idx != -1 {
		return steps[idx]
	}
	return nil
}

// IndexOf returns the position of the step with id or -1.
func IndexOf(steps []*model.Step, id string) int {
	if id == "" {
		return -1
	}
	for i, step := range steps {
		if step != nil && step.ID == id {
			return i
		}
	}
	return -1
}

// Resolve evaluates ref against c.
func Resolve(ref model.Ref, c *model.Context) model.Target {
	return model.Evaluate(ref, c)
}

// Visible returns the steps whose condition passes for c.
func Visible(steps []*model.Step, c *model.Context) []*model.Step {
	var ret []*model.Step
	for _, step := range steps {
		if step.Passes(c) {
			ret = append(ret, step)
		}
	}
	return ret
}

// Validate checks static properties of a step list: ids are present and
// unique, types are known, literal edges and initialID name existing steps.
// Dynamic edges are not evaluated.
func Validate(steps []*model.Step, initialID string) error {
	if len(steps) == 0 {
		return model.ErrNoSteps
	}
	var issues []error
	seen := map[string]bool{}
	for i, step := range steps {
		if step == nil {
			issues = append(issues, fmt.Errorf("step[%d] is nil", i))
			continue
		}
		if step.ID == "" {
			issues = append(issues, fmt.Errorf("step[%d] has empty id", i))
			continue
		}
		if seen[step.ID] {
			issues = append(issues, fmt.Errorf("duplicate step id %s", step.ID))
		}
		seen[step.ID] = true
		if !step.Type.IsValid() {
			issues = append(issues, fmt.Errorf("step %s has unsupported type %q", step.ID, step.Type))
		}
		if step.Type == model.StepChecklist {
			if _, ok := step.Checklist(); !ok {
				issues = append(issues, fmt.Errorf("checklist step %s has no checklist payload", step.ID))
			}
		}
	}
	for _, step := range steps {
		if step == nil {
			continue
		}
		edges := []struct {
			name string
			ref  model.Ref
		}{{"nextStep", step.NextStep}, {"previousStep", step.PreviousStep}, {"skipToStep", step.SkipToStep}}
		for _, edge := range edges {
			literal, ok := edge.ref.(model.Literal)
			if !ok || literal == "" {
				continue
			}
			if !seen[string(literal)] {
				issues = append(issues, fmt.Errorf("step %s %s refers to unknown step %s", step.ID, edge.name, literal))
			}
		}
	}
	if initialID != "" && !seen[initialID] {
		issues = append(issues, fmt.Errorf("initial step %s not found", initialID))
	}
	return errors.Join(issues...)
}
