package transition

import (
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/model/graph"
)

// Resolver selects navigation candidates over a static step list.
type Resolver struct {
	maxTraversal int
}

// New creates a resolver. maxTraversal bounds conditional traversal; zero
// or less uses the step count plus one.
func New(maxTraversal int) *Resolver {
	return &Resolver{maxTraversal: maxTraversal}
}

// FindNext returns the step following step: the next edge wins when it
// names a step or ends the flow, otherwise the first visible step after it.
func (r *Resolver) FindNext(steps []*model.Step, step *model.Step, c *model.Context) model.Target {
	if step == nil {
		return model.NoTarget
	}
	if target := graph.Resolve(step.NextStep, c); !target.IsNone() {
		return target
	}
	return scanForward(steps, graph.IndexOf(steps, step.ID), c)
}

// FindPrevious returns the step preceding step: the previous edge, then the
// top of history, then the first visible step before it.
func (r *Resolver) FindPrevious(steps []*model.Step, step *model.Step, c *model.Context, history func() (string, bool)) model.Target {
	if step == nil {
		return model.NoTarget
	}
	target := graph.Resolve(step.PreviousStep, c)
	switch {
	case target.IsStep():
		return target
	case target.IsEnd():
		return model.NoTarget
	}
	if history != nil {
		if id, ok := history(); ok {
			return model.StepTarget(id)
		}
	}
	return scanBackward(steps, graph.IndexOf(steps, step.ID), c)
}

// SkipTarget returns where skipping step lands: the skip edge, then the next
// edge, then the first visible step after it.
func (r *Resolver) SkipTarget(steps []*model.Step, step *model.Step, c *model.Context) model.Target {
	if step == nil {
		return model.NoTarget
	}
	if target := graph.Resolve(step.SkipToStep, c); !target.IsNone() {
		return target
	}
	return r.FindNext(steps, step, c)
}

// Traverse advances from candidate past steps whose condition fails, moving
// backwards for previous navigation and forwards otherwise. It returns nil
// when the walk runs off the graph.
func (r *Resolver) Traverse(steps []*model.Step, candidate *model.Step, direction model.Direction, c *model.Context) (*model.Step, error) {
	limit := r.limit(len(steps))
	current := candidate
	for i := 0; current != nil; i++ {
		if i >= limit {
			return nil, &model.TraversalLimitError{StepID: candidate.ID, Limit: limit}
		}
		if current.Passes(c) {
			return current, nil
		}
		var target model.Target
		if direction.IsBackward() {
			target = r.FindPrevious(steps, current, c, nil)
		} else {
			target = r.FindNext(steps, current, c)
		}
		if !target.IsStep() {
			return nil, nil
		}
		next := graph.Find(steps, target.ID)
		if next == nil {
			return nil, &model.UnknownStepError{StepID: target.ID}
		}
		current = next
	}
	return nil, nil
}

func (r *Resolver) limit(stepCount int) int {
	if r.maxTraversal > 0 {
		return r.maxTraversal
	}
	return stepCount + 1
}

func scanForward(steps []*model.Step, from int, c *model.Context) model.Target {
	for i := from + 1; i < len(steps); i++ {
		if steps[i].Passes(c) {
			return model.StepTarget(steps[i].ID)
		}
	}
	return model.EndTarget
}

func scanBackward(steps []*model.Step, from int, c *model.Context) model.Target {
	for i := from - 1; i >= 0; i-- {
		if steps[i].Passes(c) {
			return model.StepTarget(steps[i].ID)
		}
	}
	return model.NoTarget
}
