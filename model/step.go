package model

import "context"

// StepType identifies how a step is presented and which payload it carries.
type StepType string

const (
	StepInformation     StepType = "information"
	StepSingleChoice    StepType = "single-choice"
	StepMultipleChoice  StepType = "multiple-choice"
	StepConfirmation    StepType = "confirmation"
	StepChecklist       StepType = "checklist"
	StepCustomComponent StepType = "custom-component"
)

// IsValid reports whether t is one of the known step types.
func (t StepType) IsValid() bool {
	switch t {
	case StepInformation, StepSingleChoice, StepMultipleChoice, StepConfirmation, StepChecklist, StepCustomComponent:
		return true
	}
	return false
}

type (
	// Condition decides whether a step is visible; it must not mutate the context.
	Condition func(c *Context) bool

	// ActiveHook runs when a step becomes current.
	ActiveHook func(ctx context.Context, c *Context) error

	// CompleteHook runs when a step is left forward with its collected data.
	CompleteHook func(ctx context.Context, stepData map[string]interface{}, c *Context) error

	// Step is one node of the flow graph. Steps are configuration; the engine
	// never mutates them.
	Step struct {
		ID             string                 `json:"id" yaml:"id"`
		Type           StepType               `json:"type" yaml:"type"`
		Title          string                 `json:"title,omitempty" yaml:"title,omitempty"`
		Payload        interface{}            `json:"payload,omitempty" yaml:"payload,omitempty"`
		NextStep       Ref                    `json:"-" yaml:"-"`
		PreviousStep   Ref                    `json:"-" yaml:"-"`
		SkipToStep     Ref                    `json:"-" yaml:"-"`
		Condition      Condition              `json:"-" yaml:"-"`
		IsSkippable    bool                   `json:"isSkippable,omitempty" yaml:"isSkippable,omitempty"`
		OnStepActive   ActiveHook             `json:"-" yaml:"-"`
		OnStepComplete CompleteHook           `json:"-" yaml:"-"`
		Meta           map[string]interface{} `json:"meta,omitempty" yaml:"meta,omitempty"`
	}
)

// NewStep creates a step with the supplied id and type.
func NewStep(id string, stepType StepType) *Step {
	return &Step{ID: id, Type: stepType}
}

// Passes reports whether the step is visible for c; no condition means visible.
func (s *Step) Passes(c *Context) bool {
	if s == nil {
		return false
	}
	if s.Condition == nil {
		return true
	}
	return s.Condition(c)
}

// Checklist returns the checklist payload of a checklist step.
func (s *Step) Checklist() (*ChecklistPayload, bool) {
	if s == nil || s.Type != StepChecklist {
		return nil, false
	}
	switch actual := s.Payload.(type) {
	case *ChecklistPayload:
		return actual, actual != nil
	case ChecklistPayload:
		return &actual, true
	}
	return nil, false
}

// WithTitle sets the step title
func (s *Step) WithTitle(title string) *Step {
	s.Title = title
	return s
}

// WithPayload sets the type specific payload
func (s *Step) WithPayload(payload interface{}) *Step {
	s.Payload = payload
	return s
}

// WithNext sets the next edge to a literal step id
func (s *Step) WithNext(id string) *Step {
	s.NextStep = Literal(id)
	return s
}

// WithNextRef sets the next edge
func (s *Step) WithNextRef(ref Ref) *Step {
	s.NextStep = ref
	return s
}

// WithPrevious sets the previous edge to a literal step id
func (s *Step) WithPrevious(id string) *Step {
	s.PreviousStep = Literal(id)
	return s
}

// WithPreviousRef sets the previous edge
func (s *Step) WithPreviousRef(ref Ref) *Step {
	s.PreviousStep = ref
	return s
}

// WithSkipTo marks the step skippable and sets the skip edge
func (s *Step) WithSkipTo(id string) *Step {
	s.IsSkippable = true
	s.SkipToStep = Literal(id)
	return s
}

// Skippable marks the step skippable
func (s *Step) Skippable() *Step {
	s.IsSkippable = true
	return s
}

// WithCondition sets the visibility condition
func (s *Step) WithCondition(condition Condition) *Step {
	s.Condition = condition
	return s
}

// WithOnActive sets the activation hook
func (s *Step) WithOnActive(hook ActiveHook) *Step {
	s.OnStepActive = hook
	return s
}

// WithOnComplete sets the completion hook
func (s *Step) WithOnComplete(hook CompleteHook) *Step {
	s.OnStepComplete = hook
	return s
}

// WithMeta adds a metadata entry
func (s *Step) WithMeta(key string, value interface{}) *Step {
	if s.Meta == nil {
		s.Meta = make(map[string]interface{})
	}
	s.Meta[key] = value
	return s
}
