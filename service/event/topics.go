package event

import (
	"time"

	"github.com/viant/onboard/model"
)

type (
	// BeforeStepChangeData describes a pending transition offered to guard listeners.
	BeforeStepChangeData struct {
		CurrentStep *model.Step
		Target      model.Target
		Direction   model.Direction
		Context     *model.Context
	}

	// StepChangeData describes a settled transition.
	StepChangeData struct {
		NewStep *model.Step
		OldStep *model.Step
		Context *model.Context
	}

	// NavigationData describes a directional move between two steps.
	NavigationData struct {
		From      *model.Step
		To        *model.Step
		Direction model.Direction
		Context   *model.Context
	}

	// StepData carries a single step.
	StepData struct {
		Step    *model.Step
		Context *model.Context
	}

	// StepCompletedData carries a completed step and the data collected on it.
	StepCompletedData struct {
		Step     *model.Step
		StepData map[string]interface{}
		Context  *model.Context
	}

	// StepSkippedData carries a skipped step and where the skip landed.
	StepSkippedData struct {
		Step    *model.Step
		Target  *model.Step
		Context *model.Context
	}

	// FlowCompletedData is published once a flow runs past its last step.
	FlowCompletedData struct {
		Context  *model.Context
		Duration time.Duration
	}

	// FlowResetData is published after a reset.
	FlowResetData struct {
		Context *model.Context
	}

	// ContextUpdateData carries the flow data before and after an update.
	ContextUpdateData struct {
		Old *model.Context
		New *model.Context
	}

	// ChecklistItemData describes a toggled checklist item.
	ChecklistItemData struct {
		StepID    string
		ItemID    string
		Completed bool
	}

	// ChecklistProgressData describes checklist progress.
	ChecklistProgressData struct {
		StepID     string
		Completed  int
		Total      int
		Percentage int
		IsComplete bool
	}

	// PersistenceData describes a save attempt.
	PersistenceData struct {
		StepID   string
		Duration time.Duration
		Err      error
	}

	// ErrorData carries an error surfaced by the engine.
	ErrorData struct {
		StepID string
		Err    error
	}
)

var (
	StateChange              = NewTopic[model.State]("stateChange")
	BeforeStepChange         = NewGuardTopic[BeforeStepChangeData]("beforeStepChange")
	StepChange               = NewTopic[StepChangeData]("stepChange")
	StepActive               = NewTopic[StepData]("stepActive")
	StepCompleted            = NewTopic[StepCompletedData]("stepCompleted")
	StepSkipped              = NewTopic[StepSkippedData]("stepSkipped")
	NavigationBack           = NewTopic[NavigationData]("navigationBack")
	NavigationForward        = NewTopic[NavigationData]("navigationForward")
	NavigationJump           = NewTopic[NavigationData]("navigationJump")
	FlowStarted              = NewTopic[StepData]("flowStarted")
	FlowCompleted            = NewTopic[FlowCompletedData]("flowCompleted")
	FlowReset                = NewTopic[FlowResetData]("flowReset")
	ContextUpdate            = NewTopic[ContextUpdateData]("contextUpdate")
	ChecklistItemToggled     = NewTopic[ChecklistItemData]("checklistItemToggled")
	ChecklistProgressChanged = NewTopic[ChecklistProgressData]("checklistProgressChanged")
	PersistenceSuccess       = NewTopic[PersistenceData]("persistenceSuccess")
	PersistenceFailure       = NewTopic[PersistenceData]("persistenceFailure")
	Error                    = NewTopic[ErrorData]("error")
)

// NavigationTopic returns the directional topic for a move in direction.
func NavigationTopic(direction model.Direction) (Topic[NavigationData], bool) {
	switch direction {
	case model.DirectionPrevious:
		return NavigationBack, true
	case model.DirectionNext, model.DirectionSkip:
		return NavigationForward, true
	case model.DirectionGoTo:
		return NavigationJump, true
	}
	return Topic[NavigationData]{}, false
}

func stepIDOf(step *model.Step) string {
	if step == nil {
		return ""
	}
	return step.ID
}

func (d BeforeStepChangeData) eventStepID() string  { return stepIDOf(d.CurrentStep) }
func (d StepChangeData) eventStepID() string        { return stepIDOf(d.NewStep) }
func (d NavigationData) eventStepID() string        { return stepIDOf(d.To) }
func (d StepData) eventStepID() string              { return stepIDOf(d.Step) }
func (d StepCompletedData) eventStepID() string     { return stepIDOf(d.Step) }
func (d StepSkippedData) eventStepID() string       { return stepIDOf(d.Step) }
func (d ChecklistItemData) eventStepID() string     { return d.StepID }
func (d ChecklistProgressData) eventStepID() string { return d.StepID }
func (d PersistenceData) eventStepID() string       { return d.StepID }
func (d ErrorData) eventStepID() string             { return d.StepID }
