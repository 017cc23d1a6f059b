package model

// State is a derived, read-only view of an engine.
type State struct {
	FlowID             string
	CurrentStep        *Step
	Context            *Context
	History            []string
	CanGoNext          bool
	CanGoPrevious      bool
	IsFirstStep        bool
	IsLastStep         bool
	IsSkippable        bool
	TotalSteps         int
	CompletedSteps     int
	ProgressPercentage int
	CurrentStepNumber  int
	IsLoading          bool
	IsHydrating        bool
	IsCompleted        bool
	Error              error
}

// CurrentStepID returns the current step id or an empty string.
func (s *State) CurrentStepID() string {
	if s.CurrentStep == nil {
		return ""
	}
	return s.CurrentStep.ID
}
