package dao

const (
	// ParamCurrentStepID filters snapshots by current step id.
	ParamCurrentStepID = "CurrentStepID"
	// ParamCompleted filters snapshots by flow completion ("true" or "false").
	ParamCompleted = "Completed"
)

// Parameter is a List filter.
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
