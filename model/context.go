package model

import "time"

// Internal holds engine bookkeeping kept alongside flow data.
type Internal struct {
	StartedAt      *time.Time           `json:"startedAt,omitempty"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	CompletedSteps map[string]time.Time `json:"completedSteps,omitempty"`
	StepStartTimes map[string]time.Time `json:"stepStartTimes,omitempty"`
}

// Context is the mutable data bag threaded through a flow.
type Context struct {
	FlowData map[string]interface{} `json:"flowData"`
	Internal Internal               `json:"_internal"`
}

// NewContext creates a context seeded with a copy of flowData.
func NewContext(flowData map[string]interface{}) *Context {
	ret := &Context{FlowData: make(map[string]interface{}, len(flowData))}
	for k, v := range flowData {
		ret.FlowData[k] = copyValue(v)
	}
	ret.Internal.ensure()
	return ret
}

func (i *Internal) ensure() {
	if i.CompletedSteps == nil {
		i.CompletedSteps = make(map[string]time.Time)
	}
	if i.StepStartTimes == nil {
		i.StepStartTimes = make(map[string]time.Time)
	}
}

// Get returns a flow data value.
func (c *Context) Get(key string) (interface{}, bool) {
	if c == nil || c.FlowData == nil {
		return nil, false
	}
	v, ok := c.FlowData[key]
	return v, ok
}

// Set stores a flow data value.
func (c *Context) Set(key string, value interface{}) {
	if c.FlowData == nil {
		c.FlowData = make(map[string]interface{})
	}
	c.FlowData[key] = value
}

// Merge copies every entry of data into flow data.
func (c *Context) Merge(data map[string]interface{}) {
	for k, v := range data {
		c.Set(k, v)
	}
}

// MarkStarted records when a step became current; the first call also stamps the flow start.
func (c *Context) MarkStarted(stepID string, at time.Time) {
	c.Internal.ensure()
	c.Internal.StepStartTimes[stepID] = at
	if c.Internal.StartedAt == nil {
		started := at
		c.Internal.StartedAt = &started
	}
}

// MarkCompleted records the completion time of a step.
func (c *Context) MarkCompleted(stepID string, at time.Time) {
	c.Internal.ensure()
	c.Internal.CompletedSteps[stepID] = at
}

// IsCompleted reports whether stepID has been completed in this flow.
func (c *Context) IsCompleted(stepID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Internal.CompletedSteps[stepID]
	return ok
}

// Complete stamps the flow completion time and returns the flow duration.
func (c *Context) Complete(at time.Time) time.Duration {
	completed := at
	c.Internal.CompletedAt = &completed
	if c.Internal.StartedAt == nil {
		return 0
	}
	return at.Sub(*c.Internal.StartedAt)
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	ret := NewContext(c.FlowData)
	if c.Internal.StartedAt != nil {
		v := *c.Internal.StartedAt
		ret.Internal.StartedAt = &v
	}
	if c.Internal.CompletedAt != nil {
		v := *c.Internal.CompletedAt
		ret.Internal.CompletedAt = &v
	}
	for k, v := range c.Internal.CompletedSteps {
		ret.Internal.CompletedSteps[k] = v
	}
	for k, v := range c.Internal.StepStartTimes {
		ret.Internal.StepStartTimes[k] = v
	}
	return ret
}

func copyValue(v interface{}) interface{} {
	switch actual := v.(type) {
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(actual))
		for k, item := range actual {
			ret[k] = copyValue(item)
		}
		return ret
	case []interface{}:
		ret := make([]interface{}, len(actual))
		for i, item := range actual {
			ret[i] = copyValue(item)
		}
		return ret
	case []ChecklistItemState:
		return append([]ChecklistItemState(nil), actual...)
	case []string:
		return append([]string(nil), actual...)
	}
	return v
}
