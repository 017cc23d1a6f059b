package model

import "time"

// Snapshot is the stored form of a flow.
type Snapshot struct {
	Key           string                 `json:"key"`
	CurrentStepID string                 `json:"currentStepId,omitempty"`
	FlowData      map[string]interface{} `json:"flowData,omitempty"`
	Internal      *Internal              `json:"_internal,omitempty"`
	SavedAt       time.Time              `json:"savedAt"`
}

// NewSnapshot captures a copy of c positioned on stepID.
func NewSnapshot(key string, c *Context, stepID string, at time.Time) *Snapshot {
	ret := &Snapshot{Key: key, CurrentStepID: stepID, SavedAt: at}
	if c != nil {
		clone := c.Clone()
		ret.FlowData = clone.FlowData
		ret.Internal = &clone.Internal
	}
	return ret
}

// IsCompleted reports whether the snapshot was taken after the flow finished.
func (s *Snapshot) IsCompleted() bool {
	return s != nil && s.CurrentStepID == "" && s.Internal != nil && s.Internal.CompletedAt != nil
}
