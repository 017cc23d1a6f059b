package model

// ChecklistItem defines one item of a checklist step.
type ChecklistItem struct {
	ID          string    `json:"id" yaml:"id"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	IsMandatory *bool     `json:"isMandatory,omitempty" yaml:"isMandatory,omitempty"`
	Condition   Condition `json:"-" yaml:"-"`
}

// Mandatory reports whether the item must be completed; items are mandatory unless set otherwise.
func (i *ChecklistItem) Mandatory() bool {
	return i.IsMandatory == nil || *i.IsMandatory
}

// Visible reports whether the item is shown for c.
func (i *ChecklistItem) Visible(c *Context) bool {
	return i.Condition == nil || i.Condition(c)
}

// ChecklistPayload is the payload of a checklist step.
type ChecklistPayload struct {
	// DataKey is the flow data key holding the item states.
	DataKey string           `json:"dataKey,omitempty" yaml:"dataKey,omitempty"`
	Items   []*ChecklistItem `json:"items" yaml:"items"`
	// MinItemsToComplete overrides mandatory semantics when set.
	MinItemsToComplete *int `json:"minItemsToComplete,omitempty" yaml:"minItemsToComplete,omitempty"`
}

// Key returns the flow data key for the checklist of stepID.
func (p *ChecklistPayload) Key(stepID string) string {
	if p.DataKey != "" {
		return p.DataKey
	}
	return "checklist_" + stepID
}

// Item returns the item definition with id.
func (p *ChecklistPayload) Item(id string) *ChecklistItem {
	for _, item := range p.Items {
		if item != nil && item.ID == id {
			return item
		}
	}
	return nil
}

// ChecklistItemState is the stored completion state of a checklist item.
type ChecklistItemState struct {
	ID          string `json:"id"`
	IsCompleted bool   `json:"isCompleted"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
