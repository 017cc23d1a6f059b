package checklist

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/event"
	"github.com/viant/toolbox"
)

// Status summarises a checklist against its definitions.
type Status struct {
	Completed  int  `json:"completed"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	IsComplete bool `json:"isComplete"`
}

// Policy applies checklist completion rules to a session. Item conditions are
// evaluated while the session lock is held and must not call back into the engine.
type Policy struct {
	hub    *event.Hub
	logger *slog.Logger
}

// New creates a checklist policy.
func New(hub *event.Hub, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{hub: hub, logger: logger}
}

// ItemsState returns the item states of a checklist step, storing a fresh
// all-incomplete state when none is stored or the stored one does not match
// the definitions.
func (p *Policy) ItemsState(s *model.Session, step *model.Step) []model.ChecklistItemState {
	payload, ok := step.Checklist()
	if !ok {
		return nil
	}
	var ret []model.ChecklistItemState
	s.Update(func(c *model.Context) {
		ret = append(ret, itemsState(step.ID, payload, c)...)
	})
	return ret
}

// Init prepares the stored state of a checklist step; other steps are ignored.
func (p *Policy) Init(s *model.Session, step *model.Step) {
	p.ItemsState(s, step)
}

// IsComplete reports whether the checklist step may be left.
func (p *Policy) IsComplete(s *model.Session, step *model.Step) bool {
	return p.Progress(s, step).IsComplete
}

// Progress returns the checklist status of step.
func (p *Policy) Progress(s *model.Session, step *model.Step) Status {
	payload, ok := step.Checklist()
	if !ok {
		return Status{IsComplete: true}
	}
	var ret Status
	s.Update(func(c *model.Context) {
		ret = Evaluate(payload, itemsState(step.ID, payload, c), c)
	})
	return ret
}

// UpdateItem sets the completion of itemID on a checklist step. It reports
// whether the serialized context changed.
func (p *Policy) UpdateItem(ctx context.Context, s *model.Session, step *model.Step, itemID string, completed bool) bool {
	payload, ok := step.Checklist()
	if !ok {
		p.logger.WarnContext(ctx, "checklist update on non checklist step", slog.String(logkeys.StepID, stepID(step)), slog.String(logkeys.ItemID, itemID))
		return false
	}
	if payload.Item(itemID) == nil {
		p.logger.WarnContext(ctx, "unknown checklist item", slog.String(logkeys.StepID, step.ID), slog.String(logkeys.ItemID, itemID))
		return false
	}
	var before []byte
	s.Update(func(c *model.Context) {
		before, _ = json.Marshal(c)
	})
	event.Publish(ctx, p.hub, event.ChecklistItemToggled, event.ChecklistItemData{StepID: step.ID, ItemID: itemID, Completed: completed})

	var changed bool
	var status Status
	s.Update(func(c *model.Context) {
		states := append([]model.ChecklistItemState(nil), itemsState(step.ID, payload, c)...)
		for i := range states {
			if states[i].ID == itemID {
				states[i].IsCompleted = completed
			}
		}
		c.Set(payload.Key(step.ID), states)
		after, _ := json.Marshal(c)
		changed = !bytes.Equal(before, after)
		status = Evaluate(payload, states, c)
	})
	event.Publish(ctx, p.hub, event.ChecklistProgressChanged, event.ChecklistProgressData{
		StepID:     step.ID,
		Completed:  status.Completed,
		Total:      status.Total,
		Percentage: status.Percentage,
		IsComplete: status.IsComplete,
	})
	return changed
}

// StatusOf evaluates a checklist step against c without writing to it.
func StatusOf(step *model.Step, c *model.Context) (Status, bool) {
	payload, ok := step.Checklist()
	if !ok {
		return Status{}, false
	}
	states, ok := decode(c.FlowData[payload.Key(step.ID)])
	if !ok || len(states) != len(payload.Items) {
		states = fresh(payload)
	}
	return Evaluate(payload, states, c), true
}

// Evaluate computes the status of states against payload definitions.
// Items hidden by their condition are ignored.
func Evaluate(payload *model.ChecklistPayload, states []model.ChecklistItemState, c *model.Context) Status {
	done := make(map[string]bool, len(states))
	for _, state := range states {
		done[state.ID] = state.IsCompleted
	}
	ret := Status{}
	pendingMandatory := 0
	for _, item := range payload.Items {
		if item == nil || !item.Visible(c) {
			continue
		}
		ret.Total++
		if done[item.ID] {
			ret.Completed++
			continue
		}
		if item.Mandatory() {
			pendingMandatory++
		}
	}
	if ret.Total > 0 {
		ret.Percentage = int(math.Round(float64(ret.Completed) / float64(ret.Total) * 100))
	}
	if payload.MinItemsToComplete != nil {
		ret.IsComplete = ret.Completed >= *payload.MinItemsToComplete
	} else {
		ret.IsComplete = pendingMandatory == 0
	}
	return ret
}

func itemsState(stepID string, payload *model.ChecklistPayload, c *model.Context) []model.ChecklistItemState {
	key := payload.Key(stepID)
	states, ok := decode(c.FlowData[key])
	if ok && len(states) == len(payload.Items) {
		return states
	}
	states = fresh(payload)
	c.Set(key, states)
	return states
}

func fresh(payload *model.ChecklistPayload) []model.ChecklistItemState {
	ret := make([]model.ChecklistItemState, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item == nil {
			continue
		}
		ret = append(ret, model.ChecklistItemState{ID: item.ID})
	}
	return ret
}

// decode reads stored item states, including the generic form produced by JSON decoding.
func decode(value interface{}) ([]model.ChecklistItemState, bool) {
	if actual, ok := value.([]model.ChecklistItemState); ok {
		return actual, true
	}
	if value == nil || !toolbox.IsSlice(value) {
		return nil, false
	}
	items := toolbox.AsSlice(value)
	ret := make([]model.ChecklistItemState, 0, len(items))
	for _, item := range items {
		if item == nil || !toolbox.IsMap(item) {
			return nil, false
		}
		state, ok := decodeItem(toolbox.AsMap(item))
		if !ok {
			return nil, false
		}
		ret = append(ret, state)
	}
	return ret, true
}

func decodeItem(aMap map[string]interface{}) (model.ChecklistItemState, bool) {
	id, ok := aMap["id"]
	if !ok || id == nil {
		return model.ChecklistItemState{}, false
	}
	ret := model.ChecklistItemState{ID: toolbox.AsString(id)}
	if completed, ok := aMap["isCompleted"]; ok && completed != nil {
		ret.IsCompleted = toolbox.AsBoolean(completed)
	}
	return ret, ret.ID != ""
}

func stepID(step *model.Step) string {
	if step == nil {
		return ""
	}
	return step.ID
}
