package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"reflect"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/model/graph"
	"github.com/viant/onboard/service/checklist"
	"github.com/viant/onboard/service/event"
	"github.com/viant/onboard/service/transition"
)

// Flags are the mutable lifecycle flags of an engine.
type Flags struct {
	Loading   bool
	Hydrating bool
	Completed bool
	Err       error
}

// Store holds lifecycle flags and derives the public state of a session.
type Store struct {
	mu       sync.Mutex
	flags    Flags
	session  *model.Session
	resolver *transition.Resolver
	hub      *event.Hub
	logger   *slog.Logger
}

// New creates a store for session.
func New(session *model.Session, resolver *transition.Resolver, hub *event.Hub, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{session: session, resolver: resolver, hub: hub, logger: logger}
}

// Flags returns the current lifecycle flags.
func (s *Store) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// SetState applies update to the flags and publishes a state change when
// any flag changed.
func (s *Store) SetState(ctx context.Context, update func(f *Flags)) bool {
	s.mu.Lock()
	prev := s.flags
	update(&s.flags)
	changed := !equalFlags(prev, s.flags)
	s.mu.Unlock()
	if changed {
		s.Notify(ctx)
	}
	return changed
}

// Acquire marks the store loading and clears the previous error. It fails
// while another operation is loading or the flow is hydrating.
func (s *Store) Acquire(ctx context.Context) bool {
	s.mu.Lock()
	if s.flags.Loading || s.flags.Hydrating {
		s.mu.Unlock()
		return false
	}
	s.flags.Loading = true
	s.flags.Err = nil
	s.mu.Unlock()
	s.Notify(ctx)
	return true
}

// Release clears the loading flag.
func (s *Store) Release(ctx context.Context) {
	s.SetState(ctx, func(f *Flags) { f.Loading = false })
}

// Fail stores err as the engine error and publishes it.
func (s *Store) Fail(ctx context.Context, stepID string, err error) {
	if err == nil {
		return
	}
	s.logger.ErrorContext(ctx, "flow error", slog.String(logkeys.FlowID, s.session.ID), slog.String(logkeys.StepID, stepID), slog.Any(logkeys.Error, err))
	s.SetState(ctx, func(f *Flags) { f.Err = err })
	event.Publish(ctx, s.hub, event.Error, event.ErrorData{StepID: stepID, Err: err})
}

// Notify publishes the current state.
func (s *Store) Notify(ctx context.Context) {
	event.Publish(ctx, s.hub, event.StateChange, s.Snapshot())
}

// Snapshot derives the public state from the session and flags.
func (s *Store) Snapshot() model.State {
	flags := s.Flags()
	current, c, history := s.session.View()
	steps := s.session.Steps()
	ret := model.State{
		FlowID:      s.session.ID,
		CurrentStep: current,
		Context:     c,
		History:     history,
		IsLoading:   flags.Loading,
		IsHydrating: flags.Hydrating,
		IsCompleted: flags.Completed,
		Error:       flags.Err,
	}
	visible := graph.Visible(steps, c)
	ret.TotalSteps = len(visible)
	for i, step := range visible {
		if c.IsCompleted(step.ID) {
			ret.CompletedSteps++
		}
		if current != nil && step.ID == current.ID {
			ret.CurrentStepNumber = i + 1
		}
	}
	switch {
	case flags.Completed:
		ret.ProgressPercentage = 100
	case ret.TotalSteps > 0:
		ret.ProgressPercentage = int(math.Round(float64(ret.CompletedSteps) / float64(ret.TotalSteps) * 100))
	}
	if current == nil {
		ret.IsLastStep = flags.Completed
		return ret
	}
	ret.IsFirstStep = current.ID == s.session.InitialStepID()
	ret.IsSkippable = current.IsSkippable
	ret.IsLastStep = s.isLast(steps, current, c)
	if flags.Err != nil || flags.Loading {
		return ret
	}
	ret.CanGoNext = true
	if status, ok := checklist.StatusOf(current, c); ok {
		ret.CanGoNext = status.IsComplete
	}
	peek := func() (string, bool) {
		if len(history) == 0 {
			return "", false
		}
		return history[len(history)-1], true
	}
	ret.CanGoPrevious = s.resolver.FindPrevious(steps, current, c, peek).IsStep()
	return ret
}

func (s *Store) isLast(steps []*model.Step, current *model.Step, c *model.Context) bool {
	target := s.resolver.FindNext(steps, current, c)
	if !target.IsStep() {
		return true
	}
	next, err := s.resolver.Traverse(steps, graph.Find(steps, target.ID), model.DirectionNext, c)
	return err == nil && next == nil
}

// UpdateContext merges partial into the flow data. It publishes a context
// update and reports true only when the merged data differs.
func (s *Store) UpdateContext(ctx context.Context, partial map[string]interface{}) bool {
	var before, after *model.Context
	s.session.Update(func(c *model.Context) {
		merged := make(map[string]interface{}, len(c.FlowData)+len(partial))
		for k, v := range c.FlowData {
			merged[k] = v
		}
		for k, v := range partial {
			merged[k] = v
		}
		if reflect.DeepEqual(c.FlowData, merged) {
			return
		}
		before = c.Clone()
		c.FlowData = merged
		after = c.Clone()
	})
	if after == nil {
		return false
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.DebugContext(ctx, "context updated", slog.String(logkeys.FlowID, s.session.ID), slog.String(logkeys.Diff, diff(before.FlowData, after.FlowData)))
	}
	event.Publish(ctx, s.hub, event.ContextUpdate, event.ContextUpdateData{Old: before, New: after})
	s.Notify(ctx)
	return true
}

func equalFlags(a, b Flags) bool {
	return a.Loading == b.Loading && a.Hydrating == b.Hydrating && a.Completed == b.Completed && sameError(a.Err, b.Err)
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if t := reflect.TypeOf(a); t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

func diff(before, after map[string]interface{}) string {
	a, _ := json.MarshalIndent(before, "", "  ")
	b, _ := json.MarshalIndent(after, "", "  ")
	ret, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "before",
		ToFile:   "after",
		Context:  1,
	})
	if err != nil {
		return err.Error()
	}
	return ret
}
