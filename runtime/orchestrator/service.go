package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/model/graph"
	"github.com/viant/onboard/service/checklist"
	"github.com/viant/onboard/service/event"
	"github.com/viant/onboard/service/gate"
	"github.com/viant/onboard/service/persistence"
	"github.com/viant/onboard/service/state"
	"github.com/viant/onboard/service/transition"
	"github.com/viant/onboard/tracing"
)

type (
	// FlowCompleteFunc is called once when a flow runs past its last step.
	FlowCompleteFunc func(ctx context.Context, c *model.Context) error

	// StepChangeFunc is called after every settled transition.
	StepChangeFunc func(ctx context.Context, newStep, oldStep *model.Step, c *model.Context) error

	// Hooks are the caller supplied flow level callbacks.
	Hooks struct {
		OnFlowComplete FlowCompleteFunc
		OnStepChange   StepChangeFunc
	}
)

// Service moves a session between steps.
type Service struct {
	session   *model.Session
	store     *state.Store
	resolver  *transition.Resolver
	gate      *gate.Gate
	checklist *checklist.Policy
	gateway   *persistence.Gateway
	hub       *event.Hub
	hooks     Hooks
	clock     clock.Clock
	logger    *slog.Logger
	// flowCompleted guards the completion callback for the lifetime of a flow.
	flowCompleted atomic.Bool
}

// Next completes the current step with stepData and moves forward. A
// checklist step that is not complete refuses to move.
func (s *Service) Next(ctx context.Context, stepData map[string]interface{}) *model.Step {
	return s.transit(ctx, model.DirectionNext, "", stepData)
}

// Previous moves back.
func (s *Service) Previous(ctx context.Context) *model.Step {
	return s.transit(ctx, model.DirectionPrevious, "", nil)
}

// Skip leaves a skippable step without completing it.
func (s *Service) Skip(ctx context.Context) *model.Step {
	return s.transit(ctx, model.DirectionSkip, "", nil)
}

// GoTo jumps to stepID, merging stepData into the flow data first.
func (s *Service) GoTo(ctx context.Context, stepID string, stepData map[string]interface{}) *model.Step {
	return s.transit(ctx, model.DirectionGoTo, stepID, stepData)
}

// Start activates stepID as the first step of a flow; an empty id selects
// the configured initial step. It runs while the store is already loading.
func (s *Service) Start(ctx context.Context, stepID string) *model.Step {
	if stepID == "" {
		stepID = s.session.InitialStepID()
	}
	return s.transit(ctx, model.DirectionInitial, stepID, nil)
}

// SetFlowCompleted records whether the completion callback already fired
// for the current flow. Reset rearms it; restoring a finished flow disarms it.
func (s *Service) SetFlowCompleted(completed bool) {
	s.flowCompleted.Store(completed)
}

// FlowCompleted reports whether the completion callback fired for the current flow.
func (s *Service) FlowCompleted() bool {
	return s.flowCompleted.Load()
}

func (s *Service) transit(ctx context.Context, direction model.Direction, stepID string, stepData map[string]interface{}) *model.Step {
	current := s.session.Current()
	if direction != model.DirectionInitial && !s.store.Acquire(ctx) {
		s.logger.DebugContext(ctx, "transition rejected while loading", slog.String(logkeys.FlowID, s.session.ID), slog.String(logkeys.Direction, string(direction)))
		return current
	}
	ctx, span := tracing.StartSpan(ctx, "onboard.transition."+string(direction), "INTERNAL")
	span.WithAttributes(map[string]string{
		logkeys.FlowID:    s.session.ID,
		logkeys.Direction: string(direction),
		logkeys.StepID:    stepIDOf(current),
	})
	defer func() {
		tracing.EndSpan(span, s.store.Flags().Err)
		s.store.Release(ctx)
	}()

	if current == nil && (direction == model.DirectionNext || direction == model.DirectionPrevious || direction == model.DirectionSkip) {
		return nil
	}
	if direction == model.DirectionSkip && !current.IsSkippable {
		s.logger.WarnContext(ctx, "step is not skippable", slog.String(logkeys.FlowID, s.session.ID), slog.String(logkeys.StepID, current.ID))
		return current
	}
	if len(stepData) > 0 {
		s.store.UpdateContext(ctx, stepData)
	}
	if direction == model.DirectionNext {
		if !s.checklist.IsComplete(s.session, current) {
			s.store.Fail(ctx, current.ID, &model.ChecklistIncompleteError{StepID: current.ID})
			return current
		}
		s.complete(ctx, current, stepData)
	}

	steps := s.session.Steps()
	c := s.session.Context()
	requested, fromHistory := s.requested(steps, current, direction, stepID, c)
	result := s.gate.Run(ctx, requested, direction, current, c)
	if result.Cancelled {
		if result.Err != nil {
			s.logger.WarnContext(ctx, "transition cancelled by failing listener", slog.String(logkeys.FlowID, s.session.ID), slog.String(logkeys.StepID, stepIDOf(current)), slog.Any(logkeys.Error, result.Err))
		}
		return current
	}

	var candidate *model.Step
	if result.Target.IsStep() {
		if candidate = graph.Find(steps, result.Target.ID); candidate == nil {
			s.store.Fail(ctx, stepIDOf(current), &model.UnknownStepError{StepID: result.Target.ID})
			return current
		}
	}
	next, err := s.resolver.Traverse(steps, candidate, direction, c)
	if err != nil {
		s.store.Fail(ctx, stepIDOf(current), err)
		return current
	}
	if next == nil && direction.IsBackward() {
		return current
	}
	if fromHistory && result.Target == requested {
		// the history entry is consumed even when traversal walked past a hidden step
		s.session.PopHistoryIf(requested.ID)
	}
	s.settle(ctx, direction, current, next)
	return next
}

// requested returns the target for direction; fromHistory reports that a
// previous target was taken from the top of history.
func (s *Service) requested(steps []*model.Step, current *model.Step, direction model.Direction, stepID string, c *model.Context) (target model.Target, fromHistory bool) {
	switch direction {
	case model.DirectionNext:
		return s.resolver.FindNext(steps, current, c), false
	case model.DirectionPrevious:
		peek := func() (string, bool) {
			id, ok := s.session.PeekHistory()
			fromHistory = ok
			return id, ok
		}
		target = s.resolver.FindPrevious(steps, current, c, peek)
		return target, fromHistory
	case model.DirectionSkip:
		return s.resolver.SkipTarget(steps, current, c), false
	}
	return model.StepTarget(stepID), false
}

// complete records the departed step as completed.
func (s *Service) complete(ctx context.Context, step *model.Step, stepData map[string]interface{}) {
	if step.OnStepComplete != nil {
		c := s.session.Context()
		if err := safeCall(func() error { return step.OnStepComplete(ctx, stepData, c) }); err != nil {
			s.hookFailed(ctx, model.HookStepComplete, step.ID, err)
		}
	}
	now := s.clock.Now()
	s.session.Update(func(c *model.Context) { c.MarkCompleted(step.ID, now) })
	event.Publish(ctx, s.hub, event.StepCompleted, event.StepCompletedData{Step: step, StepData: stepData, Context: s.session.Context()})
}

func (s *Service) settle(ctx context.Context, direction model.Direction, old, next *model.Step) {
	c := s.session.Context()
	if direction != model.DirectionInitial && stepIDOf(old) != stepIDOf(next) {
		if topic, ok := event.NavigationTopic(direction); ok {
			event.Publish(ctx, s.hub, topic, event.NavigationData{From: old, To: next, Direction: direction, Context: c})
		}
		if direction == model.DirectionSkip {
			event.Publish(ctx, s.hub, event.StepSkipped, event.StepSkippedData{Step: old, Target: next, Context: c})
		}
	}
	s.logger.InfoContext(ctx, "step transition",
		slog.String(logkeys.FlowID, s.session.ID),
		slog.String(logkeys.Direction, string(direction)),
		slog.String(logkeys.FromStepID, stepIDOf(old)),
		slog.String(logkeys.ToStepID, stepIDOf(next)))

	if next != nil {
		s.activate(ctx, direction, old, next)
	} else {
		s.finish(ctx, direction)
	}

	if s.hooks.OnStepChange != nil {
		if err := safeCall(func() error { return s.hooks.OnStepChange(ctx, next, old, c) }); err != nil {
			s.hookFailed(ctx, model.HookStepChange, stepIDOf(next), err)
		}
	}
	event.Publish(ctx, s.hub, event.StepChange, event.StepChangeData{NewStep: next, OldStep: old, Context: c})

	flags := s.store.Flags()
	s.gateway.PersistIfNeeded(ctx, c, stepIDOf(next), flags.Hydrating)
}

func (s *Service) activate(ctx context.Context, direction model.Direction, old, next *model.Step) {
	now := s.clock.Now()
	s.session.Update(func(c *model.Context) { c.MarkStarted(next.ID, now) })
	s.checklist.Init(s.session, next)
	if old != nil {
		if direction == model.DirectionPrevious {
			s.session.PopHistoryIf(next.ID)
		} else if old.ID != next.ID {
			s.session.PushHistory(old.ID)
		}
	}
	s.session.SetCurrent(next)
	s.store.SetState(ctx, func(f *state.Flags) { f.Completed = false })

	c := s.session.Context()
	if next.OnStepActive != nil {
		if err := safeCall(func() error { return next.OnStepActive(ctx, c) }); err != nil {
			s.hookFailed(ctx, model.HookStepActive, next.ID, err)
		}
	}
	event.Publish(ctx, s.hub, event.StepActive, event.StepData{Step: next, Context: c})
	if direction == model.DirectionInitial {
		event.Publish(ctx, s.hub, event.FlowStarted, event.StepData{Step: next, Context: c})
	}
}

func (s *Service) finish(ctx context.Context, direction model.Direction) {
	var duration time.Duration
	s.session.Update(func(c *model.Context) { duration = c.Complete(s.clock.Now()) })
	s.session.SetCurrent(nil)
	s.session.ClearHistory()
	s.store.SetState(ctx, func(f *state.Flags) { f.Completed = true })

	c := s.session.Context()
	if direction != model.DirectionInitial && s.flowCompleted.CompareAndSwap(false, true) {
		if s.hooks.OnFlowComplete != nil {
			if err := safeCall(func() error { return s.hooks.OnFlowComplete(ctx, c) }); err != nil {
				s.hookFailed(ctx, model.HookFlowComplete, "", err)
			}
		}
		s.logger.InfoContext(ctx, "flow completed", slog.String(logkeys.FlowID, s.session.ID), slog.Duration(logkeys.Duration, duration))
		event.Publish(ctx, s.hub, event.FlowCompleted, event.FlowCompletedData{Context: c, Duration: duration})
	}
}

func (s *Service) hookFailed(ctx context.Context, hook model.HookKind, stepID string, err error) {
	s.logger.WarnContext(ctx, "hook failed", slog.String(logkeys.Hook, string(hook)), slog.String(logkeys.StepID, stepID), slog.Any(logkeys.Error, err))
	s.store.Fail(ctx, stepID, model.NewHookError(hook, stepID, err))
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewPanicError(r)
		}
	}()
	return fn()
}

func stepIDOf(step *model.Step) string {
	if step == nil {
		return ""
	}
	return step.ID
}
