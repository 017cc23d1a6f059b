package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/checklist"
	"github.com/viant/onboard/service/event"
	"github.com/viant/onboard/service/persistence"
	"github.com/viant/onboard/service/state"
	"github.com/viant/onboard/service/transition"
)

type fixture struct {
	service *Service
	session *model.Session
	hub     *event.Hub
	clock   *clock.Mock
	saved   []string
	counts  map[string]int
}

func newFixture(steps []*model.Step, hooks Hooks) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ret := &fixture{
		clock:  clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		counts: map[string]int{},
	}
	ret.session = model.NewSession("flow-1", steps, "", nil)
	ret.hub = event.New(event.WithLogger(logger), event.WithClock(ret.clock), event.WithFlowID("flow-1"))
	resolver := transition.New(0)
	store := state.New(ret.session, resolver, ret.hub, logger)
	gateway := persistence.New(persistence.Callbacks{
		Save: func(ctx context.Context, c *model.Context, stepID string) error {
			ret.saved = append(ret.saved, stepID)
			return nil
		},
	}, ret.hub, ret.clock, logger)
	event.OnAny(ret.hub, func(ctx context.Context, e *event.Event[any]) error {
		ret.counts[e.Context.EventType]++
		return nil
	})
	ret.service = New(ret.session, store, resolver, checklist.New(ret.hub, logger), gateway, ret.hub,
		WithHooks(hooks), WithClock(ret.clock), WithLogger(logger))
	return ret
}

func (f *fixture) currentID() string {
	return stepIDOf(f.session.Current())
}

func (f *fixture) err() error {
	return f.service.store.Flags().Err
}

func linear(ids ...string) []*model.Step {
	var ret []*model.Step
	for i, id := range ids {
		step := model.NewStep(id, model.StepInformation)
		if i+1 < len(ids) {
			step.WithNext(ids[i+1])
		}
		ret = append(ret, step)
	}
	return ret
}

func TestService_Scenario(t *testing.T) {
	completions := 0
	f := newFixture(linear("S1", "S2", "S3"), Hooks{
		OnFlowComplete: func(ctx context.Context, c *model.Context) error {
			completions++
			return nil
		},
	})
	ctx := context.Background()

	assert.Equal(t, "S1", f.service.Start(ctx, "").ID)
	assert.Equal(t, "S2", f.service.Next(ctx, nil).ID)
	assert.Equal(t, "S1", f.service.Previous(ctx).ID)
	assert.Equal(t, "S3", f.service.GoTo(ctx, "S3", nil).ID)
	assert.Nil(t, f.service.Next(ctx, nil))
	assert.True(t, f.service.store.Flags().Completed)
	assert.Equal(t, 1, completions)
	assert.Empty(t, f.session.History())

	assert.Nil(t, f.service.Next(ctx, nil))
	assert.Equal(t, 1, completions)
	assert.Equal(t, 1, f.counts["flowCompleted"])
	assert.Equal(t, 1, f.counts["flowStarted"])
	assert.Equal(t, 1, f.counts["navigationBack"])
	assert.Equal(t, 2, f.counts["navigationForward"])
	assert.Equal(t, 1, f.counts["navigationJump"])
	assert.Equal(t, []string{"S1", "S2", "S1", "S3", ""}, f.saved)
	assert.NotNil(t, f.session.Context().Internal.CompletedAt)
}

func TestService_History(t *testing.T) {
	var testCases = []struct {
		name     string
		navigate func(ctx context.Context, s *Service)
		expect   string
		history  []string
	}{
		{
			name: "forward then back to start",
			navigate: func(ctx context.Context, s *Service) {
				s.Next(ctx, nil)
				s.Next(ctx, nil)
				s.Previous(ctx)
				s.Previous(ctx)
				s.Previous(ctx)
			},
			expect:  "A",
			history: []string{},
		},
		{
			name: "jump records departed step",
			navigate: func(ctx context.Context, s *Service) {
				s.GoTo(ctx, "D", nil)
			},
			expect:  "D",
			history: []string{"A"},
		},
		{
			name: "previous after jump returns to origin",
			navigate: func(ctx context.Context, s *Service) {
				s.Next(ctx, nil)
				s.GoTo(ctx, "D", nil)
				s.Previous(ctx)
			},
			expect:  "B",
			history: []string{"A"},
		},
	}
	for _, testCase := range testCases {
		f := newFixture(linear("A", "B", "C", "D"), Hooks{})
		ctx := context.Background()
		f.service.Start(ctx, "")
		testCase.navigate(ctx, f.service)
		assert.Equal(t, testCase.expect, f.currentID(), testCase.name)
		assert.Equal(t, testCase.history, f.session.History(), testCase.name)
	}
}

func TestService_Gate(t *testing.T) {
	var testCases = []struct {
		name      string
		decisions []event.Decision
		expect    string
		moved     bool
	}{
		{name: "continue", decisions: []event.Decision{event.Continue}, expect: "b", moved: true},
		{name: "cancel", decisions: []event.Decision{event.Cancel}, expect: "a"},
		{name: "redirect", decisions: []event.Decision{event.RedirectTo("d")}, expect: "d", moved: true},
		{name: "last redirect wins", decisions: []event.Decision{event.RedirectTo("d"), event.RedirectTo("c")}, expect: "c", moved: true},
		{name: "cancel wins over redirect", decisions: []event.Decision{event.RedirectTo("d"), event.Cancel}, expect: "a"},
	}
	for _, testCase := range testCases {
		f := newFixture(linear("a", "b", "c", "d"), Hooks{})
		ctx := context.Background()
		f.service.Start(ctx, "")
		for _, decision := range testCase.decisions {
			decision := decision
			event.OnGuard(f.hub, event.BeforeStepChange, func(ctx context.Context, e *event.Event[event.BeforeStepChangeData]) (event.Decision, error) {
				return decision, nil
			})
		}
		stepChanges := f.counts["stepChange"]
		actual := f.service.Next(ctx, nil)
		assert.Equal(t, testCase.expect, actual.ID, testCase.name)
		assert.Equal(t, testCase.expect, f.currentID(), testCase.name)
		if testCase.moved {
			assert.Equal(t, stepChanges+1, f.counts["stepChange"], testCase.name)
			assert.Equal(t, 1, f.counts["navigationForward"], testCase.name)
		} else {
			assert.Equal(t, stepChanges, f.counts["stepChange"], testCase.name)
			assert.Equal(t, 0, f.counts["navigationForward"], testCase.name)
		}
		assert.False(t, f.service.store.Flags().Loading, testCase.name)
	}
}

func TestService_NonReentrant(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	steps := linear("a", "b", "c")
	steps[0].WithOnComplete(func(ctx context.Context, stepData map[string]interface{}, c *model.Context) error {
		close(entered)
		<-release
		return nil
	})
	f := newFixture(steps, Hooks{})
	ctx := context.Background()
	f.service.Start(ctx, "")

	done := make(chan *model.Step)
	go func() {
		done <- f.service.Next(ctx, nil)
	}()
	<-entered
	assert.Equal(t, "a", f.service.Next(ctx, nil).ID)
	assert.Equal(t, "a", f.service.GoTo(ctx, "c", nil).ID)
	close(release)
	first := <-done
	require.NotNil(t, first)
	assert.Equal(t, "b", first.ID)
	assert.Equal(t, "b", f.currentID())
	assert.False(t, f.service.store.Flags().Loading)
}

func TestService_Checklist(t *testing.T) {
	steps := []*model.Step{
		model.NewStep("list", model.StepChecklist).WithNext("done").WithPayload(&model.ChecklistPayload{
			Items: []*model.ChecklistItem{{ID: "x"}, {ID: "y", IsMandatory: model.Bool(false)}},
		}),
		model.NewStep("done", model.StepConfirmation),
	}
	f := newFixture(steps, Hooks{})
	ctx := context.Background()
	f.service.Start(ctx, "")

	assert.Equal(t, "list", f.service.Next(ctx, nil).ID)
	incomplete := &model.ChecklistIncompleteError{}
	assert.True(t, errors.As(f.err(), &incomplete))
	assert.Equal(t, 1, f.counts["error"])

	f.service.checklist.UpdateItem(ctx, f.session, steps[0], "x", true)
	assert.Equal(t, "done", f.service.Next(ctx, map[string]interface{}{"agreed": true}).ID)
	assert.Nil(t, f.err())
	assert.True(t, f.session.Context().IsCompleted("list"))
	assert.Equal(t, true, f.session.Context().FlowData["agreed"])
	assert.Equal(t, 1, f.counts["stepCompleted"])
}

func TestService_Hooks(t *testing.T) {
	failure := errors.New("boom")
	var testCases = []struct {
		name  string
		steps func() []*model.Step
		hooks Hooks
		hook  model.HookKind
		panic bool
	}{
		{
			name: "active hook error",
			steps: func() []*model.Step {
				ret := linear("a", "b")
				ret[1].WithOnActive(func(ctx context.Context, c *model.Context) error { return failure })
				return ret
			},
			hook: model.HookStepActive,
		},
		{
			name: "complete hook error",
			steps: func() []*model.Step {
				ret := linear("a", "b")
				ret[0].WithOnComplete(func(ctx context.Context, stepData map[string]interface{}, c *model.Context) error { return failure })
				return ret
			},
			hook: model.HookStepComplete,
		},
		{
			name:  "step change panic",
			steps: func() []*model.Step { return linear("a", "b") },
			hooks: Hooks{OnStepChange: func(ctx context.Context, newStep, oldStep *model.Step, c *model.Context) error {
				if oldStep != nil {
					panic("listener exploded")
				}
				return nil
			}},
			hook:  model.HookStepChange,
			panic: true,
		},
	}
	for _, testCase := range testCases {
		f := newFixture(testCase.steps(), testCase.hooks)
		ctx := context.Background()
		f.service.Start(ctx, "")
		actual := f.service.Next(ctx, nil)
		assert.Equal(t, "b", actual.ID, testCase.name)
		hookErr := &model.HookError{}
		if assert.True(t, errors.As(f.err(), &hookErr), testCase.name) {
			assert.Equal(t, testCase.hook, hookErr.Hook, testCase.name)
			assert.NotEmpty(t, hookErr.Stack, testCase.name)
		}
		panicErr := &model.PanicError{}
		assert.Equal(t, testCase.panic, errors.As(f.err(), &panicErr), testCase.name)
		assert.Equal(t, 2, f.counts["stepChange"], testCase.name)
	}
}

func TestService_Skip(t *testing.T) {
	steps := []*model.Step{
		model.NewStep("a", model.StepInformation).WithSkipTo("c"),
		model.NewStep("b", model.StepInformation),
		model.NewStep("c", model.StepInformation),
	}
	f := newFixture(steps, Hooks{})
	ctx := context.Background()
	f.service.Start(ctx, "")

	assert.Equal(t, "c", f.service.Skip(ctx).ID)
	assert.Equal(t, 1, f.counts["stepSkipped"])
	assert.Equal(t, []string{"a"}, f.session.History())
	assert.False(t, f.session.Context().IsCompleted("a"))

	assert.Equal(t, "c", f.service.Skip(ctx).ID, "not skippable")
	assert.Equal(t, 1, f.counts["stepSkipped"])
}

func TestService_Resolution(t *testing.T) {
	hidden := func(c *model.Context) bool { return false }
	var testCases = []struct {
		name     string
		steps    func() []*model.Step
		navigate func(ctx context.Context, s *Service) *model.Step
		expect   string
		unknown  bool
	}{
		{
			name: "hidden step is traversed",
			steps: func() []*model.Step {
				ret := linear("a", "b", "c")
				ret[1].WithCondition(hidden)
				return ret
			},
			navigate: func(ctx context.Context, s *Service) *model.Step { return s.Next(ctx, nil) },
			expect:   "c",
		},
		{
			name: "dynamic edge reads step data",
			steps: func() []*model.Step {
				ret := linear("a", "b", "c")
				ret[0].WithNextRef(model.Dynamic(func(c *model.Context) model.Target {
					if v, _ := c.Get("role"); v == "admin" {
						return model.StepTarget("c")
					}
					return model.NoTarget
				}))
				return ret
			},
			navigate: func(ctx context.Context, s *Service) *model.Step {
				return s.Next(ctx, map[string]interface{}{"role": "admin"})
			},
			expect: "c",
		},
		{
			name:     "unknown goto target",
			steps:    func() []*model.Step { return linear("a", "b") },
			navigate: func(ctx context.Context, s *Service) *model.Step { return s.GoTo(ctx, "zzz", nil) },
			expect:   "a",
			unknown:  true,
		},
		{
			name: "previous without candidate is a no-op",
			steps: func() []*model.Step {
				return linear("a", "b")
			},
			navigate: func(ctx context.Context, s *Service) *model.Step { return s.Previous(ctx) },
			expect:   "a",
		},
		{
			name: "explicit end completes the flow",
			steps: func() []*model.Step {
				ret := linear("a", "b")
				ret[0].WithNextRef(model.End)
				return ret
			},
			navigate: func(ctx context.Context, s *Service) *model.Step { return s.Next(ctx, nil) },
		},
	}
	for _, testCase := range testCases {
		f := newFixture(testCase.steps(), Hooks{})
		ctx := context.Background()
		f.service.Start(ctx, "")
		actual := testCase.navigate(ctx, f.service)
		assert.Equal(t, testCase.expect, stepIDOf(actual), testCase.name)
		assert.Equal(t, testCase.expect, f.currentID(), testCase.name)
		if !testCase.unknown {
			assert.Nil(t, f.err(), testCase.name)
			continue
		}
		unknown := &model.UnknownStepError{}
		assert.ErrorAs(t, f.err(), &unknown, testCase.name)
	}
}

func TestService_Hydrating(t *testing.T) {
	f := newFixture(linear("a", "b"), Hooks{})
	ctx := context.Background()
	f.service.store.SetState(ctx, func(flags *state.Flags) { flags.Hydrating = true })
	assert.Equal(t, "a", f.service.Start(ctx, "").ID)
	assert.Empty(t, f.saved)
	assert.Equal(t, "a", f.service.Next(ctx, nil).ID, "rejected while hydrating")

	f.service.store.SetState(ctx, func(flags *state.Flags) { flags.Hydrating = false })
	assert.Equal(t, "b", f.service.Next(ctx, nil).ID)
	assert.Equal(t, []string{"b"}, f.saved)
}

func TestService_PreviousPastHiddenStep(t *testing.T) {
	steps := linear("a", "b", "c")
	steps[1].WithCondition(func(c *model.Context) bool {
		v, _ := c.Get("hideB")
		return v != true
	})
	f := newFixture(steps, Hooks{})
	ctx := context.Background()
	f.service.Start(ctx, "")
	f.service.Next(ctx, nil)
	f.service.Next(ctx, nil)
	require.Equal(t, []string{"a", "b"}, f.session.History())
	f.service.store.UpdateContext(ctx, map[string]interface{}{"hideB": true})

	assert.Equal(t, "a", f.service.Previous(ctx).ID)
	assert.Empty(t, f.session.History())
	assert.False(t, f.service.store.Snapshot().CanGoPrevious)

	stepChanges := f.counts["stepChange"]
	assert.Equal(t, "a", f.service.Previous(ctx).ID)
	assert.Equal(t, stepChanges, f.counts["stepChange"])
	assert.Empty(t, f.session.History())
}
