package onboard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/onboard"
	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/event"
)

var startedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, steps []*model.Step, opts ...onboard.Option) *onboard.Engine {
	t.Helper()
	opts = append([]onboard.Option{
		onboard.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		onboard.WithClock(clock.NewMock(startedAt)),
	}, opts...)
	engine, err := onboard.New(context.Background(), steps, opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Ready(ctx))
	return engine
}

func linearSteps(ids ...string) []*model.Step {
	var ret []*model.Step
	for i, id := range ids {
		step := model.NewStep(id, model.StepInformation).WithTitle("Step " + id)
		if i+1 < len(ids) {
			step.WithNext(ids[i+1])
		}
		ret = append(ret, step)
	}
	return ret
}

func currentID(engine *onboard.Engine) string {
	state := engine.State()
	return state.CurrentStepID()
}

type recorder struct {
	mu    sync.Mutex
	saved []string
}

func (r *recorder) save(ctx context.Context, c *model.Context, stepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, stepID)
	return nil
}

func (r *recorder) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.saved...)
}

func TestEngine_LinearFlow(t *testing.T) {
	ctx := context.Background()
	completions := 0
	saves := &recorder{}
	engine := newEngine(t, linearSteps("S1", "S2", "S3"),
		onboard.WithPersistData(saves.save),
		onboard.WithOnFlowComplete(func(ctx context.Context, c *model.Context) error {
			completions++
			return nil
		}))

	state := engine.State()
	assert.Equal(t, "S1", state.CurrentStepID())
	assert.True(t, state.IsFirstStep)
	assert.False(t, state.CanGoPrevious)
	assert.True(t, state.CanGoNext)
	assert.Equal(t, 3, state.TotalSteps)
	assert.Equal(t, 1, state.CurrentStepNumber)

	assert.Equal(t, "S2", engine.Next(ctx, nil).ID)
	assert.Equal(t, "S1", engine.Previous(ctx).ID)
	assert.Equal(t, "S3", engine.GoToStep(ctx, "S3", nil).ID)
	state = engine.State()
	assert.True(t, state.IsLastStep)
	assert.Equal(t, 33, state.ProgressPercentage)

	assert.Nil(t, engine.Next(ctx, nil))
	state = engine.State()
	assert.True(t, state.IsCompleted)
	assert.Nil(t, state.CurrentStep)
	assert.Equal(t, 100, state.ProgressPercentage)
	assert.Equal(t, 1, completions)

	assert.Nil(t, engine.Next(ctx, nil))
	assert.Equal(t, 1, completions)
	assert.Equal(t, []string{"S2", "S1", "S3", ""}, saves.steps())

	progress := engine.Progress()
	assert.Equal(t, 4, progress.ActivatedSteps)
	assert.Equal(t, 2, progress.CompletedSteps)
	assert.Equal(t, 1, progress.BackMoves)
	assert.Equal(t, 2, progress.ForwardMoves)
	assert.Equal(t, 1, progress.Jumps)
	assert.Equal(t, 4, progress.Persisted)
	assert.True(t, progress.FlowCompleted)
}

func TestEngine_Checklist(t *testing.T) {
	payload := &model.ChecklistPayload{
		Items: []*model.ChecklistItem{
			{ID: "profile", Label: "Complete profile", IsMandatory: model.Bool(true)},
			{ID: "newsletter", Label: "Subscribe", IsMandatory: model.Bool(false)},
			{ID: "terms", Label: "Accept terms"},
		},
	}
	var testCases = []struct {
		name     string
		items    []string
		complete bool
	}{
		{name: "mandatory items", items: []string{"profile", "terms"}, complete: true},
		{name: "optional only", items: []string{"newsletter"}, complete: false},
		{name: "one mandatory missing", items: []string{"profile", "newsletter"}, complete: false},
	}
	for _, testCase := range testCases {
		ctx := context.Background()
		saves := &recorder{}
		steps := []*model.Step{
			model.NewStep("setup", model.StepChecklist).WithPayload(payload).WithNext("done"),
			model.NewStep("done", model.StepConfirmation),
		}
		engine := newEngine(t, steps, onboard.WithPersistData(saves.save))
		assert.False(t, engine.State().CanGoNext, testCase.name)

		for _, item := range testCase.items {
			engine.UpdateChecklistItem(ctx, item, true, "")
		}
		engine.UpdateChecklistItem(ctx, testCase.items[0], true, "setup")
		assert.Len(t, saves.steps(), len(testCase.items), testCase.name)
		assert.Equal(t, testCase.complete, engine.State().CanGoNext, testCase.name)

		next := engine.Next(ctx, nil)
		if !testCase.complete {
			assert.Equal(t, "setup", next.ID, testCase.name)
			incomplete := &model.ChecklistIncompleteError{}
			assert.ErrorAs(t, engine.State().Error, &incomplete, testCase.name)
			continue
		}
		assert.Equal(t, "done", next.ID, testCase.name)
		assert.Nil(t, engine.State().Error, testCase.name)
	}
}

func TestEngine_BeforeStepChange(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, linearSteps("a", "b", "c"))
	changes := 0
	engine.AddStepChangeListener(func(ctx context.Context, e *event.Event[event.StepChangeData]) error {
		changes++
		return nil
	})
	unsubscribe := engine.OnBeforeStepChange(func(ctx context.Context, e *event.Event[event.BeforeStepChangeData]) (event.Decision, error) {
		if e.Data.Direction == model.DirectionNext {
			return event.Cancel, nil
		}
		return event.Continue, nil
	})
	assert.Equal(t, "a", engine.Next(ctx, nil).ID)
	assert.Equal(t, 0, changes)

	unsubscribe()
	engine.OnBeforeStepChange(func(ctx context.Context, e *event.Event[event.BeforeStepChangeData]) (event.Decision, error) {
		return event.RedirectTo("c"), nil
	})
	assert.Equal(t, "c", engine.Next(ctx, nil).ID)
	assert.Equal(t, 1, changes)
}

func TestEngine_Hydration(t *testing.T) {
	completedAt := startedAt.Add(time.Hour)
	var testCases = []struct {
		name      string
		load      func(ctx context.Context) (*model.Snapshot, error)
		expect    string
		completed bool
		loadErr   bool
		flowData  map[string]interface{}
	}{
		{
			name:     "no data",
			load:     func(ctx context.Context) (*model.Snapshot, error) { return nil, nil },
			expect:   "a",
			flowData: map[string]interface{}{"name": "Ann", "role": "user"},
		},
		{
			name: "resume on persisted step",
			load: func(ctx context.Context) (*model.Snapshot, error) {
				return &model.Snapshot{CurrentStepID: "b", FlowData: map[string]interface{}{"name": "", "role": "admin", "team": nil}}, nil
			},
			expect:   "b",
			flowData: map[string]interface{}{"name": "Ann", "role": "admin"},
		},
		{
			name: "unknown persisted step",
			load: func(ctx context.Context) (*model.Snapshot, error) {
				return &model.Snapshot{CurrentStepID: "gone"}, nil
			},
			expect:   "a",
			flowData: map[string]interface{}{"name": "Ann", "role": "user"},
		},
		{
			name:     "load failure",
			load:     func(ctx context.Context) (*model.Snapshot, error) { return nil, errors.New("unavailable") },
			expect:   "a",
			loadErr:  true,
			flowData: map[string]interface{}{"name": "Ann", "role": "user"},
		},
		{
			name: "completed flow",
			load: func(ctx context.Context) (*model.Snapshot, error) {
				return &model.Snapshot{Internal: &model.Internal{StartedAt: &startedAt, CompletedAt: &completedAt}}, nil
			},
			completed: true,
			flowData:  map[string]interface{}{"name": "Ann", "role": "user"},
		},
	}
	for _, testCase := range testCases {
		saves := &recorder{}
		completions := 0
		engine := newEngine(t, linearSteps("a", "b", "c"),
			onboard.WithInitialContext(map[string]interface{}{"name": "Ann", "role": "user"}),
			onboard.WithLoadData(testCase.load),
			onboard.WithPersistData(saves.save),
			onboard.WithOnFlowComplete(func(ctx context.Context, c *model.Context) error {
				completions++
				return nil
			}))
		state := engine.State()
		assert.Equal(t, testCase.expect, state.CurrentStepID(), testCase.name)
		assert.Equal(t, testCase.completed, state.IsCompleted, testCase.name)
		assert.False(t, state.IsHydrating, testCase.name)
		assert.False(t, state.IsLoading, testCase.name)
		assert.Equal(t, testCase.flowData, state.Context.FlowData, testCase.name)
		assert.Empty(t, saves.steps(), testCase.name)
		if testCase.loadErr {
			loadErr := &model.LoadError{}
			assert.ErrorAs(t, state.Error, &loadErr, testCase.name)
		} else {
			assert.Nil(t, state.Error, testCase.name)
		}
		if testCase.completed {
			assert.Nil(t, engine.Next(context.Background(), nil), testCase.name)
			assert.Equal(t, 0, completions, testCase.name)
		}
	}
}

func TestEngine_RejectsWhileHydrating(t *testing.T) {
	release := make(chan struct{})
	engine, err := onboard.New(context.Background(), linearSteps("a", "b"),
		onboard.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		onboard.WithLoadData(func(ctx context.Context) (*model.Snapshot, error) {
			<-release
			return nil, nil
		}))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Nil(t, engine.Next(ctx, nil))
	assert.True(t, engine.State().IsHydrating)
	assert.ErrorIs(t, engine.Reset(ctx), onboard.ErrBusy)
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, engine.Ready(waitCtx), context.DeadlineExceeded)
	cancel()

	close(release)
	require.NoError(t, engine.Ready(ctx))
	assert.Equal(t, "b", engine.Next(ctx, nil).ID)
}

func TestEngine_UpdateContext(t *testing.T) {
	ctx := context.Background()
	saves := &recorder{}
	engine := newEngine(t, linearSteps("a", "b"), onboard.WithPersistData(saves.save))
	updates := 0
	event.On(engine.Events(), event.ContextUpdate, func(ctx context.Context, e *event.Event[event.ContextUpdateData]) error {
		updates++
		return nil
	})

	engine.UpdateContext(ctx, map[string]interface{}{"plan": "pro"})
	engine.UpdateContext(ctx, map[string]interface{}{"plan": "pro"})
	assert.Equal(t, 1, updates)
	assert.Equal(t, []string{"a"}, saves.steps())
	assert.Equal(t, "pro", engine.State().Context.FlowData["plan"])
}

func TestEngine_Reset(t *testing.T) {
	ctx := context.Background()
	completions := 0
	clearErr := errors.New("storage offline")
	failClear := true
	engine := newEngine(t, linearSteps("a", "b"),
		onboard.WithInitialContext(map[string]interface{}{"plan": "free"}),
		onboard.WithClearPersistedData(func(ctx context.Context) error {
			if failClear {
				return clearErr
			}
			return nil
		}),
		onboard.WithOnFlowComplete(func(ctx context.Context, c *model.Context) error {
			completions++
			return nil
		}))
	resets := 0
	event.On(engine.Events(), event.FlowReset, func(ctx context.Context, e *event.Event[event.FlowResetData]) error {
		resets++
		return nil
	})

	engine.UpdateContext(ctx, map[string]interface{}{"plan": "pro"})
	engine.Next(ctx, nil)
	assert.Nil(t, engine.Next(ctx, nil))
	assert.Equal(t, 1, completions)

	replaced := 0
	err := engine.Reset(ctx,
		onboard.WithSteps(linearSteps("x", "y")...),
		onboard.WithOnFlowComplete(func(ctx context.Context, c *model.Context) error {
			replaced++
			return nil
		}))
	assert.ErrorIs(t, err, clearErr)
	persistErr := &model.PersistenceError{}
	assert.ErrorAs(t, err, &persistErr)
	assert.True(t, engine.State().IsCompleted)
	assert.False(t, engine.State().IsLoading)
	assert.Equal(t, 0, resets)

	failClear = false
	require.NoError(t, engine.Reset(ctx, onboard.WithSteps(linearSteps("x", "y")...)))
	state := engine.State()
	assert.Equal(t, "x", state.CurrentStepID())
	assert.False(t, state.IsCompleted)
	assert.Nil(t, state.Error)
	assert.Empty(t, state.History)
	assert.Equal(t, "free", state.Context.FlowData["plan"])
	assert.Equal(t, 1, resets)

	engine.Next(ctx, nil)
	assert.Nil(t, engine.Next(ctx, nil))
	assert.Equal(t, 2, completions)
	assert.Equal(t, 0, replaced)

	assert.Error(t, engine.Reset(ctx, onboard.WithInitialStep("missing")))
}

func TestEngine_InitialTransitionListeners(t *testing.T) {
	var initial []string
	engine := newEngine(t, linearSteps("a", "b", "c"),
		onboard.WithBeforeStepChange(func(ctx context.Context, e *event.Event[event.BeforeStepChangeData]) (event.Decision, error) {
			if e.Data.Direction == model.DirectionInitial {
				return event.RedirectTo("b"), nil
			}
			return event.Continue, nil
		}),
		onboard.WithSubscription(func(hub *event.Hub) {
			event.On(hub, event.FlowStarted, func(ctx context.Context, e *event.Event[event.StepData]) error {
				initial = append(initial, e.Data.Step.ID)
				return nil
			})
		}))
	assert.Equal(t, "b", currentID(engine))
	assert.Equal(t, []string{"b"}, initial)
}

func TestEngine_Store(t *testing.T) {
	var testCases = []struct {
		name    string
		backend string
		url     func(dir string) string
	}{
		{name: "bolt", backend: onboard.BackendBolt, url: func(dir string) string { return filepath.Join(dir, "flows.db") }},
		{name: "sqlite", backend: onboard.BackendSQLite, url: func(dir string) string { return filepath.Join(dir, "flows.sqlite") }},
		{name: "fs", backend: onboard.BackendFS, url: func(dir string) string { return filepath.Join(dir, "flows") }},
	}
	for _, testCase := range testCases {
		ctx := context.Background()
		cfg := onboard.DefaultConfig()
		cfg.Persistence.Backend = testCase.backend
		cfg.Persistence.URL = testCase.url(t.TempDir())
		cfg.Persistence.Key = "user-1"

		first := newEngine(t, linearSteps("a", "b", "c"), onboard.WithConfig(cfg))
		first.UpdateContext(ctx, map[string]interface{}{"name": "Ann"})
		assert.Equal(t, "b", first.Next(ctx, nil).ID, testCase.name)
		require.NoError(t, first.Close(), testCase.name)

		second := newEngine(t, linearSteps("a", "b", "c"), onboard.WithConfig(cfg))
		state := second.State()
		assert.Equal(t, "b", state.CurrentStepID(), testCase.name)
		assert.Equal(t, "Ann", state.Context.FlowData["name"], testCase.name)
		assert.True(t, state.Context.IsCompleted("a"), testCase.name)
		assert.True(t, state.CanGoPrevious, testCase.name)
		require.NoError(t, second.Reset(ctx), testCase.name)
		require.NoError(t, second.Close(), testCase.name)
	}
}

func TestEngine_SharedMemoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := onboard.NewStore(ctx, onboard.PersistenceConfig{Backend: onboard.BackendMemory}, nil)
	require.NoError(t, err)

	first := newEngine(t, linearSteps("a", "b", "c"), onboard.WithStore(store, "user-2"))
	first.GoToStep(ctx, "c", map[string]interface{}{"skipTour": true})

	second := newEngine(t, linearSteps("a", "b", "c"), onboard.WithStore(store, "user-2"))
	assert.Equal(t, "c", currentID(second))
	assert.Equal(t, true, second.State().Context.FlowData["skipTour"])

	other := newEngine(t, linearSteps("a", "b", "c"), onboard.WithStore(store, "user-3"))
	assert.Equal(t, "a", currentID(other))
}

func TestNew_Validation(t *testing.T) {
	var testCases = []struct {
		name  string
		steps []*model.Step
		opts  []onboard.Option
	}{
		{name: "no steps"},
		{name: "duplicate ids", steps: []*model.Step{model.NewStep("a", model.StepInformation), model.NewStep("a", model.StepInformation)}},
		{name: "unknown literal edge", steps: []*model.Step{model.NewStep("a", model.StepInformation).WithNext("zzz")}},
		{name: "unknown initial step", steps: linearSteps("a"), opts: []onboard.Option{onboard.WithInitialStep("zzz")}},
		{name: "invalid config", steps: linearSteps("a"), opts: []onboard.Option{onboard.WithConfig(&onboard.Config{Persistence: onboard.PersistenceConfig{Backend: "redis"}})}},
	}
	for _, testCase := range testCases {
		_, err := onboard.New(context.Background(), testCase.steps, testCase.opts...)
		assert.Error(t, err, testCase.name)
	}
}
