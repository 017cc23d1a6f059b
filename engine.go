package onboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/internal/idgen"
	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/model/graph"
	"github.com/viant/onboard/progress"
	"github.com/viant/onboard/runtime/orchestrator"
	"github.com/viant/onboard/service/checklist"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/event"
	"github.com/viant/onboard/service/persistence"
	"github.com/viant/onboard/service/state"
	"github.com/viant/onboard/service/transition"
	"github.com/viant/onboard/tracing"
)

// ErrBusy is returned by Reset while a transition or hydration is in flight.
var ErrBusy = errors.New("onboard: engine is busy")

// Engine guides a user through a flow of steps.
type Engine struct {
	steps       []*model.Step
	initialStep string
	initialData map[string]interface{}
	callbacks   persistence.Callbacks
	snapshots   dao.Service[string, model.Snapshot]
	snapshotKey string
	ownsStore   bool
	hooks       orchestrator.Hooks
	logger      *slog.Logger
	clock       clock.Clock
	config      *Config
	onProgress  func(progress.Snapshot)
	initErrors  []error

	// subscriptions run against the hub before hydration starts.
	subscriptions []func(hub *event.Hub)

	hub          *event.Hub
	session      *model.Session
	resolver     *transition.Resolver
	states       *state.Store
	checklist    *checklist.Policy
	gateway      *persistence.Gateway
	orchestrator *orchestrator.Service
	progress     *progress.Progress
	ready        chan struct{}
}

// New validates steps, creates an engine and starts hydrating it in the
// background. Navigation is rejected until Ready returns. Hydration runs the
// initial transition, so listeners added after New returns may miss it; use
// WithSubscription or WithBeforeStepChange to observe it.
func New(ctx context.Context, steps []*model.Step, opts ...Option) (*Engine, error) {
	ret := &Engine{steps: steps}
	for _, opt := range opts {
		opt(ret)
	}
	if err := errors.Join(ret.initErrors...); err != nil {
		return nil, err
	}
	if ret.config == nil {
		ret.config = DefaultConfig()
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if ret.initialStep == "" {
		ret.initialStep = ret.config.Engine.InitialStep
	}
	if err := graph.Validate(ret.steps, ret.initialStep); err != nil {
		return nil, err
	}
	if ret.logger == nil {
		ret.logger = defaultLogger(ret.config.Engine.Debug)
	}
	ret.clock = clock.Or(ret.clock)
	if err := ret.initTracing(); err != nil {
		return nil, err
	}
	if err := ret.initStore(ctx); err != nil {
		return nil, err
	}

	flowID := idgen.New()
	ret.hub = event.New(event.WithLogger(ret.logger), event.WithClock(ret.clock), event.WithFlowID(flowID))
	ret.session = model.NewSession(flowID, ret.steps, ret.initialStep, model.NewContext(ret.initialData))
	ret.resolver = transition.New(ret.config.Engine.MaxTraversal)
	ret.states = state.New(ret.session, ret.resolver, ret.hub, ret.logger)
	ret.checklist = checklist.New(ret.hub, ret.logger)
	ret.progress = progress.New(flowID, ret.clock.Now())
	ret.progress.OnChange(ret.onProgress)
	progress.Track(ret.hub, ret.progress)
	for _, subscribe := range ret.subscriptions {
		subscribe(ret.hub)
	}
	ret.wire()

	ret.states.SetState(ctx, func(f *state.Flags) {
		f.Hydrating = true
		f.Loading = true
	})
	ret.ready = make(chan struct{})
	go ret.hydrate(context.WithoutCancel(ctx))
	return ret, nil
}

func defaultLogger(debug bool) *slog.Logger {
	if !debug {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (e *Engine) initTracing() error {
	cfg := e.config.Tracing
	if !cfg.Enabled {
		return nil
	}
	return tracing.Init(cfg.ServiceName, cfg.ServiceVersion, cfg.Output)
}

func (e *Engine) initStore(ctx context.Context) error {
	if e.snapshotKey == "" {
		e.snapshotKey = e.config.snapshotKey()
	}
	if e.snapshots != nil {
		return nil
	}
	snapshots, err := NewStore(ctx, e.config.Persistence, e.logger)
	if err != nil {
		return err
	}
	e.snapshots = snapshots
	e.ownsStore = snapshots != nil
	return nil
}

// wire builds the services depending on caller callbacks.
func (e *Engine) wire() {
	fired := e.orchestrator != nil && e.orchestrator.FlowCompleted()
	e.gateway = persistence.New(e.persistenceCallbacks(), e.hub, e.clock, e.logger)
	e.orchestrator = orchestrator.New(e.session, e.states, e.resolver, e.checklist, e.gateway, e.hub,
		orchestrator.WithHooks(e.hooks),
		orchestrator.WithClock(e.clock),
		orchestrator.WithLogger(e.logger))
	e.orchestrator.SetFlowCompleted(fired)
}

func (e *Engine) persistenceCallbacks() persistence.Callbacks {
	ret := e.callbacks
	if e.snapshots == nil {
		return ret
	}
	fromStore := persistence.StoreCallbacks(e.snapshots, e.snapshotKey, e.clock)
	if ret.Load == nil {
		ret.Load = fromStore.Load
	}
	if ret.Save == nil {
		ret.Save = fromStore.Save
	}
	if ret.Clear == nil {
		ret.Clear = fromStore.Clear
	}
	return ret
}

func (e *Engine) hydrate(ctx context.Context) {
	defer close(e.ready)
	result := e.gateway.Load(ctx)
	if result.Err != nil {
		e.states.Fail(ctx, "", result.Err)
	}
	stepID := ""
	if data := result.Data; data != nil {
		e.restore(data)
		if data.IsCompleted() {
			e.orchestrator.SetFlowCompleted(true)
			e.states.SetState(ctx, func(f *state.Flags) {
				f.Completed = true
				f.Hydrating = false
				f.Loading = false
			})
			e.logger.InfoContext(ctx, "restored completed flow", slog.String(logkeys.FlowID, e.session.ID))
			return
		}
		stepID = data.CurrentStepID
		if stepID != "" && graph.Find(e.session.Steps(), stepID) == nil {
			e.logger.WarnContext(ctx, "persisted step not found, starting over", slog.String(logkeys.FlowID, e.session.ID), slog.String(logkeys.StepID, stepID))
			stepID = ""
		}
	}
	e.orchestrator.Start(ctx, stepID)
	e.states.SetState(ctx, func(f *state.Flags) {
		f.Hydrating = false
		f.Loading = false
	})
}

// restore merges persisted data into the session context. Loaded values win
// unless they are nil or an empty string.
func (e *Engine) restore(data *model.Snapshot) {
	e.session.Update(func(c *model.Context) {
		for k, v := range data.FlowData {
			if v == nil || v == "" {
				continue
			}
			c.Set(k, v)
		}
		if data.Internal != nil {
			c.Internal = (&model.Context{Internal: *data.Internal}).Clone().Internal
		}
	})
}

// Ready blocks until hydration settled or ctx is done.
func (e *Engine) Ready(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next completes the current step with stepData and moves forward. It
// returns the resulting current step; nil means the flow is completed.
func (e *Engine) Next(ctx context.Context, stepData map[string]interface{}) *model.Step {
	return e.orchestrator.Next(ctx, stepData)
}

// Previous moves back.
func (e *Engine) Previous(ctx context.Context) *model.Step {
	return e.orchestrator.Previous(ctx)
}

// Skip leaves a skippable step without completing it.
func (e *Engine) Skip(ctx context.Context) *model.Step {
	return e.orchestrator.Skip(ctx)
}

// GoToStep jumps to stepID.
func (e *Engine) GoToStep(ctx context.Context, stepID string, stepData map[string]interface{}) *model.Step {
	return e.orchestrator.GoTo(ctx, stepID, stepData)
}

// UpdateContext merges partial into the flow data and persists when it changed.
func (e *Engine) UpdateContext(ctx context.Context, partial map[string]interface{}) {
	if !e.states.UpdateContext(ctx, partial) {
		return
	}
	e.persist(ctx)
}

// UpdateChecklistItem sets the completion of itemID on the checklist step
// stepID, or on the current step when stepID is empty.
func (e *Engine) UpdateChecklistItem(ctx context.Context, itemID string, completed bool, stepID string) {
	step := e.session.Current()
	if stepID != "" {
		step = graph.Find(e.session.Steps(), stepID)
	}
	if step == nil {
		e.logger.WarnContext(ctx, "checklist step not found", slog.String(logkeys.FlowID, e.session.ID), slog.String(logkeys.StepID, stepID), slog.String(logkeys.ItemID, itemID))
		return
	}
	if e.checklist.UpdateItem(ctx, e.session, step, itemID, completed) {
		e.persist(ctx)
	}
	e.states.Notify(ctx)
}

func (e *Engine) persist(ctx context.Context) {
	current := e.session.Current()
	stepID := ""
	if current != nil {
		stepID = current.ID
	}
	e.gateway.PersistIfNeeded(ctx, e.session.Context(), stepID, e.states.Flags().Hydrating)
}

// State returns the derived state.
func (e *Engine) State() model.State {
	return e.states.Snapshot()
}

// Progress returns navigation counters of the current flow.
func (e *Engine) Progress() progress.Snapshot {
	return e.progress.Snapshot()
}

// Reset clears persisted data and starts the flow over. Options replace the
// corresponding configuration first. A failing clear callback is returned
// and leaves the flow and its configuration untouched.
func (e *Engine) Reset(ctx context.Context, opts ...Option) error {
	next := *e
	next.initErrors = nil
	for _, opt := range opts {
		opt(&next)
	}
	if err := errors.Join(next.initErrors...); err != nil {
		return err
	}
	if err := graph.Validate(next.steps, next.initialStep); err != nil {
		return err
	}
	if !e.states.Acquire(ctx) {
		return ErrBusy
	}
	clearing := persistence.New(next.persistenceCallbacks(), e.hub, e.clock, e.logger)
	if err := clearing.Clear(ctx); err != nil {
		e.states.Fail(ctx, e.currentStepID(), err)
		e.states.Release(ctx)
		return err
	}
	e.steps, e.initialStep, e.initialData = next.steps, next.initialStep, next.initialData
	e.callbacks, e.hooks, e.onProgress = next.callbacks, next.hooks, next.onProgress
	e.snapshots, e.snapshotKey = next.snapshots, next.snapshotKey
	for _, subscribe := range next.subscriptions[len(e.subscriptions):] {
		subscribe(e.hub)
	}
	e.subscriptions = next.subscriptions
	e.wire()
	e.session.Reset(e.steps, e.initialStep, model.NewContext(e.initialData))
	e.orchestrator.SetFlowCompleted(false)
	e.progress.Reset(e.clock.Now())
	e.progress.OnChange(e.onProgress)
	e.states.SetState(ctx, func(f *state.Flags) {
		f.Completed = false
		f.Err = nil
	})
	e.logger.InfoContext(ctx, "flow reset", slog.String(logkeys.FlowID, e.session.ID))
	e.orchestrator.Start(ctx, "")
	event.Publish(ctx, e.hub, event.FlowReset, event.FlowResetData{Context: e.session.Context()})
	return nil
}

func (e *Engine) currentStepID() string {
	if current := e.session.Current(); current != nil {
		return current.ID
	}
	return ""
}

// SubscribeToStateChange registers fn for every state change.
func (e *Engine) SubscribeToStateChange(fn func(state model.State)) func() {
	return event.On(e.hub, event.StateChange, func(ctx context.Context, ev *event.Event[model.State]) error {
		fn(ev.Data)
		return nil
	})
}

// OnBeforeStepChange registers a listener that may cancel or redirect transitions.
func (e *Engine) OnBeforeStepChange(fn event.GuardHandler[event.BeforeStepChangeData]) func() {
	return event.OnGuard(e.hub, event.BeforeStepChange, fn)
}

// AddStepChangeListener registers fn for settled transitions.
func (e *Engine) AddStepChangeListener(fn event.Handler[event.StepChangeData]) func() {
	return event.On(e.hub, event.StepChange, fn)
}

// AddFlowCompletedListener registers fn for flow completion.
func (e *Engine) AddFlowCompletedListener(fn event.Handler[event.FlowCompletedData]) func() {
	return event.On(e.hub, event.FlowCompleted, fn)
}

// Events returns the engine event hub for typed subscriptions with event.On.
func (e *Engine) Events() *event.Hub {
	return e.hub
}

// Close releases a snapshot store created from configuration.
func (e *Engine) Close() error {
	if !e.ownsStore {
		return nil
	}
	if closer, ok := e.snapshots.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
