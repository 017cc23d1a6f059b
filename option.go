package onboard

import (
	"log/slog"

	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/progress"
	"github.com/viant/onboard/runtime/orchestrator"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/event"
	"github.com/viant/onboard/service/persistence"
	"github.com/viant/onboard/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures an Engine. Options are applied by New and Reset.
type Option func(e *Engine)

// WithSteps replaces the step list
func WithSteps(steps ...*model.Step) Option {
	return func(e *Engine) {
		e.steps = steps
	}
}

// WithInitialStep sets the step a new flow starts on
func WithInitialStep(stepID string) Option {
	return func(e *Engine) {
		e.initialStep = stepID
	}
}

// WithInitialContext sets the flow data a new flow starts with
func WithInitialContext(flowData map[string]interface{}) Option {
	return func(e *Engine) {
		e.initialData = flowData
	}
}

// WithLoadData sets the callback loading persisted data during hydration
func WithLoadData(fn persistence.LoadFunc) Option {
	return func(e *Engine) {
		e.callbacks.Load = fn
	}
}

// WithPersistData sets the callback persisting the flow after every transition
func WithPersistData(fn persistence.SaveFunc) Option {
	return func(e *Engine) {
		e.callbacks.Save = fn
	}
}

// WithClearPersistedData sets the callback removing persisted data on reset
func WithClearPersistedData(fn persistence.ClearFunc) Option {
	return func(e *Engine) {
		e.callbacks.Clear = fn
	}
}

// WithStore persists the flow in store under key. Explicit callbacks take
// precedence over the ones derived from the store.
func WithStore(store dao.Service[string, model.Snapshot], key string) Option {
	return func(e *Engine) {
		e.snapshots = store
		e.snapshotKey = key
	}
}

// WithOnFlowComplete sets the callback invoked once when the flow completes
func WithOnFlowComplete(fn orchestrator.FlowCompleteFunc) Option {
	return func(e *Engine) {
		e.hooks.OnFlowComplete = fn
	}
}

// WithOnStepChange sets the callback invoked after every transition
func WithOnStepChange(fn orchestrator.StepChangeFunc) Option {
	return func(e *Engine) {
		e.hooks.OnStepChange = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the time source
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithConfig sets the engine configuration
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithProgressListener registers a callback receiving navigation counters
func WithProgressListener(fn func(progress.Snapshot)) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// WithSubscription registers listeners on the engine hub before hydration
// starts, so they observe the initial transition.
func WithSubscription(subscribe func(hub *event.Hub)) Option {
	return func(e *Engine) {
		e.subscriptions = append(e.subscriptions, subscribe)
	}
}

// WithBeforeStepChange registers a guard listener that also sees the initial transition
func WithBeforeStepChange(fn event.GuardHandler[event.BeforeStepChangeData]) Option {
	return WithSubscription(func(hub *event.Hub) {
		event.OnGuard(hub, event.BeforeStepChange, fn)
	})
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(e *Engine) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			e.initErrors = append(e.initErrors, err)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(e *Engine) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			e.initErrors = append(e.initErrors, err)
		}
	}
}
