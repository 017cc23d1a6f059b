package persistence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/dao"
	"github.com/viant/onboard/service/event"
)

type (
	// LoadFunc returns previously persisted data or nil when there is none.
	LoadFunc func(ctx context.Context) (*model.Snapshot, error)
	// SaveFunc persists the context positioned on stepID.
	SaveFunc func(ctx context.Context, c *model.Context, stepID string) error
	// ClearFunc removes persisted data.
	ClearFunc func(ctx context.Context) error

	// Callbacks are the caller supplied persistence hooks; each is optional.
	Callbacks struct {
		Load  LoadFunc
		Save  SaveFunc
		Clear ClearFunc
	}

	// LoadResult is the outcome of Load.
	LoadResult struct {
		Data *model.Snapshot
		Err  error
	}
)

// Gateway wraps the persistence callbacks, reporting failures through events.
type Gateway struct {
	callbacks Callbacks
	hub       *event.Hub
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a gateway.
func New(callbacks Callbacks, hub *event.Hub, c clock.Clock, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{callbacks: callbacks, hub: hub, clock: clock.Or(c), logger: logger}
}

// Load calls the load callback. It never fails; errors are returned in the result.
func (g *Gateway) Load(ctx context.Context) LoadResult {
	if g.callbacks.Load == nil {
		return LoadResult{}
	}
	data, err := call(func() (*model.Snapshot, error) { return g.callbacks.Load(ctx) })
	if err != nil {
		g.logger.WarnContext(ctx, "failed to load persisted data", slog.String(logkeys.FlowID, g.hub.FlowID()), slog.Any(logkeys.Error, err))
		return LoadResult{Err: &model.LoadError{Err: err}}
	}
	return LoadResult{Data: data}
}

// PersistIfNeeded saves c unless hydrating or no save callback is set. It
// reports whether a save succeeded; failures are published and swallowed.
func (g *Gateway) PersistIfNeeded(ctx context.Context, c *model.Context, stepID string, hydrating bool) bool {
	if hydrating || g.callbacks.Save == nil {
		return false
	}
	started := g.clock.Now()
	_, err := call(func() (struct{}, error) { return struct{}{}, g.callbacks.Save(ctx, c, stepID) })
	elapsed := g.clock.Since(started)
	if err != nil {
		err = &model.PersistenceError{Op: "save", Err: err}
		g.logger.WarnContext(ctx, "failed to persist flow", slog.String(logkeys.FlowID, g.hub.FlowID()), slog.String(logkeys.StepID, stepID), slog.Any(logkeys.Error, err))
		event.Publish(ctx, g.hub, event.PersistenceFailure, event.PersistenceData{StepID: stepID, Duration: elapsed, Err: err})
		return false
	}
	event.Publish(ctx, g.hub, event.PersistenceSuccess, event.PersistenceData{StepID: stepID, Duration: elapsed})
	return true
}

// Clear calls the clear callback and returns its failure.
func (g *Gateway) Clear(ctx context.Context) error {
	if g.callbacks.Clear == nil {
		return nil
	}
	_, err := call(func() (struct{}, error) { return struct{}{}, g.callbacks.Clear(ctx) })
	if err != nil {
		return &model.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

func call[T any](fn func() (T, error)) (ret T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewPanicError(r)
		}
	}()
	return fn()
}

// StoreCallbacks adapts a snapshot store to persistence callbacks bound to key.
func StoreCallbacks(store dao.Service[string, model.Snapshot], key string, c clock.Clock) Callbacks {
	c = clock.Or(c)
	return Callbacks{
		Load: func(ctx context.Context) (*model.Snapshot, error) {
			ret, err := store.Load(ctx, key)
			if errors.Is(err, dao.ErrNotFound) {
				return nil, nil
			}
			return ret, err
		},
		Save: func(ctx context.Context, flow *model.Context, stepID string) error {
			return store.Save(ctx, model.NewSnapshot(key, flow, stepID, c.Now()))
		},
		Clear: func(ctx context.Context) error {
			if err := store.Delete(ctx, key); err != nil && !errors.Is(err, dao.ErrNotFound) {
				return err
			}
			return nil
		},
	}
}
