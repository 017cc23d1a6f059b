package gate

import (
	"context"

	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/event"
)

// Result is the outcome of consulting before-change listeners.
type Result struct {
	Cancelled bool
	Target    model.Target
	// Err is the listener failure that cancelled the transition, if any.
	Err error
}

// Gate runs the before-change listener chain.
type Gate struct {
	hub *event.Hub
}

// New creates a gate over hub.
func New(hub *event.Hub) *Gate {
	return &Gate{hub: hub}
}

// Run offers the requested transition to listeners. Cancel wins over any
// redirect, the last redirect wins otherwise, and a failing listener
// cancels the transition.
func (g *Gate) Run(ctx context.Context, requested model.Target, direction model.Direction, current *model.Step, c *model.Context) Result {
	if g.hub == nil || g.hub.Count(event.BeforeStepChange.Name()) == 0 {
		return Result{Target: requested}
	}
	decisions, err := event.Decide(ctx, g.hub, event.BeforeStepChange, event.BeforeStepChangeData{
		CurrentStep: current,
		Target:      requested,
		Direction:   direction,
		Context:     c,
	})
	if err != nil {
		return Result{Cancelled: true, Target: requested, Err: err}
	}
	ret := Result{Target: requested}
	for _, decision := range decisions {
		switch decision.Kind {
		case event.DecisionCancel:
			ret.Cancelled = true
			return ret
		case event.DecisionRedirect:
			ret.Target = model.StepTarget(decision.StepID)
		}
	}
	return ret
}
