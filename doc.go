// Package onboard provides an embeddable engine guiding a user through a
// flow of onboarding steps.
//
// Steps are plain configuration: navigation edges may be literal step ids,
// an explicit end or functions of the flow context, and visibility is
// controlled by conditions. The engine keeps the current step, history and
// context, enforces checklist completion, consults before-change listeners
// and persists the flow through caller callbacks or a snapshot store:
//
//	engine, _ := onboard.New(ctx, steps, onboard.WithStore(store, "user-1"))
//	_ = engine.Ready(ctx)
//	engine.Next(ctx, map[string]interface{}{"role": "admin"})
//	state := engine.State()
//
// Navigation never returns an error; failures are reported through
// State().Error and the error topic of Events().
package onboard
