// Package orchestrator runs step transitions of a flow.
//
// A transition acquires the loading gate, offers the requested move to
// before-change listeners, resolves and traverses the target, activates the
// new step (or completes the flow), calls caller hooks, persists and finally
// releases the gate. Hook failures never abort a transition; they are stored
// as the engine error and published on the error topic.
package orchestrator
