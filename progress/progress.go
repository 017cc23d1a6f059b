// Package progress keeps aggregated navigation counters for a single flow
// (steps activated, completed, skipped, moves per direction, failures). The
// tracker is fed by the engine event hub, so every transition is counted
// without the orchestrator knowing about it.

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/onboard/service/event"
)

// Delta represents an incremental counter change.
type Delta struct {
	Activated     int
	Completed     int
	Skipped       int
	Back          int
	Forward       int
	Jump          int
	Errors        int
	Persisted     int
	PersistFailed int
}

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	// Identification, informative only.
	FlowID    string
	StartedAt time.Time

	ActivatedSteps int
	CompletedSteps int
	SkippedSteps   int
	BackMoves      int
	ForwardMoves   int
	Jumps          int
	Errors         int
	Persisted      int
	PersistFailed  int
	FlowCompleted  bool
}

// Progress keeps aggregated counters for one flow. It is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	snapshot Snapshot
	onChange func(Snapshot)
}

// New creates a tracker for flowID.
func New(flowID string, startedAt time.Time) *Progress {
	return &Progress{snapshot: Snapshot{FlowID: flowID, StartedAt: startedAt}}
}

// Update applies the supplied delta. If an onChange callback has been
// registered it is invoked with a copy of the counters outside the critical
// section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	s := &p.snapshot
	s.ActivatedSteps += d.Activated
	s.CompletedSteps += d.Completed
	s.SkippedSteps += d.Skipped
	s.BackMoves += d.Back
	s.ForwardMoves += d.Forward
	s.Jumps += d.Jump
	s.Errors += d.Errors
	s.Persisted += d.Persisted
	s.PersistFailed += d.PersistFailed
	snapshot := *s
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (p *Progress) markCompleted(completed bool) {
	p.mu.Lock()
	p.snapshot.FlowCompleted = completed
	snapshot := p.snapshot
	cb := p.onChange
	p.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// Reset zeroes the counters and restarts the clock.
func (p *Progress) Reset(startedAt time.Time) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.snapshot = Snapshot{FlowID: p.snapshot.FlowID, StartedAt: startedAt}
	p.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// OnChange registers a callback invoked after every update. Passing nil
// disables it; only one callback is active at a time.
func (p *Progress) OnChange(cb func(Snapshot)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

// ----------------------------------------------------------------------------
// Event wiring
// ----------------------------------------------------------------------------

// Track subscribes p to the navigation events of hub and returns a function
// removing the subscriptions.
func Track(hub *event.Hub, p *Progress) func() {
	count := func(d Delta) func() {
		return func() { p.Update(d) }
	}
	unsubscribe := []func(){
		on(hub, event.StepActive, count(Delta{Activated: 1})),
		on(hub, event.StepCompleted, count(Delta{Completed: 1})),
		on(hub, event.StepSkipped, count(Delta{Skipped: 1})),
		on(hub, event.NavigationBack, count(Delta{Back: 1})),
		on(hub, event.NavigationForward, count(Delta{Forward: 1})),
		on(hub, event.NavigationJump, count(Delta{Jump: 1})),
		on(hub, event.Error, count(Delta{Errors: 1})),
		on(hub, event.PersistenceSuccess, count(Delta{Persisted: 1})),
		on(hub, event.PersistenceFailure, count(Delta{PersistFailed: 1})),
		on(hub, event.FlowCompleted, func() { p.markCompleted(true) }),
	}
	return func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}
}

func on[T any](hub *event.Hub, topic event.Topic[T], fn func()) func() {
	return event.On(hub, topic, func(context.Context, *event.Event[T]) error {
		fn()
		return nil
	})
}
