// Package logkeys defines structured log attribute keys shared by the engine.
package logkeys

const (
	FlowID      = "onboard.flow.id"
	StepID      = "onboard.step.id"
	FromStepID  = "onboard.step.from"
	ToStepID    = "onboard.step.to"
	Direction   = "onboard.direction"
	EventType   = "onboard.event"
	ItemID      = "onboard.checklist.item"
	Hook        = "onboard.hook"
	Duration    = "onboard.duration"
	Subscriber  = "onboard.subscriber"
	Diff        = "onboard.diff"
	Error       = "error"
	Backend     = "onboard.store.backend"
	SnapshotKey = "onboard.snapshot.key"
)
