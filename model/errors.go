package model

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// HookKind names a caller supplied hook.
type HookKind string

const (
	HookStepActive   HookKind = "onStepActive"
	HookStepComplete HookKind = "onStepComplete"
	HookStepChange   HookKind = "onStepChange"
	HookFlowComplete HookKind = "onFlowComplete"
)

// ErrNoSteps is returned when an engine is created without steps.
var ErrNoSteps = errors.New("onboard: no steps defined")

// HookError wraps a failure raised by a step or flow hook.
type HookError struct {
	Hook   HookKind
	StepID string
	Err    error
	Stack  string
}

// NewHookError wraps err raised by hook while on stepID.
func NewHookError(hook HookKind, stepID string, err error) *HookError {
	ret := &HookError{Hook: hook, StepID: stepID, Err: err}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		ret.Stack = panicErr.Stack
	} else {
		ret.Stack = string(goerrors.New(err).Stack())
	}
	return ret
}

func (e *HookError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("%s hook failed: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("%s hook failed on step %s: %v", e.Hook, e.StepID, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// PanicError is a recovered panic raised by caller code.
type PanicError struct {
	Value interface{}
	Stack string
}

// NewPanicError captures the recovered value r with the current stack.
func NewPanicError(r interface{}) *PanicError {
	return &PanicError{Value: r, Stack: string(goerrors.Wrap(r, 2).Stack())}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// ChecklistIncompleteError refuses leaving a checklist step whose policy is not satisfied.
type ChecklistIncompleteError struct {
	StepID string
}

func (e *ChecklistIncompleteError) Error() string {
	return fmt.Sprintf("checklist %s is not complete", e.StepID)
}

// UnknownStepError reports a navigation target that names no step.
type UnknownStepError struct {
	StepID string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("step %s not found", e.StepID)
}

// TraversalLimitError reports that skipping hidden steps did not settle.
type TraversalLimitError struct {
	StepID string
	Limit  int
}

func (e *TraversalLimitError) Error() string {
	return fmt.Sprintf("conditional traversal from %s exceeded %d iterations", e.StepID, e.Limit)
}

// PersistenceError wraps a failed persistence callback.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// LoadError wraps a failure while loading persisted data.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load persisted data: %v", e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }
