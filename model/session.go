package model

import "sync"

// Session is the single mutable handle of a flow: step list, current step,
// context and history. Services receive it by reference and never keep
// copies of its parts.
type Session struct {
	ID        string
	steps     []*Step
	initialID string
	current   *Step
	context   *Context
	history   History
	mu        sync.RWMutex
}

// NewSession creates a session for steps; an empty initialID selects the first step.
func NewSession(id string, steps []*Step, initialID string, c *Context) *Session {
	if c == nil {
		c = NewContext(nil)
	}
	return &Session{ID: id, steps: steps, initialID: initialID, context: c}
}

// Steps returns the configured step list.
func (s *Session) Steps() []*Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// InitialStepID returns the configured initial step id.
func (s *Session) InitialStepID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.initialID != "" {
		return s.initialID
	}
	if len(s.steps) > 0 {
		return s.steps[0].ID
	}
	return ""
}

// Current returns the current step or nil once the flow is finished.
func (s *Session) Current() *Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrent replaces the current step.
func (s *Session) SetCurrent(step *Step) {
	s.mu.Lock()
	s.current = step
	s.mu.Unlock()
}

// Context returns the live context handle.
func (s *Session) Context() *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context
}

// Update mutates the context while holding the session lock.
func (s *Session) Update(fn func(c *Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.context)
}

// PushHistory records a departed step id.
func (s *Session) PushHistory(id string) {
	s.mu.Lock()
	s.history.Push(id)
	s.mu.Unlock()
}

// PeekHistory returns the most recently departed step id.
func (s *Session) PeekHistory() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Peek()
}

// PopHistoryIf pops the top entry when it equals id.
func (s *Session) PopHistoryIf(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if top, ok := s.history.Peek(); ok && top == id {
		s.history.Pop()
		return true
	}
	return false
}

// ClearHistory empties the history stack.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history.Clear()
	s.mu.Unlock()
}

// History returns a copy of the history stack, bottom first.
func (s *Session) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.IDs()
}

// Reset replaces steps, initial step and context, and clears position and history.
func (s *Session) Reset(steps []*Step, initialID string, c *Context) {
	if c == nil {
		c = NewContext(nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = steps
	s.initialID = initialID
	s.context = c
	s.current = nil
	s.history.Clear()
}

// View returns a consistent copy of the session position and data.
func (s *Session) View() (current *Step, c *Context, history []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.context.Clone(), s.history.IDs()
}
