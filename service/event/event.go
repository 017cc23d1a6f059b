package event

import "time"

// Context identifies where an event originated.
type Context struct {
	FlowID    string `json:"flowID"`
	StepID    string `json:"stepID,omitempty"`
	EventType string `json:"eventType"`
}

// Event is the envelope delivered to listeners.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

// NewEvent wraps data with context.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:  context,
		Metadata: make(map[string]interface{}),
		Data:     data,
	}
}

// Any converts the event into an untyped envelope.
func (e *Event[T]) Any() *Event[any] {
	return &Event[any]{
		Context:   e.Context,
		CreatedAt: e.CreatedAt,
		Metadata:  e.Metadata,
		Data:      e.Data,
	}
}
