package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/internal/idgen"
	"github.com/viant/onboard/internal/logkeys"
	"github.com/viant/onboard/model"
)

// Topic names a notification delivered to every listener in registration
// order; a failing listener does not affect its siblings.
type Topic[T any] struct {
	name string
}

// NewTopic creates a topic.
func NewTopic[T any](name string) Topic[T] { return Topic[T]{name: name} }

// Name returns the topic name.
func (t Topic[T]) Name() string { return t.name }

// GuardTopic names a notification whose listeners vote on a pending
// transition. Listeners run one after another and delivery stops at the
// first cancel or failure.
type GuardTopic[T any] struct {
	name string
}

// NewGuardTopic creates a guard topic.
func NewGuardTopic[T any](name string) GuardTopic[T] { return GuardTopic[T]{name: name} }

// Name returns the topic name.
func (t GuardTopic[T]) Name() string { return t.name }

type (
	// Handler receives notifications of a topic.
	Handler[T any] func(ctx context.Context, e *Event[T]) error

	// GuardHandler votes on a guard topic.
	GuardHandler[T any] func(ctx context.Context, e *Event[T]) (Decision, error)

	subscription struct {
		id      string
		handler interface{}
	}
)

const anyTopic = "*"

// Hub is a typed publish/subscribe registry.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string][]*subscription
	logger        *slog.Logger
	clock         clock.Clock
	flowID        string
}

// New creates a hub.
func New(opts ...Option) *Hub {
	ret := &Hub{
		subscriptions: make(map[string][]*subscription),
		logger:        slog.Default(),
		clock:         clock.Default,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// FlowID returns the flow id stamped on events.
func (h *Hub) FlowID() string {
	if h == nil {
		return ""
	}
	return h.flowID
}

// Count returns the number of listeners registered for topic name.
func (h *Hub) Count(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[name])
}

// Clear removes every listener.
func (h *Hub) Clear() {
	h.mu.Lock()
	h.subscriptions = make(map[string][]*subscription)
	h.mu.Unlock()
}

func (h *Hub) subscribe(name string, handler interface{}) func() {
	sub := &subscription{id: idgen.New(), handler: handler}
	h.mu.Lock()
	h.subscriptions[name] = append(h.subscriptions[name], sub)
	h.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(name, sub.id) })
	}
}

func (h *Hub) unsubscribe(name, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscriptions[name]
	for i, sub := range subs {
		if sub.id == id {
			h.subscriptions[name] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (h *Hub) listeners(name string) []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*subscription(nil), h.subscriptions[name]...)
}

type stepScoped interface {
	eventStepID() string
}

func newEnvelope[T any](h *Hub, name string, data T) *Event[T] {
	ctx := &Context{FlowID: h.flowID, EventType: name}
	if scoped, ok := any(data).(stepScoped); ok {
		ctx.StepID = scoped.eventStepID()
	}
	ret := NewEvent(ctx, data)
	ret.CreatedAt = h.clock.Now()
	return ret
}

// On registers fn for topic and returns a function removing it.
func On[T any](h *Hub, topic Topic[T], fn Handler[T]) func() {
	return h.subscribe(topic.name, fn)
}

// OnAny registers fn for every notification published on h.
func OnAny(h *Hub, fn Handler[any]) func() {
	return h.subscribe(anyTopic, fn)
}

// OnGuard registers fn for a guard topic and returns a function removing it.
func OnGuard[T any](h *Hub, topic GuardTopic[T], fn GuardHandler[T]) func() {
	return h.subscribe(topic.name, fn)
}

// Publish delivers data to every listener of topic, then to catch-all
// listeners. Listener errors and panics are logged and do not stop delivery.
func Publish[T any](ctx context.Context, h *Hub, topic Topic[T], data T) {
	if h == nil {
		return
	}
	e := newEnvelope(h, topic.name, data)
	for _, sub := range h.listeners(topic.name) {
		fn, ok := sub.handler.(Handler[T])
		if !ok {
			continue
		}
		if err := safeCall(ctx, fn, e); err != nil {
			h.report(ctx, topic.name, sub.id, err)
		}
	}
	anyListeners := h.listeners(anyTopic)
	if len(anyListeners) == 0 {
		return
	}
	untyped := e.Any()
	for _, sub := range anyListeners {
		fn := sub.handler.(Handler[any])
		if err := safeCall(ctx, fn, untyped); err != nil {
			h.report(ctx, topic.name, sub.id, err)
		}
	}
}

// Decide delivers data to guard listeners one at a time and returns their
// decisions in order. Delivery stops after the first cancel; a listener
// error or panic stops delivery and is returned.
func Decide[T any](ctx context.Context, h *Hub, topic GuardTopic[T], data T) ([]Decision, error) {
	if h == nil {
		return nil, nil
	}
	e := newEnvelope(h, topic.name, data)
	var decisions []Decision
	for _, sub := range h.listeners(topic.name) {
		fn, ok := sub.handler.(GuardHandler[T])
		if !ok {
			continue
		}
		decision, err := safeDecide(ctx, fn, e)
		if err != nil {
			h.report(ctx, topic.name, sub.id, err)
			return decisions, fmt.Errorf("%s listener %s failed: %w", topic.name, sub.id, err)
		}
		decisions = append(decisions, decision)
		if decision.IsCancel() {
			break
		}
	}
	return decisions, nil
}

func (h *Hub) report(ctx context.Context, name, subscriberID string, err error) {
	h.logger.LogAttrs(ctx, slog.LevelWarn, "event listener failed",
		slog.String(logkeys.FlowID, h.flowID),
		slog.String(logkeys.EventType, name),
		slog.String(logkeys.Subscriber, subscriberID),
		slog.Any(logkeys.Error, err))
}

func safeCall[T any](ctx context.Context, fn Handler[T], e *Event[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewPanicError(r)
		}
	}()
	return fn(ctx, e)
}

func safeDecide[T any](ctx context.Context, fn GuardHandler[T], e *Event[T]) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewPanicError(r)
		}
	}()
	return fn(ctx, e)
}
