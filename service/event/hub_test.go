package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/model"
)

func TestPublish(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	buf := &bytes.Buffer{}
	hub := New(WithFlowID("flow-1"), WithClock(clock.NewMock(now)), WithLogger(slog.New(slog.NewTextHandler(buf, nil))))
	ctx := context.Background()

	var received []string
	On(hub, StepActive, func(ctx context.Context, e *Event[StepData]) error {
		received = append(received, "first:"+e.Data.Step.ID)
		assert.Equal(t, "flow-1", e.Context.FlowID)
		assert.Equal(t, "stepActive", e.Context.EventType)
		assert.Equal(t, e.Data.Step.ID, e.Context.StepID)
		assert.Equal(t, now, e.CreatedAt)
		return errors.New("listener failure")
	})
	On(hub, StepActive, func(ctx context.Context, e *Event[StepData]) error {
		panic("listener panic")
	})
	unsubscribe := On(hub, StepActive, func(ctx context.Context, e *Event[StepData]) error {
		received = append(received, "third:"+e.Data.Step.ID)
		return nil
	})
	var anyTypes []string
	OnAny(hub, func(ctx context.Context, e *Event[any]) error {
		anyTypes = append(anyTypes, e.Context.EventType)
		return nil
	})

	Publish(ctx, hub, StepActive, StepData{Step: model.NewStep("s1", model.StepInformation)})
	assert.Equal(t, []string{"first:s1", "third:s1"}, received)
	assert.Equal(t, []string{"stepActive"}, anyTypes)
	assert.Contains(t, buf.String(), "listener failure")
	assert.Contains(t, buf.String(), "listener panic")

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 2, hub.Count(StepActive.Name()))
	Publish(ctx, hub, StepActive, StepData{Step: model.NewStep("s2", model.StepInformation)})
	assert.Equal(t, []string{"first:s1", "third:s1", "first:s2"}, received)

	hub.Clear()
	assert.Equal(t, 0, hub.Count(StepActive.Name()))
}

func TestDecide(t *testing.T) {
	data := BeforeStepChangeData{Target: model.StepTarget("b"), Direction: model.DirectionNext}
	redirect := func(id string) GuardHandler[BeforeStepChangeData] {
		return func(ctx context.Context, e *Event[BeforeStepChangeData]) (Decision, error) {
			return RedirectTo(id), nil
		}
	}
	cancel := func(ctx context.Context, e *Event[BeforeStepChangeData]) (Decision, error) {
		return Cancel, nil
	}
	failing := func(ctx context.Context, e *Event[BeforeStepChangeData]) (Decision, error) {
		return Continue, errors.New("guard failure")
	}
	panicking := func(ctx context.Context, e *Event[BeforeStepChangeData]) (Decision, error) {
		panic("guard panic")
	}

	var testCases = []struct {
		name      string
		handlers  []GuardHandler[BeforeStepChangeData]
		expected  []Decision
		expectErr bool
	}{
		{name: "no listeners"},
		{
			name:     "redirects in order",
			handlers: []GuardHandler[BeforeStepChangeData]{redirect("x"), redirect("y")},
			expected: []Decision{RedirectTo("x"), RedirectTo("y")},
		},
		{
			name:     "cancel stops delivery",
			handlers: []GuardHandler[BeforeStepChangeData]{redirect("x"), cancel, redirect("y")},
			expected: []Decision{RedirectTo("x"), Cancel},
		},
		{
			name:      "error stops delivery",
			handlers:  []GuardHandler[BeforeStepChangeData]{redirect("x"), failing, redirect("y")},
			expected:  []Decision{RedirectTo("x")},
			expectErr: true,
		},
		{
			name:      "panic stops delivery",
			handlers:  []GuardHandler[BeforeStepChangeData]{panicking, redirect("y")},
			expectErr: true,
		},
	}
	for _, testCase := range testCases {
		hub := New(WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
		for _, handler := range testCase.handlers {
			OnGuard(hub, BeforeStepChange, handler)
		}
		actual, err := Decide(context.Background(), hub, BeforeStepChange, data)
		assert.Equal(t, testCase.expected, actual, testCase.name)
		assert.Equal(t, testCase.expectErr, err != nil, testCase.name)
	}
}

func TestNavigationTopic(t *testing.T) {
	var testCases = []struct {
		direction model.Direction
		expected  string
		ok        bool
	}{
		{direction: model.DirectionPrevious, expected: "navigationBack", ok: true},
		{direction: model.DirectionNext, expected: "navigationForward", ok: true},
		{direction: model.DirectionSkip, expected: "navigationForward", ok: true},
		{direction: model.DirectionGoTo, expected: "navigationJump", ok: true},
		{direction: model.DirectionInitial},
	}
	for _, testCase := range testCases {
		topic, ok := NavigationTopic(testCase.direction)
		assert.Equal(t, testCase.ok, ok, string(testCase.direction))
		assert.Equal(t, testCase.expected, topic.Name(), string(testCase.direction))
	}
}
