package event

import (
	"log/slog"

	"github.com/viant/onboard/internal/clock"
)

// Option configures a Hub
type Option func(h *Hub)

// WithLogger sets the logger used to report failing listeners
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock sets the clock used to stamp events
func WithClock(c clock.Clock) Option {
	return func(h *Hub) {
		h.clock = clock.Or(c)
	}
}

// WithFlowID sets the flow id stamped on every event
func WithFlowID(flowID string) Option {
	return func(h *Hub) {
		h.flowID = flowID
	}
}
