package orchestrator

import (
	"log/slog"

	"github.com/viant/onboard/internal/clock"
	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/checklist"
	"github.com/viant/onboard/service/event"
	"github.com/viant/onboard/service/gate"
	"github.com/viant/onboard/service/persistence"
	"github.com/viant/onboard/service/state"
	"github.com/viant/onboard/service/transition"
)

// Option customises a Service.
type Option func(s *Service)

// WithHooks sets the flow level callbacks.
func WithHooks(hooks Hooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithClock sets the time source used for step and flow timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates an orchestrator over session and its collaborating services.
func New(session *model.Session, store *state.Store, resolver *transition.Resolver, policy *checklist.Policy, gateway *persistence.Gateway, hub *event.Hub, opts ...Option) *Service {
	ret := &Service{
		session:   session,
		store:     store,
		resolver:  resolver,
		gate:      gate.New(hub),
		checklist: policy,
		gateway:   gateway,
		hub:       hub,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.clock = clock.Or(ret.clock)
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	return ret
}
