package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock is the time source used by the engine. Tests inject a mock.
type Clock = bclock.Clock

// Mock is a controllable clock.
type Mock = bclock.Mock

// Default is the process wide clock. Override in tests for determinism.
var Default Clock = bclock.New()

// Now returns the current time of the default clock.
func Now() time.Time { return Default.Now() }

// NewMock returns a mock clock set to t.
func NewMock(t time.Time) *Mock {
	ret := bclock.NewMock()
	ret.Set(t)
	return ret
}

// Or returns c or the default clock when c is nil.
func Or(c Clock) Clock {
	if c == nil {
		return Default
	}
	return c
}
