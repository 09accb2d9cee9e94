// Package clock abstracts wall-clock access so lifecycle deadlines can be
// tested with a fake clock.
package clock

import (
	"time"

	"go.uber.org/fx"
)

// Module provides the system clock.
var Module = fx.Provide(New)

// Clock returns the current instant in UTC.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New returns a Clock backed by the system time.
func New() Clock { return systemClock{} }
