package core

import "time"

// Clock provides the current time for auction window checks. The interface
// enables dependency injection for deterministic testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall-clock source used in production.
var SystemClock Clock = systemClock{}
