package clock

import "time"

type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Feed and replay timers go through it so tests can
// drive time by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type Real struct{}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) Now() time.Time {
	return time.Now()
}
