// Package clock abstracts wall-clock time so that due dates and lock expirations are testable.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the Clock backed by time.Now. Times are truncated to microseconds
// so values survive a round trip through the SQL store unchanged.
type System struct{}

// NewSystem returns the wall clock.
func NewSystem() Clock {
	return System{}
}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
