package extract

import "time"

// Clock returns the invocation time used to resolve relative dates. A nil
// Clock reads time.Now.
type Clock func() time.Time

// Now returns the current time of the clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// InLocation returns a wall clock in loc.
func InLocation(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}
