package vtab

import "time"

// Clock abstracts time for the filter-change debounce, so tests can drive the
// debounce window with a fake clock instead of sleeping.
type Clock interface {
	Now() time.Time
}

// RealClock is the default Clock backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time {
	return time.Now()
}
