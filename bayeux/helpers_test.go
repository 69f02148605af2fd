package bayeux

import "time"

// assertEventuallyTimeout/Tick bound the require.Eventually polls used
// throughout this package's tests to observe cross-goroutine delivery
// (channel pumps, waiter resumes) without a fixed sleep.
const (
	assertEventuallyTimeout = 2 * time.Second
	assertEventuallyTick    = 5 * time.Millisecond
)
