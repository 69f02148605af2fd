package bayeux

import (
	"sync"
	"time"
)

// waiterState is the LongPollWaiter's one-shot state machine, per spec
// section 4.4. Modeled as an enum plus a guarded completion closure, per
// the DESIGN NOTES guidance in spec section 9 ("Coroutine control flow for
// waiters").
type waiterState int

const (
	waiterArmed waiterState = iota
	waiterResumed
	waiterExpired
	waiterCancelled
)

// waiterResult is what a LongPollWaiter hands back to whoever is blocked on
// (or was given a callback for) its completion.
type waiterResult struct {
	timedOut     bool
	preempted    bool // true if cancelled by a duplicate connect
	httpStatus   int  // only meaningful when preempted
	transportErr bool // true if cancelled by a dropped connection
}

// LongPollWaiter suspends a single /meta/connect reply until one of four
// terminal events fires. Exactly one of resumeWithMessage, expire,
// cancelDuplicate, or cancelTransportError may take effect; all are
// idempotent no-ops after the first.
type LongPollWaiter struct {
	mu    sync.Mutex
	state waiterState

	session *Session
	timer   *time.Timer

	// onComplete is invoked exactly once, with the terminal result. The
	// transport supplies this to assemble and write the HTTP response.
	onComplete func(waiterResult)
}

// newLongPollWaiter arms a waiter bound to session with the given timeout
// and completion callback, and fires it if the timer expires first.
func newLongPollWaiter(session *Session, timeout time.Duration, onComplete func(waiterResult)) *LongPollWaiter {
	w := &LongPollWaiter{
		session:    session,
		onComplete: onComplete,
	}
	w.timer = time.AfterFunc(timeout, w.expire)
	return w
}

// finish performs the one-shot transition; returns false if the waiter
// had already terminated.
func (w *LongPollWaiter) finish(newState waiterState, result waiterResult) bool {
	w.mu.Lock()
	if w.state != waiterArmed {
		w.mu.Unlock()
		return false
	}
	w.state = newState
	w.mu.Unlock()

	w.timer.Stop()
	w.session.detachWaiter(w)
	if w.onComplete != nil {
		w.onComplete(result)
	}
	return true
}

// resumeWithMessage is resume path 1: a message became available for the
// session while the waiter was armed.
func (w *LongPollWaiter) resumeWithMessage() bool {
	return w.finish(waiterResumed, waiterResult{timedOut: false})
}

// expire is resume path 2: the hold timer elapsed with nothing queued.
func (w *LongPollWaiter) expire() {
	w.finish(waiterExpired, waiterResult{timedOut: true})
}

// cancelDuplicate is resume path 3: a new /meta/connect arrived for the same
// session while this one was still held.
func (w *LongPollWaiter) cancelDuplicate(httpStatus int) bool {
	return w.finish(waiterCancelled, waiterResult{preempted: true, httpStatus: httpStatus})
}

// cancelTransportError is resume path 4: the underlying connection reported
// an error or was destroyed (the sweeper also uses it when reaping a session
// that is still holding). The session is left to expire normally. The
// result is not a preemption, so the transport still completes the response
// as it does after a resume.
func (w *LongPollWaiter) cancelTransportError() bool {
	return w.finish(waiterCancelled, waiterResult{transportErr: true})
}
