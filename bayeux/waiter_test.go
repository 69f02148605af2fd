package bayeux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLongPollWaiter_ResumeWithMessage(t *testing.T) {
	s := newSession()
	done := make(chan waiterResult, 1)
	w := newLongPollWaiter(s, time.Hour, func(r waiterResult) { done <- r })
	s.attachWaiter(w)

	assert.True(t, w.resumeWithMessage())
	res := <-done
	assert.False(t, res.timedOut)
	assert.False(t, res.preempted)
	assert.Nil(t, s.currentWaiter())
}

func TestLongPollWaiter_Expire(t *testing.T) {
	s := newSession()
	done := make(chan waiterResult, 1)
	w := newLongPollWaiter(s, time.Millisecond, func(r waiterResult) { done <- r })
	s.attachWaiter(w)

	res := <-done
	assert.True(t, res.timedOut)
	assert.Nil(t, s.currentWaiter())
}

func TestLongPollWaiter_CancelDuplicate(t *testing.T) {
	s := newSession()
	done := make(chan waiterResult, 1)
	w := newLongPollWaiter(s, time.Hour, func(r waiterResult) { done <- r })
	s.attachWaiter(w)

	assert.True(t, w.cancelDuplicate(500))
	res := <-done
	assert.True(t, res.preempted)
	assert.Equal(t, 500, res.httpStatus)
}

func TestLongPollWaiter_CancelTransportError(t *testing.T) {
	s := newSession()
	done := make(chan waiterResult, 1)
	w := newLongPollWaiter(s, time.Hour, func(r waiterResult) { done <- r })
	s.attachWaiter(w)

	assert.True(t, w.cancelTransportError())
	res := <-done
	assert.True(t, res.transportErr)
}

func TestLongPollWaiter_OnlyOneResumePathWins(t *testing.T) {
	s := newSession()
	done := make(chan waiterResult, 1)
	w := newLongPollWaiter(s, time.Hour, func(r waiterResult) { done <- r })
	s.attachWaiter(w)

	assert.True(t, w.resumeWithMessage())
	assert.False(t, w.cancelDuplicate(500), "a terminated waiter must reject further completions")
	assert.False(t, w.cancelTransportError())

	res := <-done
	assert.False(t, res.preempted)
	assert.False(t, res.transportErr)
}

func TestLongPollWaiter_DetachOnlyClearsOwnPointer(t *testing.T) {
	s := newSession()
	done1 := make(chan waiterResult, 1)
	w1 := newLongPollWaiter(s, time.Hour, func(r waiterResult) { done1 <- r })
	s.attachWaiter(w1)

	done2 := make(chan waiterResult, 1)
	w2 := newLongPollWaiter(s, time.Hour, func(r waiterResult) { done2 <- r })
	prev := s.attachWaiter(w2)
	assert.Same(t, w1, prev)

	// w1 finishing now must not clobber s.waiter, which already points at w2.
	w1.resumeWithMessage()
	<-done1
	assert.Same(t, w2, s.currentWaiter())
}
