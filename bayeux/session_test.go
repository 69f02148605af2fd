package bayeux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_DeliverDualPass(t *testing.T) {
	sender := newSession()
	receiver := newSession()

	var senderSaw, receiverSaw []string
	sender.AddExtension(SessionExtension{
		Outgoing: func(snd, rcv *Session, m *Message) bool {
			senderSaw = append(senderSaw, m.Channel)
			return true
		},
	})
	receiver.AddExtension(SessionExtension{
		Outgoing: func(snd, rcv *Session, m *Message) bool {
			receiverSaw = append(receiverSaw, m.Channel)
			return true
		},
	})

	m := &Message{Channel: "/chat/room1", Data: "hi"}
	receiver.deliver(sender, m)

	assert.Equal(t, []string{"/chat/room1"}, senderSaw, "sender's outgoing extensions must run")
	assert.Equal(t, []string{"/chat/room1"}, receiverSaw, "receiver's outgoing extensions must also run")
	assert.True(t, receiver.hasQueued())
}

func TestSession_DeliverSenderVetoSkipsReceiver(t *testing.T) {
	sender := newSession()
	receiver := newSession()

	var receiverRan bool
	sender.AddExtension(SessionExtension{
		Outgoing: func(snd, rcv *Session, m *Message) bool { return false },
	})
	receiver.AddExtension(SessionExtension{
		Outgoing: func(snd, rcv *Session, m *Message) bool { receiverRan = true; return true },
	})

	receiver.deliver(sender, &Message{Channel: "/chat/room1"})
	assert.False(t, receiverRan)
	assert.False(t, receiver.hasQueued())
}

func TestSession_DeliverNilSenderSkipsSenderPass(t *testing.T) {
	receiver := newSession()
	receiver.deliver(nil, &Message{Channel: "/chat/room1"})
	assert.True(t, receiver.hasQueued())
}

func TestSession_BatchFlushesOnceAtZeroDepth(t *testing.T) {
	s := newSession()
	resumed := make(chan struct{}, 1)
	w := newLongPollWaiter(s, time.Hour, func(waiterResult) { resumed <- struct{}{} })
	s.attachWaiter(w)

	s.batch(func() {
		s.deliver(nil, &Message{Channel: "/chat/a"})
		s.deliver(nil, &Message{Channel: "/chat/b"})
		select {
		case <-resumed:
			t.Fatal("must not flush mid-batch")
		default:
		}
	})

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("expected flush after batch closed")
	}
	assert.Len(t, s.drainQueue(), 2)
}

func TestSession_BatchFlushesOnPanic(t *testing.T) {
	s := newSession()
	resumed := make(chan struct{}, 1)
	w := newLongPollWaiter(s, time.Hour, func(waiterResult) { resumed <- struct{}{} })
	s.attachWaiter(w)

	assert.Panics(t, func() {
		s.batch(func() {
			s.deliver(nil, &Message{Channel: "/chat/a"})
			panic("boom")
		})
	})

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("expected flush even after the batched function panicked")
	}
}

func TestSession_CancelExpirationNeverSticks(t *testing.T) {
	s := newSession()
	s.scheduleExpiration(0, time.Millisecond)
	require.NotZero(t, s.expireTime)

	// A /meta/connect clears expireTime while held.
	s.cancelExpiration(true)
	assert.Zero(t, s.expireTime)

	// An ordinary publish that follows must not leave the session stuck
	// unsweepable: scheduleExpiration (called again by the transport once
	// the response is written) re-arms it.
	s.scheduleExpiration(0, time.Millisecond)
	s.cancelExpiration(false)
	assert.NotZero(t, s.expireTime, "a non-connect message must not zero expireTime permanently")

	time.Sleep(5 * time.Millisecond)
	assert.True(t, s.expired(nowMillis()))
}

func TestSession_EligibleForHold(t *testing.T) {
	s := newSession()
	assert.True(t, s.eligibleForHold())

	s.deliver(nil, &Message{Channel: "/chat/a"})
	assert.False(t, s.eligibleForHold())

	s.drainQueue()
	assert.True(t, s.eligibleForHold())

	s.batch(func() {
		assert.True(t, s.eligibleForHold(), "mid-batch is always eligible regardless of queue depth")
	})
}

func TestSession_MarkRemovedUnsubscribesEverything(t *testing.T) {
	s := newSession()
	s.markHandshaken()
	c1 := newChannel("/chat/a")
	c2 := newChannel("/chat/b")
	require.True(t, c1.subscribe(s))
	require.True(t, c2.subscribe(s))

	channels := s.markRemoved()
	assert.Len(t, channels, 2)
	assert.False(t, s.Handshaken())
	assert.True(t, s.isRemoved())
	assert.Equal(t, 0, c1.subscriberCount())
	assert.Equal(t, 0, c2.subscriberCount())
}
