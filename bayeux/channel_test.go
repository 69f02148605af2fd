package bayeux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_SubscribeRejectsMetaAndUnhandshaken(t *testing.T) {
	meta := newChannel("/meta/connect")
	s := newSession()
	s.markHandshaken()
	assert.False(t, meta.subscribe(s))

	broadcast := newChannel("/chat/room1")
	unhandshaken := newSession()
	assert.False(t, broadcast.subscribe(unhandshaken))
}

func TestChannel_SubscribeUnsubscribeIdempotent(t *testing.T) {
	c := newChannel("/chat/room1")
	s := newSession()
	s.markHandshaken()

	require.True(t, c.subscribe(s))
	assert.True(t, c.subscribe(s), "re-subscribing the same session must be a no-op success")
	assert.Equal(t, 1, c.subscriberCount())
	assert.True(t, s.isSubscribed("/chat/room1"))

	c.unsubscribe(s)
	assert.Equal(t, 0, c.subscriberCount())
	assert.False(t, s.isSubscribed("/chat/room1"))

	// unsubscribing again must not panic or double-fire listeners.
	c.unsubscribe(s)
}

func TestChannel_NotifySubscribersDelivers(t *testing.T) {
	c := newChannel("/chat/room1")
	sender := newSession()
	sender.markHandshaken()
	receiver := newSession()
	receiver.markHandshaken()
	require.True(t, c.subscribe(receiver))

	m := &Message{Channel: "/chat/room1", Data: "hi"}
	c.notifySubscribers(sender, m)

	require.Eventually(t, func() bool {
		return receiver.hasQueued()
	}, assertEventuallyTimeout, assertEventuallyTick)

	got := receiver.drainQueue()
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Data)
}

func TestChannel_SweepableRequiresNoSubscribersOrListeners(t *testing.T) {
	c := newChannel("/chat/room1")
	assert.True(t, c.sweepable())

	s := newSession()
	s.markHandshaken()
	c.subscribe(s)
	assert.False(t, c.sweepable())
	c.unsubscribe(s)
	assert.True(t, c.sweepable())

	c.AddMessageListener(func(*Session, *Message) bool { return true })
	assert.False(t, c.sweepable())
}

func TestChannel_MetaChannelNeverSweepable(t *testing.T) {
	c := newChannel("/meta/connect")
	assert.False(t, c.sweepable())
}

func TestChannel_MessageListenerVeto(t *testing.T) {
	c := newChannel("/chat/room1")
	var seen []string
	c.AddMessageListener(func(s *Session, m *Message) bool {
		seen = append(seen, "first")
		return false
	})
	c.AddMessageListener(func(s *Session, m *Message) bool {
		seen = append(seen, "second")
		return true
	})
	ok := c.notifyMessage(nil, &Message{Channel: "/chat/room1"})
	assert.False(t, ok)
	assert.Equal(t, []string{"first"}, seen)
}
