package bayeux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_MissingChannel(t *testing.T) {
	b := newTestBroker()
	defer b.Close()

	reply := b.process(nil, &Message{})
	assert.Equal(t, errChannelMissing, reply.Error)
}

func TestProcess_UnknownSessionOnNonHandshake(t *testing.T) {
	b := newTestBroker()
	defer b.Close()

	reply := b.process(nil, &Message{Channel: "/chat/a"})
	assert.Equal(t, errSessionUnknown, reply.Error)
	assert.False(t, reply.IsSuccessful())
	assert.Nil(t, reply.Advice, "handshake advice is only given on /meta/handshake and /meta/connect")
}

func TestProcess_ServerExtensionVetoSetsMessageDeleted(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	s := handshake(t, b)
	b.AddExtension(Extension{
		Incoming: func(*Broker, *Session, *Message) bool { return false },
	})

	reply := b.process(s, &Message{Channel: metaConnect, ClientID: s.ID()})
	assert.Equal(t, errMessageDeleted, reply.Error)
}

func TestProcess_SessionExtensionVetoSetsMessageDeleted(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	s := handshake(t, b)
	s.AddExtension(SessionExtension{
		Incoming: func(*Session, *Message) bool { return false },
	})

	reply := b.process(s, &Message{Channel: metaConnect, ClientID: s.ID()})
	assert.Equal(t, errMessageDeleted, reply.Error)
}

func TestProcess_ChannelDeniedWhenCreateRefused(t *testing.T) {
	opts := DefaultOptions
	b := NewBroker(opts, denyCreatePolicy{})
	defer b.Close()
	s := handshake(t, b)

	reply := b.process(s, &Message{Channel: "/chat/new", ClientID: s.ID()})
	assert.Equal(t, errChannelDenied, reply.Error)
}

type denyCreatePolicy struct{ BasePolicy }

func (denyCreatePolicy) CanCreate(*Broker, *Session, string, *Message) bool { return false }

func TestProcess_PublishDeniedByPolicy(t *testing.T) {
	opts := DefaultOptions
	b := NewBroker(opts, denyPublishPolicy{})
	defer b.Close()
	s := handshake(t, b)
	b.CreateChannel("/chat/a")

	reply := b.process(s, &Message{Channel: "/chat/a", ClientID: s.ID(), Data: "hi"})
	assert.Equal(t, errPublishDenied, reply.Error)
}

type denyPublishPolicy struct{ BasePolicy }

func (denyPublishPolicy) CanPublish(*Broker, *Session, *Channel, *Message) bool { return false }

func TestProcess_BroadcastDeliversToSubscriber(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	publisher := handshake(t, b)
	subscriber := handshake(t, b)

	sub := b.process(subscriber, &Message{Channel: metaSubscribe, ClientID: subscriber.ID(), Subscription: "/chat/a"})
	require.True(t, sub.IsSuccessful())

	reply := b.process(publisher, &Message{Channel: "/chat/a", ClientID: publisher.ID(), Data: "hello"})
	assert.True(t, reply.IsSuccessful())

	require.Eventually(t, subscriber.hasQueued, assertEventuallyTimeout, assertEventuallyTick)
	got := subscriber.drainQueue()
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Data)
}

func TestProcess_ServiceChannelNotFannedOutToSubscribers(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	publisher := handshake(t, b)
	subscriber := handshake(t, b)

	sub := b.process(subscriber, &Message{Channel: metaSubscribe, ClientID: subscriber.ID(), Subscription: "/service/echo"})
	require.True(t, sub.IsSuccessful())

	var heard bool
	b.CreateChannel("/service/echo").AddMessageListener(func(s *Session, m *Message) bool {
		heard = true
		return true
	})

	reply := b.process(publisher, &Message{Channel: "/service/echo", ClientID: publisher.ID(), Data: "ping"})
	assert.True(t, reply.IsSuccessful())

	assert.True(t, heard, "service channel listeners must still run")
	assert.Never(t, subscriber.hasQueued, assertEventuallyTimeout, assertEventuallyTick, "service channels are directed, not broadcast to subscribers")
}

func TestProcess_WildcardListenerSeesDescendantPublish(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	publisher := handshake(t, b)

	var seen []string
	wildcard := b.CreateChannel("/chat/**")
	wildcard.AddMessageListener(func(s *Session, m *Message) bool {
		seen = append(seen, m.Channel)
		return true
	})

	reply := b.process(publisher, &Message{Channel: "/chat/room1", ClientID: publisher.ID(), Data: "x"})
	assert.True(t, reply.IsSuccessful())
	assert.Equal(t, []string{"/chat/room1"}, seen)
}

func TestProcess_WildcardListenerVetoDeletesMessage(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	publisher := handshake(t, b)

	wildcard := b.CreateChannel("/chat/**")
	wildcard.AddMessageListener(func(s *Session, m *Message) bool { return false })

	reply := b.process(publisher, &Message{Channel: "/chat/room1", ClientID: publisher.ID(), Data: "x"})
	assert.Equal(t, errMessageDeleted, reply.Error)
}
