package bayeux

import (
	"sync"

	"github.com/igm/pubsub"
)

// SubscribedListener is notified when a session subscribes to a channel.
type SubscribedListener func(session *Session, channel *Channel)

// UnsubscribedListener is notified when a session unsubscribes.
type UnsubscribedListener func(session *Session, channel *Channel)

// MessageListener is notified of every publish reaching channel or one of
// its wildcard descendants. Returning false vetoes the publish and stops
// the notification chain (spec section 4.1, "Notification ordering").
type MessageListener func(session *Session, message *Message) bool

// Channel holds the subscriber set and listener lists for one Bayeux
// channel name. A broadcast channel's subscriber fan-out is implemented
// over an igm/pubsub.Publisher (see DESIGN.md): each subscribing session
// gets its own pump goroutine reading from a dedicated SubReader so a slow
// subscriber can never stall delivery to another.
type Channel struct {
	mu   sync.RWMutex
	name string
	kind channelKind

	subscribers map[string]*Session // sessionID -> session
	sentinels   map[string]*byte    // sessionID -> this subscription's pubsub finalMsg

	subscribedListeners   []SubscribedListener
	unsubscribedListeners []UnsubscribedListener
	messageListeners      []MessageListener

	publisher *pubsub.Publisher
}

func newChannel(name string) *Channel {
	return &Channel{
		name:        name,
		kind:        classify(name),
		subscribers: make(map[string]*Session),
		sentinels:   make(map[string]*byte),
		publisher:   &pubsub.Publisher{},
	}
}

// Name returns the channel's absolute path.
func (c *Channel) Name() string { return c.name }

func (c *Channel) isMeta() bool { return c.kind == kindMeta }

// AddMessageListener registers a listener fired (in registration order)
// whenever a message is published to this channel or one of its wildcard
// descendants.
func (c *Channel) AddMessageListener(l MessageListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageListeners = append(c.messageListeners, l)
}

// AddSubscribedListener registers a channel-scoped subscribed listener.
func (c *Channel) AddSubscribedListener(l SubscribedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribedListeners = append(c.subscribedListeners, l)
}

// AddUnsubscribedListener registers a channel-scoped unsubscribed listener.
func (c *Channel) AddUnsubscribedListener(l UnsubscribedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribedListeners = append(c.unsubscribedListeners, l)
}

// notifyMessage runs this channel's own message listeners (not its
// ancestors - the broker walks the wildcard chain itself). Returns false if
// any listener vetoes.
func (c *Channel) notifyMessage(session *Session, m *Message) bool {
	c.mu.RLock()
	listeners := append([]MessageListener(nil), c.messageListeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		if !l(session, m) {
			return false
		}
	}
	return true
}

// subscribe is a no-op on meta channels or for a session that hasn't
// completed handshake (spec section 4.2). Otherwise it adds the session to
// the subscriber set, starts its delivery pump, and fires subscribed events
// on both the channel and (via the returned bool) the broker.
func (c *Channel) subscribe(session *Session) bool {
	if c.isMeta() || !session.Handshaken() {
		return false
	}

	c.mu.Lock()
	if _, already := c.subscribers[session.ID()]; already {
		c.mu.Unlock()
		return true
	}
	// A non-zero-size allocation, so every subscription's sentinel has its
	// own address (pointers to zero-size values may all compare equal).
	sentinel := new(byte)
	c.subscribers[session.ID()] = session
	c.sentinels[session.ID()] = sentinel
	publisher := c.publisher
	c.mu.Unlock()

	msgCh, _ := publisher.SubChannel(sentinel)
	go pumpDeliveries(msgCh, session)

	session.addSubscription(c)

	c.mu.RLock()
	listeners := append([]SubscribedListener(nil), c.subscribedListeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		l(session, c)
	}
	return true
}

// pumpDeliveries drains one subscriber's private fan-out channel, handing
// each published *Message to the session's deliver pipeline. It exits once
// the channel closes - which happens exactly when this subscriber's own
// sentinel value is published (see unsubscribe), per igm/pubsub's SubChannel
// contract.
func pumpDeliveries(msgCh <-chan interface{}, session *Session) {
	for v := range msgCh {
		pub, ok := v.(*publication)
		if !ok {
			continue
		}
		session.deliver(pub.sender, pub.message)
	}
}

// publication is what a Channel actually feeds into its pubsub.Publisher:
// the message plus whichever session (if any) published it, so each
// subscriber pump can run the sender-side outgoing extensions too.
type publication struct {
	sender  *Session
	message *Message
}

// unsubscribe removes session from the channel's subscriber set (idempotent)
// and publishes the session's sentinel so its pump goroutine exits cleanly.
func (c *Channel) unsubscribe(session *Session) {
	c.mu.Lock()
	if _, ok := c.subscribers[session.ID()]; !ok {
		c.mu.Unlock()
		return
	}
	sentinel := c.sentinels[session.ID()]
	delete(c.subscribers, session.ID())
	delete(c.sentinels, session.ID())
	publisher := c.publisher
	c.mu.Unlock()

	session.removeSubscription(c)
	publisher.Publish(sentinel)

	c.mu.RLock()
	listeners := append([]UnsubscribedListener(nil), c.unsubscribedListeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		l(session, c)
	}
}

// notifySubscribers fans a broadcast publish out to every subscriber.
func (c *Channel) notifySubscribers(sender *Session, m *Message) {
	c.publisher.Publish(&publication{sender: sender, message: m})
}

// subscriberCount and listenerCount back the sweep-eligibility check.
func (c *Channel) subscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}

func (c *Channel) listenerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messageListeners) + len(c.subscribedListeners) + len(c.unsubscribedListeners)
}

// sweepable reports whether this channel is eligible for removal: non-meta,
// no subscribers, no listeners (spec section 3 invariant).
func (c *Channel) sweepable() bool {
	return !c.isMeta() && c.subscriberCount() == 0 && c.listenerCount() == 0
}
